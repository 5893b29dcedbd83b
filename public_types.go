package famgate

import (
	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/model"
	"github.com/famgate/famgate/internal/netwatch"
	"github.com/famgate/famgate/internal/service"
)

// Public type aliases so SDK consumers can import only the famgate package.
type (
	// Domain entities
	Family       = model.Family
	User         = model.User
	Device       = model.Device
	Rule         = model.Rule
	Request      = model.Request
	Approval     = model.Approval
	Notification = model.Notification

	// Enumerations
	Role             = model.Role
	DeviceStatus     = model.DeviceStatus
	RequestKind      = model.RequestKind
	RequestStatus    = model.RequestStatus
	Decision         = model.Decision
	NotificationKind = model.NotificationKind

	// Inputs
	CreateRequestInput = service.CreateRequestInput

	// Errors
	Error     = apperr.Error
	ErrorCode = apperr.Code
	Op        = apperr.Op

	// Connectivity
	NetworkState = netwatch.State
)

// Re-exported enumeration values.
const (
	RoleParent = model.RoleParent
	RoleChild  = model.RoleChild

	StatusPending  = model.StatusPending
	StatusApproved = model.StatusApproved
	StatusDenied   = model.StatusDenied
	StatusExpired  = model.StatusExpired

	DecisionApprove = model.DecisionApprove
	DecisionDeny    = model.DecisionDeny

	DeviceActive   = model.DeviceActive
	DevicePaused   = model.DevicePaused
	DeviceUnpaired = model.DeviceUnpaired

	KindExtraTime        = model.KindExtraTime
	KindAppAccess        = model.KindAppAccess
	KindBedtimeExtension = model.KindBedtimeExtension
	KindRuleSuspension   = model.KindRuleSuspension
)
