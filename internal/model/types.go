package model

import "time"

// Meta carries the identifier and timestamps shared by every stored entity.
// CreatedAt is stamped once at creation; UpdatedAt on every write.
type Meta struct {
	DocID     string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Meta) ID() string              { return m.DocID }
func (m *Meta) SetID(id string)         { m.DocID = id }
func (m *Meta) StampCreate(t time.Time) { m.CreatedAt = t; m.UpdatedAt = t }
func (m *Meta) StampUpdate(t time.Time) { m.UpdatedAt = t }

// Role of a family member.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Family is the tenant unit; all devices, rules and requests are scoped to one.
type Family struct {
	Meta
	Name      string   `json:"name"`
	OwnerID   string   `json:"ownerId"`
	MemberIDs []string `json:"memberIds,omitempty"`
	TimeZone  string   `json:"timeZone,omitempty"`
}

// User is a family member account. Authentication itself is external; this
// record only carries the profile the app needs.
type User struct {
	Meta
	FamilyID    string `json:"familyId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        Role   `json:"role"`
}

// DeviceStatus is the pairing/visibility state of a child device.
type DeviceStatus string

const (
	DeviceActive   DeviceStatus = "active"
	DevicePaused   DeviceStatus = "paused"
	DeviceUnpaired DeviceStatus = "unpaired"
)

// Device is a child's phone or tablet paired into the family.
type Device struct {
	Meta
	FamilyID string       `json:"familyId"`
	OwnerID  string       `json:"ownerId"`
	Name     string       `json:"name"`
	Platform string       `json:"platform,omitempty"`
	Status   DeviceStatus `json:"status"`
}

// BedtimeWindow is a daily [Start, End) window in "HH:MM" local time.
type BedtimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Rule is a parent-authored screen-time rule applied to a device or member.
type Rule struct {
	Meta
	FamilyID          string         `json:"familyId"`
	Name              string         `json:"name"`
	DeviceID          string         `json:"deviceId,omitempty"`
	MemberID          string         `json:"memberId,omitempty"`
	DailyLimitMinutes int            `json:"dailyLimitMinutes,omitempty"`
	Bedtime           *BedtimeWindow `json:"bedtime,omitempty"`
	BlockedApps       []string       `json:"blockedApps,omitempty"`
	Enabled           bool           `json:"enabled"`
}

// RequestKind enumerates what a child may ask for.
type RequestKind string

const (
	KindExtraTime        RequestKind = "extra_time"
	KindAppAccess        RequestKind = "app_access"
	KindBedtimeExtension RequestKind = "bedtime_extension"
	KindRuleSuspension   RequestKind = "rule_suspension"
)

// RequestStatus is derived from the approval sequence and expiry; it is never
// written directly by callers (see EvaluateStatus).
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
	StatusExpired  RequestStatus = "expired"
)

// Terminal reports whether no further transition can leave s.
func (s RequestStatus) Terminal() bool { return s != StatusPending }

// Decision is a parent's verdict on a request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// Approval is an immutable decision record appended to a request.
type Approval struct {
	ParentID  string    `json:"parentId"`
	Decision  Decision  `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// Request is a child's ask for extra time, app access, a bedtime extension or
// a temporary rule suspension.
type Request struct {
	Meta
	FamilyID        string        `json:"familyId"`
	RequesterID     string        `json:"requesterId"`
	Kind            RequestKind   `json:"kind"`
	Target          string        `json:"target,omitempty"`
	DurationMinutes int           `json:"durationMinutes,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	Status          RequestStatus `json:"status"`
	Approvals       []Approval    `json:"approvals,omitempty"`
	ExpiresAt       time.Time     `json:"expiresAt"`
}

// NotificationKind enumerates the push types handed to the delivery layer.
type NotificationKind string

const (
	NotifRequestReceived NotificationKind = "request_received"
	NotifRequestApproved NotificationKind = "request_approved"
	NotifRequestDenied   NotificationKind = "request_denied"
	NotifTimeWarning     NotificationKind = "time_warning"
	NotifTimeExpired     NotificationKind = "time_expired"
	NotifRuleViolation   NotificationKind = "rule_violation"
	NotifDevicePaired    NotificationKind = "device_paired"
	NotifSystemUpdate    NotificationKind = "system_update"
)

// Notification is a stored fan-out record consumed by the push collaborator.
type Notification struct {
	Meta
	FamilyID    string           `json:"familyId"`
	RecipientID string           `json:"recipientId"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Body        string           `json:"body,omitempty"`
	RequestID   string           `json:"requestId,omitempty"`
	Read        bool             `json:"read"`
}
