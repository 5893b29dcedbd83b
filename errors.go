package famgate

import (
	"errors"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/model"
)

// Shared sentinels re-exported so callers compare against a single symbol.
var (
	ErrNotFound   = model.ErrNotFound
	ErrValidation = model.ErrValidation
	ErrConflict   = model.ErrConflict
)

// Classified error codes.
const (
	AuthError       = apperr.AuthError
	StorageError    = apperr.StorageError
	NetworkError    = apperr.NetworkError
	TimeoutError    = apperr.TimeoutError
	ValidationError = apperr.ValidationError
	PermissionError = apperr.PermissionError
	BusinessError   = apperr.BusinessError
	RetryableError  = apperr.RetryableError
	OfflineError    = apperr.OfflineError
	UnknownError    = apperr.UnknownError
)

// CodeOf extracts the classified code from err, UnknownError when err carries
// none.
func CodeOf(err error) ErrorCode { return apperr.CodeOf(err) }

// IsOffline reports whether err was rejected because the device is offline
// and queuing was disabled.
func IsOffline(err error) bool { return apperr.CodeOf(err) == apperr.OfflineError }

// IsNotFound reports whether err stems from a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, model.ErrNotFound) }
