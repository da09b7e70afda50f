package errors

import (
	goerrors "errors"
	"fmt"
)

// ErrorCode represents a penbridge error code.
type ErrorCode string

const (
	ErrAmbiguousAddressing      ErrorCode = "AMBIGUOUS_ADDRESSING"       // 400
	ErrInvalidRequest           ErrorCode = "INVALID_REQUEST"            // 400
	ErrAuthRequired             ErrorCode = "AUTH_REQUIRED"              // 401
	ErrAuthExpired              ErrorCode = "AUTH_EXPIRED"               // 401
	ErrRiskVerificationRequired ErrorCode = "RISK_VERIFICATION_REQUIRED" // 403
	ErrNotFound                 ErrorCode = "NOT_FOUND"                  // 404
	ErrTitleAlreadyExists       ErrorCode = "TITLE_ALREADY_EXISTS"       // 409
	ErrConflict                 ErrorCode = "CONFLICT"                   // 409
	ErrValidationFailed         ErrorCode = "VALIDATION_FAILED"          // 422
	ErrRateLimited              ErrorCode = "RATE_LIMITED"               // 429
	ErrCancelled                ErrorCode = "CANCELLED"                  // 499
	ErrInternal                 ErrorCode = "INTERNAL"                   // 500
	ErrPlatformError            ErrorCode = "PLATFORM_ERROR"             // 502
	ErrTransport                ErrorCode = "TRANSPORT"                  // 502
	ErrAssetMigrationFailed     ErrorCode = "ASSET_MIGRATION_FAILED"     // 502
	ErrTimeout                  ErrorCode = "TIMEOUT"                    // 504
)

// BridgeError represents a structured error with code, status, and details.
type BridgeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAmbiguousAddressing creates a 400 error for when both ID and title are provided.
func NewAmbiguousAddressing() *BridgeError {
	return &BridgeError{
		Code:    ErrAmbiguousAddressing,
		Status:  400,
		Message: "cannot specify both id and title; use one addressing mode",
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BridgeError {
	return &BridgeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewAuthRequired creates a 401 error for when no credential is stored for a platform.
func NewAuthRequired(platform string) *BridgeError {
	return &BridgeError{
		Code:    ErrAuthRequired,
		Status:  401,
		Message: fmt.Sprintf("not logged in to %s; capture or import a session first", platform),
		Details: map[string]any{"platform": platform},
	}
}

// NewAuthExpired creates a 401 error for when a platform rejects a stored credential.
func NewAuthExpired(platform string) *BridgeError {
	return &BridgeError{
		Code:    ErrAuthExpired,
		Status:  401,
		Message: fmt.Sprintf("session for %s expired or was rejected; log in again", platform),
		Details: map[string]any{"platform": platform},
	}
}

// NewRiskVerificationRequired creates a 403 error for when a platform keeps demanding
// secondary verification after publish retries are exhausted.
func NewRiskVerificationRequired(platform string, attempts int) *BridgeError {
	return &BridgeError{
		Code:    ErrRiskVerificationRequired,
		Status:  403,
		Message: fmt.Sprintf("%s risk control blocked publishing after %d attempts; complete verification on the platform and retry", platform, attempts),
		Details: map[string]any{"platform": platform, "attempts": attempts},
	}
}

// NewNotFound creates a 404 error for when an article cannot be found.
func NewNotFound(identifier string) *BridgeError {
	return &BridgeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("article not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewTitleAlreadyExists creates a 409 error for title collisions.
func NewTitleAlreadyExists(title string) *BridgeError {
	return &BridgeError{
		Code:    ErrTitleAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("article with title %q already exists", title),
		Details: map[string]any{"title": title},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *BridgeError {
	return &BridgeError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewValidationFailed creates a 422 error for when an article violates a platform rule.
func NewValidationFailed(platform, rule, msg string) *BridgeError {
	return &BridgeError{
		Code:    ErrValidationFailed,
		Status:  422,
		Message: msg,
		Details: map[string]any{"platform": platform, "rule": rule},
	}
}

// NewRateLimited creates a 429 error for when a platform throttles requests.
func NewRateLimited(platform string) *BridgeError {
	return &BridgeError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: fmt.Sprintf("%s is rate limiting requests; wait a moment and retry", platform),
		Details: map[string]any{"platform": platform},
	}
}

// NewCancelled creates a 499 error for operations interrupted by the user or a shutdown.
func NewCancelled(msg string) *BridgeError {
	return &BridgeError{
		Code:    ErrCancelled,
		Status:  499,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in details for logging.
func NewInternal(err error) *BridgeError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &BridgeError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// NewPlatformError creates a 502 error carrying a platform's own error text.
func NewPlatformError(platform, msg string) *BridgeError {
	return &BridgeError{
		Code:    ErrPlatformError,
		Status:  502,
		Message: fmt.Sprintf("%s: %s", platform, msg),
		Details: map[string]any{"platform": platform},
	}
}

// NewTransport creates a 502 error for network-level failures.
func NewTransport(err error) *BridgeError {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return &BridgeError{
		Code:    ErrTransport,
		Status:  502,
		Message: msg,
	}
}

// NewAssetMigrationFailed creates a 502 error summarizing failed image uploads.
func NewAssetMigrationFailed(failed, total int) *BridgeError {
	return &BridgeError{
		Code:    ErrAssetMigrationFailed,
		Status:  502,
		Message: fmt.Sprintf("asset migration failed for %d of %d images; publish aborted", failed, total),
		Details: map[string]any{"failed": failed, "total": total},
	}
}

// NewTimeout creates a 504 error for requests that exceeded their deadline.
func NewTimeout(op string) *BridgeError {
	return &BridgeError{
		Code:    ErrTimeout,
		Status:  504,
		Message: fmt.Sprintf("%s timed out", op),
		Details: map[string]any{"operation": op},
	}
}

// Is checks if an error is a BridgeError with the given code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	var bErr *BridgeError
	if goerrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// AsBridgeError extracts a BridgeError from err's chain.
func AsBridgeError(err error) (*BridgeError, bool) {
	var bErr *BridgeError
	if goerrors.As(err, &bErr) {
		return bErr, true
	}
	return nil, false
}

// Recode copies err under a different code and status, keeping the message
// and details. Platform classifiers use it to refine generic errors once
// they recognize the platform's error text.
func Recode(err *BridgeError, code ErrorCode, status int) *BridgeError {
	out := &BridgeError{Code: code, Status: status, Message: err.Message}
	if len(err.Details) > 0 {
		out.Details = make(map[string]any, len(err.Details))
		for k, v := range err.Details {
			out.Details[k] = v
		}
	}
	return out
}

// Code returns the error code of a BridgeError, or empty for any other error.
func Code(err error) ErrorCode {
	var bErr *BridgeError
	if goerrors.As(err, &bErr) {
		return bErr.Code
	}
	return ""
}
