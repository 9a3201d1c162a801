package errors

import "net/http"

// Error codes for the dashboard failure taxonomy. Handlers and services use
// these rather than ad-hoc strings so the HTTP layer can map failures
// consistently.
const (
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeNotFound             = "NOT_FOUND"
	CodeBridgeFailure        = "BRIDGE_FAILURE"
	CodeTransientLoadFailure = "TRANSIENT_LOAD_FAILURE"
	CodeValidation           = "VALIDATION_ERROR"
	CodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	CodeToggleInFlight       = "TOGGLE_IN_FLIGHT"
	CodeSendInFlight         = "SEND_IN_FLIGHT"
	CodeNoActiveSelection    = "NO_ACTIVE_SELECTION"
)

// NewNoActiveSelectionError reports an operation that needs an active account
// or conversation when none is selected.
func NewNoActiveSelectionError(message string) *AppError {
	return NewBadRequestError(CodeNoActiveSelection, message)
}

// NewAuthRequiredError reports a missing or invalid session. redirectTo is the
// originally requested path, echoed back so the client can return the user
// there after sign-in.
func NewAuthRequiredError(redirectTo string) *AppError {
	err := NewUnauthorizedError(CodeAuthRequired, "Sign-in required")
	if redirectTo != "" {
		err.Details = map[string]string{"redirect_to": redirectTo}
	}
	return err
}

// NewBridgeFailureError reports a failed call to a remote bridge. The rolled
// back local state (e.g. the restored draft) travels in details so the caller
// can surface it unmissably.
func NewBridgeFailureError(message string, details any) *AppError {
	err := NewError(http.StatusBadGateway, CodeBridgeFailure, message)
	err.Details = details
	return err
}

// NewTransientLoadError reports a listing fetch failure that the client may
// retry without losing the rest of the view.
func NewTransientLoadError(message string) *AppError {
	return NewError(http.StatusServiceUnavailable, CodeTransientLoadFailure, message)
}
