package apperr

// Credential and token failures share generic messages so callers cannot tell
// which check failed. Plan expiry is reported distinctly.
var (
	ErrInvalidCredentials = Unauthenticated("Invalid credentials")
	ErrUnauthorized       = Unauthenticated("Unauthorized")
	ErrMissingRefresh     = Unauthenticated("Missing refresh token")
	ErrForbidden          = Forbidden("Forbidden")
	ErrPlanExpired        = Forbidden("Plan expired")
	ErrAccountNotFound    = NotFound("User not found")
)
