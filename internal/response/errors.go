package response

// ErrCode is a typed error code enum for consistent bridge error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionNotReady ErrCode = "SESSION_NOT_READY"
	ErrCommandRejected ErrCode = "COMMAND_REJECTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Bridge token is required."
	case ErrTokenInvalid:
		return "Bridge token is invalid."

	case ErrValidation:
		return "Validation failed. Please check the request."
	case ErrInvalidPayload:
		return "Request payload is invalid."
	case ErrUnknownAction:
		return "Unknown action."

	case ErrSessionNotReady:
		return "The exam session is not ready yet."
	case ErrCommandRejected:
		return "The exam session rejected this action."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "Internal agent error."
	default:
		return "An unexpected error occurred."
	}
}
