package model

// ForcedReason is the closed set of reasons attached to a submission that
// was not a plain manual submit.
type ForcedReason string

const (
	ReasonNone                ForcedReason = ""
	ReasonTabSwitch           ForcedReason = "TAB_SWITCH"
	ReasonFullscreenExit      ForcedReason = "FULLSCREEN_EXIT"
	ReasonDevToolsDetected    ForcedReason = "DEVTOOLS_DETECTED"
	ReasonProhibitedInput     ForcedReason = "PROHIBITED_INPUT"
	ReasonManualWithViolation ForcedReason = "MANUAL_WITH_VIOLATION"
)

// Display returns the text sent to the backend and shown to the student.
func (r ForcedReason) Display() string {
	switch r {
	case ReasonTabSwitch:
		return "Multiple tab switches"
	case ReasonFullscreenExit:
		return "Multiple fullscreen exits"
	case ReasonDevToolsDetected:
		return "Developer tools detected"
	case ReasonProhibitedInput:
		return "Multiple prohibited actions"
	case ReasonManualWithViolation:
		return "Submitted with recorded violations"
	default:
		return ""
	}
}

// SubmitRequest is the body of POST /exam/{id}/submit.
type SubmitRequest struct {
	Answers          []AnswerEntry `json:"answers"`
	ForcedSubmission bool          `json:"forcedSubmission,omitempty"`
	Reason           string        `json:"reason,omitempty"`
}

// ViolationReport is the body of POST /exam/{id}/violation.
type ViolationReport struct {
	Type      string    `json:"type"`
	Timestamp Timestamp `json:"timestamp"`
	Count     int       `json:"count"`
}

// AccessDecision is the body returned by POST /exam/{id}/check-access.
type AccessDecision struct {
	Accessible bool   `json:"accessible"`
	Message    string `json:"message,omitempty"`
}
