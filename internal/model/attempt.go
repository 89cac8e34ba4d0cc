package model

// AttemptStatus mirrors the server-confirmed state of an attempt.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusExpired    AttemptStatus = "EXPIRED"
)

// AttemptSession is the attempt created by the start call. EndTime is the
// authoritative deadline and never changes once received.
type AttemptSession struct {
	ExamID         ID            `json:"examId"`
	StudentID      ID            `json:"studentId"`
	EndTime        Timestamp     `json:"endTime"`
	Status         AttemptStatus `json:"status"`
	ViolationCount int           `json:"violationCount"`
}

// AnswerEntry is one student response. SelectedOption is nil while the
// question is unanswered.
type AnswerEntry struct {
	QuestionID     ID   `json:"questionId"`
	SelectedOption *int `json:"selectedOption"`
}

// Answered reports whether an option has been chosen.
func (a AnswerEntry) Answered() bool {
	return a.SelectedOption != nil
}
