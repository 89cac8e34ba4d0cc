package model

// ExamDefinition is the student-facing exam paper. It never carries the
// correct options.
type ExamDefinition struct {
	ID              ID         `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	Instructions    string     `json:"instructions"`
	DurationMinutes int        `json:"durationMinutes" validate:"gt=0"`
	Questions       []Question `json:"questions" validate:"required,min=1,dive"`
}

// Question is a single multiple-choice question as served to students.
type Question struct {
	ID      ID       `json:"id" validate:"required"`
	Text    string   `json:"text" validate:"required"`
	Options []string `json:"options" validate:"min=2"`
	Marks   int      `json:"marks" validate:"gt=0"`
}

// QuestionIDs returns the question ids in paper order.
func (e *ExamDefinition) QuestionIDs() []ID {
	ids := make([]ID, len(e.Questions))
	for i, q := range e.Questions {
		ids[i] = q.ID
	}
	return ids
}

// TotalMarks sums the marks of every question.
func (e *ExamDefinition) TotalMarks() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Marks
	}
	return total
}
