package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestStructAcceptsValidExam(t *testing.T) {
	exam := model.ExamDefinition{
		ID:              "e1",
		Title:           "Physics",
		DurationMinutes: 10,
		Questions: []model.Question{
			{ID: "q1", Text: "?", Options: []string{"a", "b", "c", "d"}, Marks: 1},
		},
	}
	assert.NoError(t, Struct(&exam))
}

func TestStructReportsNestedFields(t *testing.T) {
	exam := model.ExamDefinition{
		ID:              "e1",
		Title:           "Physics",
		DurationMinutes: 0,
		Questions: []model.Question{
			{ID: "q1", Text: "?", Options: []string{"a"}, Marks: 0},
		},
	}
	err := Struct(&exam)
	require.Error(t, err)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Fields, "durationMinutes")
	assert.Contains(t, fe.Fields, "questions[0].options")
	assert.Contains(t, fe.Fields, "questions[0].marks")
	assert.Contains(t, err.Error(), "durationMinutes")
}

func TestTranslateErrorsNonValidation(t *testing.T) {
	fields := TranslateErrors(errors.New("boom"))
	assert.Equal(t, map[string]string{"detail": "boom"}, fields)
}
