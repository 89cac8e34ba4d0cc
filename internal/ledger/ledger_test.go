package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func ids(n int) []model.ID {
	out := make([]model.ID, n)
	for i := range out {
		out[i] = model.ID(string(rune('a' + i)))
	}
	return out
}

func TestNewIsAllUnanswered(t *testing.T) {
	for _, n := range []int{0, 1, 4, 25} {
		l := New(ids(n))
		assert.Equal(t, n, l.Len())
		assert.Equal(t, 0, l.AnsweredCount())
		assert.Equal(t, n, l.UnansweredCount())
		for _, e := range l.Entries() {
			assert.Nil(t, e.SelectedOption)
		}
	}
}

func TestSetAnswerKeepsCountsConsistent(t *testing.T) {
	l := New(ids(5))
	steps := []struct{ index, option int }{{0, 1}, {3, 0}, {0, 2}, {4, 3}}
	for _, s := range steps {
		require.NoError(t, l.SetAnswer(s.index, s.option))
		assert.Equal(t, 5, l.AnsweredCount()+l.UnansweredCount())
	}
	assert.Equal(t, 3, l.AnsweredCount())

	e, err := l.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, 2, *e.SelectedOption)
}

func TestSetAnswerOutOfRangeLeavesLedgerUnchanged(t *testing.T) {
	l := New(ids(3))
	require.NoError(t, l.SetAnswer(1, 2))
	before := l.Entries()

	for _, idx := range []int{3, -1, 100} {
		err := l.SetAnswer(idx, 0)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	assert.Equal(t, before, l.Entries())
	assert.Equal(t, 3, l.Len())
}

func TestSetAnswerRejectsNegativeOption(t *testing.T) {
	l := New(ids(2))
	assert.ErrorIs(t, l.SetAnswer(0, -1), ErrInvalidOption)
	assert.Equal(t, 0, l.AnsweredCount())
}

func TestEntriesAreCopies(t *testing.T) {
	l := New(ids(1))
	require.NoError(t, l.SetAnswer(0, 1))
	entries := l.Entries()
	*entries[0].SelectedOption = 3
	e, _ := l.Entry(0)
	assert.Equal(t, 1, *e.SelectedOption)
}

func TestFreeze(t *testing.T) {
	l := New(ids(2))
	require.NoError(t, l.SetAnswer(0, 1))
	l.Freeze()
	assert.True(t, l.Frozen())
	assert.ErrorIs(t, l.SetAnswer(1, 1), ErrReadOnly)
	assert.Equal(t, 1, l.AnsweredCount())
	assert.Zero(t, l.Restore([]model.AnswerEntry{{QuestionID: "b", SelectedOption: intPtr(0)}}))
}

func TestRestoreMatchesByID(t *testing.T) {
	l := New([]model.ID{"q1", "q2", "q3"})
	n := l.Restore([]model.AnswerEntry{
		{QuestionID: "q3", SelectedOption: intPtr(2)},
		{QuestionID: "q1", SelectedOption: intPtr(0)},
		{QuestionID: "q2"},
		{QuestionID: "gone", SelectedOption: intPtr(1)},
	})
	assert.Equal(t, 2, n)
	entries := l.Entries()
	assert.Equal(t, 0, *entries[0].SelectedOption)
	assert.Nil(t, entries[1].SelectedOption)
	assert.Equal(t, 2, *entries[2].SelectedOption)
}

func intPtr(v int) *int { return &v }
