// Package ledger holds the student's answers for one attempt.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	// ErrIndexOutOfRange is returned for a question index outside the ledger.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrInvalidOption is returned for a negative option index.
	ErrInvalidOption = errors.New("invalid option index")
	// ErrReadOnly is returned once the ledger has been frozen.
	ErrReadOnly = errors.New("answers are read-only")
)

// Ledger is a fixed-length, index-addressable list of answers. Entries are
// never added or removed after construction, and a selection never reverts
// to unanswered.
type Ledger struct {
	mu      sync.RWMutex
	entries []model.AnswerEntry
	frozen  bool
}

// New initializes one unanswered entry per question id.
func New(questionIDs []model.ID) *Ledger {
	entries := make([]model.AnswerEntry, len(questionIDs))
	for i, id := range questionIDs {
		entries[i] = model.AnswerEntry{QuestionID: id}
	}
	return &Ledger{entries: entries}
}

// SetAnswer records option for the question at index, replacing any
// previous choice.
func (l *Ledger) SetAnswer(index, option int) error {
	if option < 0 {
		return ErrInvalidOption
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return ErrReadOnly
	}
	if index < 0 || index >= len(l.entries) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, len(l.entries))
	}
	opt := option
	l.entries[index].SelectedOption = &opt
	return nil
}

// Restore copies selections from a saved draft. Entries are matched by
// question id; unknown ids and nil selections are skipped. It returns the
// number of answers restored.
func (l *Ledger) Restore(saved []model.AnswerEntry) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return 0
	}
	byID := make(map[model.ID]int, len(l.entries))
	for i, e := range l.entries {
		byID[e.QuestionID] = i
	}
	restored := 0
	for _, s := range saved {
		i, ok := byID[s.QuestionID]
		if !ok || s.SelectedOption == nil || *s.SelectedOption < 0 {
			continue
		}
		opt := *s.SelectedOption
		l.entries[i].SelectedOption = &opt
		restored++
	}
	return restored
}

// Freeze makes the ledger read-only.
func (l *Ledger) Freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
}

// Frozen reports whether Freeze was called.
func (l *Ledger) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}

// Len is the number of questions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entry returns a copy of the entry at index.
func (l *Ledger) Entry(index int) (model.AnswerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return model.AnswerEntry{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, len(l.entries))
	}
	return copyEntry(l.entries[index]), nil
}

// Entries returns a deep copy of all entries in question order.
func (l *Ledger) Entries() []model.AnswerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.AnswerEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = copyEntry(e)
	}
	return out
}

// AnsweredCount is the number of entries with a selection.
func (l *Ledger) AnsweredCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.entries {
		if e.Answered() {
			n++
		}
	}
	return n
}

// UnansweredCount is the number of entries without a selection.
func (l *Ledger) UnansweredCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.entries {
		if !e.Answered() {
			n++
		}
	}
	return n
}

func copyEntry(e model.AnswerEntry) model.AnswerEntry {
	if e.SelectedOption != nil {
		opt := *e.SelectedOption
		e.SelectedOption = &opt
	}
	return e
}
