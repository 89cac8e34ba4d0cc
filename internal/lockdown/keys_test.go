package lockdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func key(k string) Event { return Event{Kind: EventKeyDown, Key: k} }

func TestDefaultKeyPolicy(t *testing.T) {
	p := DefaultKeyPolicy()

	blocked := []Event{
		{Kind: EventKeyDown, Key: "c", Ctrl: true},
		{Kind: EventKeyDown, Key: "Tab", Alt: true},
		{Kind: EventKeyDown, Key: "ArrowLeft", Alt: true},
		{Kind: EventKeyDown, Key: "r", Meta: true},
		key("F1"), key("F12"), key("Tab"), key("Escape"), key("Insert"),
		key("Delete"), key("PrintScreen"), key("ScrollLock"), key("Pause"),
	}
	for _, ev := range blocked {
		assert.True(t, p.Blocks(ev), "expected %s blocked", Describe(ev))
	}

	allowed := []Event{
		key("F5"), key("ArrowUp"), key("ArrowDown"), key("ArrowLeft"), key("ArrowRight"),
		key("Enter"), key(" "), key("Home"), key("End"), key("a"), key("3"),
		{Kind: EventKeyDown, Key: "A", Shift: true},
		{Kind: EventKeyDown, Key: "Control", Ctrl: true},
		{Kind: EventContextMenu},
	}
	for _, ev := range allowed {
		assert.False(t, p.Blocks(ev), "expected %s allowed", Describe(ev))
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Ctrl+Shift+I", Describe(Event{Key: "I", Ctrl: true, Shift: true}))
	assert.Equal(t, "Space", Describe(key(" ")))
}
