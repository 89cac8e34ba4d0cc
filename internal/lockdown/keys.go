package lockdown

import (
	"regexp"
	"strings"
)

var functionKey = regexp.MustCompile(`^F([1-9]|1[0-2])$`)

// KeyPolicy decides which key presses are blocked.
type KeyPolicy struct {
	BlockModifiers bool     `json:"blockModifiers"`
	BlockFunction  bool     `json:"blockFunctionKeys"`
	Reserved       []string `json:"reserved"`
	Denied         []string `json:"denied"`
	Allowed        []string `json:"allowed"`
}

// DefaultKeyPolicy blocks Ctrl/Alt/Meta combinations, every function key
// except F5, and a fixed denylist. Navigation keys always pass.
func DefaultKeyPolicy() KeyPolicy {
	return KeyPolicy{
		BlockModifiers: true,
		BlockFunction:  true,
		Reserved:       []string{"F5"},
		Denied:         []string{"Tab", "Escape", "Insert", "Delete", "PrintScreen", "ScrollLock", "Pause"},
		Allowed: []string{
			"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
			"Enter", " ", "Spacebar", "Home", "End",
		},
	}
}

// Blocks reports whether ev must be prevented and reported.
func (p KeyPolicy) Blocks(ev Event) bool {
	if ev.Kind != EventKeyDown {
		return false
	}
	if isModifierKey(ev.Key) {
		// The modifier itself; the combination is judged on the next key.
		return false
	}
	if p.BlockModifiers && (ev.Ctrl || ev.Alt || ev.Meta) {
		return true
	}
	if contains(p.Allowed, ev.Key) {
		return false
	}
	if functionKey.MatchString(ev.Key) {
		return p.BlockFunction && !contains(p.Reserved, ev.Key)
	}
	return contains(p.Denied, ev.Key)
}

// Describe renders a key press such as "Ctrl+Shift+I".
func Describe(ev Event) string {
	var parts []string
	if ev.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if ev.Alt {
		parts = append(parts, "Alt")
	}
	if ev.Shift {
		parts = append(parts, "Shift")
	}
	if ev.Meta {
		parts = append(parts, "Meta")
	}
	key := ev.Key
	if key == " " {
		key = "Space"
	}
	parts = append(parts, key)
	return strings.Join(parts, "+")
}

func isModifierKey(key string) bool {
	switch key {
	case "Control", "Alt", "AltGraph", "Shift", "Meta", "OS":
		return true
	}
	return false
}

func contains(list []string, key string) bool {
	for _, k := range list {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
