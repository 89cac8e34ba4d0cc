package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"http://a", "http://b"}, parseOrigins(" http://a , ,http://b"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIOLATION_THRESHOLD", "")
	t.Setenv("DEVTOOLS_POLL_MS", "")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "")

	cfg := Load()
	assert.Equal(t, 3, cfg.ViolationThreshold)
	assert.Equal(t, time.Second, cfg.DevToolsPoll)
	assert.Equal(t, 160, cfg.DevToolsGapPx)
	assert.Zero(t, cfg.HTTPTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIOLATION_THRESHOLD", "5")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "app://kiosk")

	cfg := Load()
	assert.Equal(t, 5, cfg.ViolationThreshold)
	assert.Zero(t, cfg.HTTPTimeout)
	assert.Equal(t, []string{"app://kiosk"}, cfg.AllowedOrigins)
}

func TestAnswerDraftKey(t *testing.T) {
	assert.Equal(t, "proctor:student:s1:exam:e1:attempt:1700000000:draft", CacheKey.AnswerDraftKey("e1", "s1", 1700000000))
}
