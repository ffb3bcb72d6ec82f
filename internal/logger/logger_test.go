package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	l := Nop()
	out := l.sanitizeKVs([]interface{}{
		"password", "hunter2",
		"api_key", "sk-123",
		"user", "alice",
		"user_id", "42",
		"note", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhbGljZSJ9.sig",
	})
	require.Len(t, out, 10)
	assert.Equal(t, "[REDACTED]", out[1])
	assert.Equal(t, "[REDACTED]", out[3])
	assert.Equal(t, "alice", out[5])
	assert.Contains(t, out[7], "hash:")
	assert.Equal(t, "[REDACTED]", out[9])
}

func TestSanitizeKVsOddLength(t *testing.T) {
	l := Nop()
	out := l.sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}

func TestSanitizeKVsDisabled(t *testing.T) {
	l := Nop()
	l.redact = false
	in := []interface{}{"password", "x"}
	assert.Equal(t, in, l.sanitizeKVs(in))
}
