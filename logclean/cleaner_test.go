package logclean

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCleaner(t *testing.T, max int, cutoff string) *Cleaner {
	t.Helper()
	c, err := New(Config{MaxLength: max, CutoffIndicator: cutoff})
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{MaxLength: 0, CutoffIndicator: "..."})
	assert.Error(t, err)

	_, err = New(Config{MaxLength: 3, CutoffIndicator: "..."})
	assert.Error(t, err)

	_, err = New(Config{MaxLength: 4, CutoffIndicator: ""})
	assert.NoError(t, err)
}

func TestBound(t *testing.T) {
	c := newCleaner(t, 10, "...")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "hello", "hello"},
		{"exact", "0123456789", "0123456789"},
		{"long", "0123456789abc", "0123456..."},
		{"multibyte", "日志日志日志日志日志日志", "日志日志日志日..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Bound(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 10)
		})
	}
}

func TestBoundLengthIsExactlyMax(t *testing.T) {
	c := newCleaner(t, 32, "[cut]")
	for n := 33; n < 200; n += 7 {
		got := c.Bound(strings.Repeat("x", n))
		assert.Equal(t, 32, len(got))
		assert.True(t, strings.HasSuffix(got, "[cut]"))
	}
}

func TestCleanRendersStructuredValues(t *testing.T) {
	c := newCleaner(t, 100, "...")

	out := c.SetLogs(map[string]any{
		"message": "plain",
		"context": map[string]any{"b": 2, "a": "x"},
		"count":   42,
		"err":     errors.New("boom"),
		"nothing": nil,
	}).Clean()

	assert.Equal(t, "plain", out["message"])
	assert.Equal(t, `{"a":"x","b":2}`, out["context"])
	assert.Equal(t, "42", out["count"])
	assert.Equal(t, "boom", out["err"])
	assert.Equal(t, "null", out["nothing"])
}

func TestSetLogsDoesNotShareState(t *testing.T) {
	c := newCleaner(t, 100, "...")
	a := c.SetLogs(map[string]any{"k": "a"})
	b := c.SetLogs(map[string]any{"k": "b"})

	assert.Equal(t, "a", a.Clean()["k"])
	assert.Equal(t, "b", b.Clean()["k"])
	assert.Empty(t, c.Clean())
}

func TestValueOf(t *testing.T) {
	assert.Equal(t, Text("s"), ValueOf("s"))
	assert.Equal(t, Text("raw"), ValueOf([]byte("raw")))
	assert.Equal(t, Structured{V: 1.5}, ValueOf(1.5))
	assert.Equal(t, Text("kept"), ValueOf(Text("kept")))
}
