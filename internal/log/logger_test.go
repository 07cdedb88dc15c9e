package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentExpense, Output: &buf})

	l.InfoContext(context.Background(), "Expense created",
		NewFields().WithExpense(7, "u1", "room-1", 1250, "Groceries").WithError(errors.New("x")).ToSlice()...)

	out := buf.String()
	assert.Contains(t, out, "component=expense")
	assert.Contains(t, out, "expense_id=7")
	assert.Contains(t, out, "category=Groceries")
	assert.Contains(t, out, "error=x")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRequestLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))
	r := httptest.NewRequest("GET", "/api/expenses?sort=cost", nil)

	rl.LogEnd(context.Background(), r, "req_1", "10.0.0.1", 503, 12)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "component=http")
	assert.Contains(t, buf.String(), "status_code=503")

	buf.Reset()
	rl.LogEnd(context.Background(), r, "req_2", "10.0.0.1", 404, 1)
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestFromContextFallback(t *testing.T) {
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())

	l := New(DefaultConfig())
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
}
