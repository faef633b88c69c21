package core

import (
	"context"
	"errors"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type recordingLogger struct {
	infoMessages  []string
	errorMessages []string
	lastArgs      []any
}

var _ glog.Logger = (*recordingLogger)(nil)

func (l *recordingLogger) Trace(string, ...any) {}
func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Fatal(string, ...any) {}

func (l *recordingLogger) Info(msg string, args ...any) {
	l.infoMessages = append(l.infoMessages, msg)
	l.lastArgs = append([]any(nil), args...)
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.errorMessages = append(l.errorMessages, msg)
	l.lastArgs = append([]any(nil), args...)
}

func (l *recordingLogger) WithContext(context.Context) glog.Logger {
	return l
}

func TestObserveOperation_LogsOutcomeWithStructuredFields(t *testing.T) {
	logger := &recordingLogger{}
	svc := newTestService(t, newTestDataStore())
	svc.logger = logger

	svc.observeOperation(context.Background(), time.Now(), "Search", nil, map[string]any{"entity": "res.partner"})
	if len(logger.infoMessages) == 0 || logger.infoMessages[len(logger.infoMessages)-1] != "search succeeded" {
		t.Fatalf("expected normalized success message, got %v", logger.infoMessages)
	}
	args := logger.lastArgs
	if len(args) == 0 || len(args)%2 != 0 {
		t.Fatalf("expected key-value args, got %v", args)
	}
	keys := map[string]bool{}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			t.Fatalf("expected string keys, got %T", args[i])
		}
		keys[key] = true
	}
	for _, want := range []string{"entity", "event_type", "status", "duration_ms"} {
		if !keys[want] {
			t.Fatalf("expected %q field, got %v", want, args)
		}
	}

	svc.observeOperation(context.Background(), time.Now(), "create", errors.New("boom"), nil)
	if len(logger.errorMessages) == 0 || logger.errorMessages[len(logger.errorMessages)-1] != "create failed" {
		t.Fatalf("expected failure message, got %v", logger.errorMessages)
	}
}

func TestFlattenFields_SortsKeys(t *testing.T) {
	args := flattenFields(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	if args[0] != "alpha" || args[2] != "mid" || args[4] != "zeta" {
		t.Fatalf("expected sorted keys, got %v", args)
	}
	if flattenFields(nil) != nil {
		t.Fatalf("expected nil args for empty fields")
	}
}

func TestNormalizeOperation(t *testing.T) {
	if got := normalizeOperation("  Token Refresh "); got != "token_refresh" {
		t.Fatalf("unexpected normalization: %q", got)
	}
	if got := normalizeOperation("token-life"); got != "token_life" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
