package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

// observeOperation emits one structured log line per gateway operation,
// tagging outcome, duration, and the caller-supplied fields.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil || s.logger == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}

	entry := make(map[string]any, len(fields)+4)
	for key, value := range fields {
		entry[key] = value
	}
	entry["event_type"] = operation
	entry["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		entry["status"] = "failure"
		entry["error"] = err.Error()
	} else {
		entry["status"] = "success"
	}

	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(entry)
	}

	args := flattenFields(entry)
	if err != nil {
		logger.Error(operation+" failed", args...)
		return
	}
	logger.Info(operation+" succeeded", args...)
}

// flattenFields turns a field map into sorted key-value args so log lines
// stay byte-stable across runs.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	return strings.ReplaceAll(operation, "-", "_")
}
