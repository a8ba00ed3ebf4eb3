package appctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestWithLogger_And_LoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)

	got, ok := LoggerFromContext(ctx)
	if !ok {
		t.Fatal("Expected LoggerFromContext to return true")
	}
	if got != logger {
		t.Error("Expected same logger instance")
	}
}

func TestLoggerFromContext_NoLogger(t *testing.T) {
	got, ok := LoggerFromContext(context.Background())
	if ok {
		t.Error("Expected LoggerFromContext to return false for context without logger")
	}
	if got != nil {
		t.Error("Expected nil logger")
	}
}

func TestLoggerFromContext_NilLogger(t *testing.T) {
	ctx := context.WithValue(context.Background(), loggerKey{}, (*slog.Logger)(nil))

	got, ok := LoggerFromContext(ctx)
	if ok {
		t.Error("Expected LoggerFromContext to return false for nil logger")
	}
	if got != nil {
		t.Error("Expected nil logger")
	}
}

func TestGetLogger_Fallback(t *testing.T) {
	got := GetLogger(context.Background())
	if got != slog.Default() {
		t.Error("Expected GetLogger to return slog.Default() when no logger in context")
	}
}

func TestLogger_ActuallyLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)

	GetLogger(ctx).Info("test message", "key", "value")

	if !bytes.Contains(buf.Bytes(), []byte("test message")) {
		t.Errorf("Expected log to contain 'test message', got: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("key=value")) {
		t.Errorf("Expected log to contain 'key=value', got: %s", buf.String())
	}
}
