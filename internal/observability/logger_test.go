package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	// Test JSON logger
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   DebugLevel,
		Output:  &buf,
		Service: "test-service",
		Version: "1.0.0",
		Encoder: NewJSONEncoder(false),
	})

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected log output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "test-service") {
		t.Errorf("Expected log output to contain service name, got: %s", output)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   InfoLevel,
		Output:  &buf,
		Service: "test-service",
		Encoder: NewJSONEncoder(false),
	})

	logger.InfoWithFields("test message", map[string]interface{}{
		"user_id": 123,
		"action":  "login",
	})

	output := buf.String()
	if !strings.Contains(output, "user_id") {
		t.Errorf("Expected log output to contain 'user_id', got: %s", output)
	}
	if !strings.Contains(output, "123") {
		t.Errorf("Expected log output to contain '123', got: %s", output)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   WarnLevel,
		Output:  &buf,
		Service: "test-service",
		Encoder: NewJSONEncoder(false),
	})

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warning")

	output := buf.String()
	if strings.Contains(output, "hidden debug") || strings.Contains(output, "hidden info") {
		t.Errorf("Expected debug/info to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "visible warning") {
		t.Errorf("Expected warning to pass the level filter, got: %s", output)
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   InfoLevel,
		Output:  &buf,
		Service: "test-service",
		Encoder: NewJSONEncoder(false),
	})

	logger.Component("portal").Info("catalog refreshed")

	output := buf.String()
	if !strings.Contains(output, `"component":"portal"`) {
		t.Errorf("Expected component field in output, got: %s", output)
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   InfoLevel,
		Output:  &buf,
		Service: "test-service",
		Encoder: NewJSONEncoder(false),
	})

	ctx := WithRequestID(context.Background(), "req-42")
	logger.WithContext(ctx).Info("handled")

	output := buf.String()
	if !strings.Contains(output, `"request_id":"req-42"`) {
		t.Errorf("Expected request_id in output, got: %s", output)
	}

	// Without a request ID the logger passes through unchanged
	buf.Reset()
	logger.WithContext(context.Background()).Info("no id")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("Expected no request_id field, got: %s", buf.String())
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if id := RequestID(ctx); id != "" {
		t.Errorf("Expected empty request ID, got: %s", id)
	}

	ctx = WithRequestID(ctx, "abc-123")
	if id := RequestID(ctx); id != "abc-123" {
		t.Errorf("Expected request ID 'abc-123', got: %s", id)
	}
}

func TestKVLogger(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(LoggerConfig{
		Level:   DebugLevel,
		Output:  &buf,
		Service: "test-service",
		Encoder: NewJSONEncoder(false),
	})

	kv := NewKVLogger(base)
	kv.Info("request completed", "method", "GET", "status", 200)

	output := buf.String()
	if !strings.Contains(output, `"method":"GET"`) {
		t.Errorf("Expected method field, got: %s", output)
	}
	if !strings.Contains(output, `"status":200`) {
		t.Errorf("Expected status field, got: %s", output)
	}

	// Odd trailing argument lands under "arg"
	buf.Reset()
	kv.Warn("dangling", "leftover")
	if !strings.Contains(buf.String(), `"arg":"leftover"`) {
		t.Errorf("Expected dangling value under 'arg', got: %s", buf.String())
	}
}

func TestLogLevelFromString(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"Warning": WarnLevel,
		"error":   ErrorLevel,
		"FATAL":   FatalLevel,
		"bogus":   InfoLevel,
	}
	for input, want := range cases {
		if got := LogLevelFromString(input); got != want {
			t.Errorf("LogLevelFromString(%q) = %v, want %v", input, got, want)
		}
	}
}
