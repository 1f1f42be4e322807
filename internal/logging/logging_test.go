package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Console format to stderr",
			config: Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "Invalid log level defaults to info",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("test info message")
	logger.Debug("test debug message")
	logger.Warn("test warn message")
	logger.Error("test error message")

	// All methods should not panic
}

func TestLoggerWithFields(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	// Test WithField
	fieldLogger := logger.WithField("key", "value")
	if fieldLogger == nil {
		t.Error("Expected non-nil logger from WithField")
	}

	// Test WithRequestID
	reqLogger := logger.WithRequestID("req-123")
	if reqLogger == nil {
		t.Error("Expected non-nil logger from WithRequestID")
	}

	// Test WithJobID
	jobLogger := logger.WithJobID("job-456")
	if jobLogger == nil {
		t.Error("Expected non-nil logger from WithJobID")
	}

	// Test WithVideoID
	videoLogger := logger.WithVideoID("dQw4w9WgXcQ")
	if videoLogger == nil {
		t.Error("Expected non-nil logger from WithVideoID")
	}

	// Test WithError
	errLogger := logger.WithError(errors.New("boom"))
	if errLogger == nil {
		t.Error("Expected non-nil logger from WithError")
	}
}

func TestLogHTTPRequest(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogHTTPRequest("POST", "/api/download", "192.168.1.1", 200, 100*time.Millisecond)
	// Should not panic
}

func TestLogJobEvent(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogJobEvent("job-123", "selected", "selecting", map[string]interface{}{
		"quality": "1080p",
		"itag":    22,
	})
	// Should not panic
}

func TestLogUpstreamFetch(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogUpstreamFetch("dQw4w9WgXcQ", 1, 250*time.Millisecond, nil)
	logger.LogUpstreamFetch("dQw4w9WgXcQ", 2, 250*time.Millisecond, errors.New("timeout"))
	// Should not panic
}

func TestLogProviderCall(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogProviderCall("job-123", 0, 598.2, 4*time.Second, nil)
	logger.LogProviderCall("job-123", 1, 598.2, 4*time.Second, errors.New("rate limited"))
	// Should not panic
}

func TestNop(t *testing.T) {
	logger := Nop()
	if logger == nil {
		t.Fatal("Expected non-nil nop logger")
	}
	logger.Info("discarded")
}
