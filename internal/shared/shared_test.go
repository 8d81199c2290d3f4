package shared

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestLogger(t *testing.T) {
	t.Run("writes to provided writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello", "key", "value")

		if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "key=value") {
			t.Errorf("unexpected log output %q", buf.String())
		}
	})

	t.Run("SetLogLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)

		SetLogLevel(logger, "error")
		if logger.GetLevel() != log.ErrorLevel {
			t.Errorf("expected error level, got %v", logger.GetLevel())
		}

		SetLogLevel(logger, "loud")
		if logger.GetLevel() != log.ErrorLevel {
			t.Errorf("unknown level should keep previous, got %v", logger.GetLevel())
		}
	})

	t.Run("LogWriter", func(t *testing.T) {
		if w := LogWriter(LogConfig{}); w != os.Stderr {
			t.Error("expected stderr when no file configured")
		}

		w := LogWriter(LogConfig{File: "/tmp/spotlike.log", MaxSizeMB: 1, MaxBackups: 2})
		lj, ok := w.(*lumberjack.Logger)
		if !ok {
			t.Fatalf("expected lumberjack logger, got %T", w)
		}
		if lj.Filename != "/tmp/spotlike.log" || lj.MaxSize != 1 || lj.MaxBackups != 2 {
			t.Errorf("unexpected rotation settings %+v", lj)
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b || len(a) != 36 {
			t.Errorf("expected distinct uuids, got %s and %s", a, b)
		}
	})
}

func TestErrors(t *testing.T) {
	t.Run("TokenExchangeError", func(t *testing.T) {
		err := &TokenExchangeError{Grant: "refresh_token", Status: 400, Code: "invalid_grant", Description: "Refresh token revoked"}

		if !errors.Is(err, ErrTokenExchange) {
			t.Error("expected TokenExchangeError to match ErrTokenExchange")
		}
		if !strings.Contains(err.Error(), "Refresh token revoked") {
			t.Errorf("expected description in message, got %s", err.Error())
		}

		wrapped := fmt.Errorf("refresh: %w", err)
		var target *TokenExchangeError
		if !errors.As(wrapped, &target) || target.Code != "invalid_grant" {
			t.Error("expected errors.As to recover the provider code")
		}
	})

	t.Run("TokenExchangeError Falls Back To Code", func(t *testing.T) {
		err := &TokenExchangeError{Code: "invalid_client"}
		if !strings.HasSuffix(err.Error(), ": invalid_client") {
			t.Errorf("unexpected message %s", err.Error())
		}
	})

	t.Run("Message", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want string
		}{
			{name: "nil", err: nil, want: ""},
			{name: "classified", err: fmt.Errorf("%w: bad id", ErrValidation), want: "invalid input: bad id"},
			{name: "unclassified", err: errors.New("boom"), want: "unexpected error: boom"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := Message(tt.err); got != tt.want {
					t.Errorf("Message() = %q, want %q", got, tt.want)
				}
			})
		}
	})
}
