package utils

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if tt.wantErr != (err != nil) {
				t.Fatalf("ParseLogLevel(%q) error = %v; wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v; want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, closeFn, err := NewLogger("file", "json", path, "info")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("catalog loaded", slog.Int("clusters", 2))
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %s", out)
	}
	if !strings.Contains(out, `"clusters":2`) {
		t.Errorf("expected JSON attribute in log, got: %s", out)
	}
}

func TestNewLoggerErrors(t *testing.T) {
	if _, _, err := NewLogger("file", "text", "", "info"); err == nil {
		t.Error("expected error for file output without filename")
	}
	if _, _, err := NewLogger("syslog", "text", "", "info"); err == nil {
		t.Error("expected error for unsupported output")
	}
	if _, _, err := NewLogger("stderr", "xml", "", "info"); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, _, err := NewLogger("stderr", "text", "", "loud"); err == nil {
		t.Error("expected error for unsupported level")
	}
}

func TestConsolePrinters(t *testing.T) {
	var out, errOut bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	SetColor(false)
	defer func() {
		Stdout, Stderr = oldOut, oldErr
	}()

	PrintMessage("hello %s", "world")
	PrintWarning("careful")
	PrintDebug("not shown")

	if got := out.String(); got != "[JM] hello world\n" {
		t.Errorf("PrintMessage wrote %q", got)
	}
	if got := errOut.String(); got != "[JM][WARN] careful\n" {
		t.Errorf("PrintWarning wrote %q", got)
	}

	QuietMode = true
	defer func() { QuietMode = false }()
	out.Reset()
	PrintMessage("quiet")
	if out.Len() != 0 {
		t.Errorf("PrintMessage should be silent in quiet mode, got %q", out.String())
	}
}
