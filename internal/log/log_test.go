package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"trace", zerolog.TraceLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "walletkit.log")
	if err := Init("debug", true, file); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() { _ = Init("info", false, "") })

	Storage.Debug().Str("path", "/tmp/x").Msg("Store opened")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"component":"storage"`) || !strings.Contains(line, "Store opened") {
		t.Errorf("log file = %q", line)
	}

	if err := Init("info", false, filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("Init(unwritable file) expected error")
	}
}
