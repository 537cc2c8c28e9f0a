package logging

import (
	"runtime"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestLogFormatter_Format(t *testing.T) {
	f := &LogFormatter{}
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   log.InfoLevel,
		Message: "hello\n",
		Caller:  &runtime.Frame{File: "/root/module/internal/logging/x.go", Line: 42},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	line := string(out)
	if !strings.Contains(line, "2026-01-02 03:04:05") {
		t.Errorf("expected formatted timestamp in %q", line)
	}
	if !strings.Contains(line, "x.go:42") {
		t.Errorf("expected source location in %q", line)
	}
	if !strings.Contains(line, "hello") {
		t.Errorf("expected message in %q", line)
	}
	if strings.HasSuffix(strings.TrimRight(line, "\n"), "\r") {
		t.Errorf("expected trailing CR/LF trimmed from message: %q", line)
	}
}
