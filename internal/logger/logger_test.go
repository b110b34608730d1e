package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)

	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}
	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}
	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestLevels_WhenVerbose(t *testing.T) {
	tests := []struct {
		name string
		log  func()
		want string
	}{
		{"debug", func() { Debug("chunked %s", "doc-1") }, "[DEBUG] chunked doc-1\n"},
		{"info", func() { Info("stored %d chunks", 42) }, "[INFO] stored 42 chunks\n"},
		{"warn", func() { Warn("blob missing") }, "[WARN] blob missing\n"},
		{"error", func() { Error("run failed: %v", "boom") }, "[ERROR] run failed: boom\n"},
		{"section", func() { Section("Ingestion") }, "\n=== Ingestion ===\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, true)
			tt.log()
			if buf.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestLevels_WhenNotVerbose(t *testing.T) {
	buf := capture(t, false)

	Debug("hidden")
	Info("hidden")
	Warn("hidden")
	Section("hidden")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestError_AlwaysPrints(t *testing.T) {
	buf := capture(t, false)

	Error("document %s failed", "doc-9")

	if buf.String() != "[ERROR] document doc-9 failed\n" {
		t.Errorf("unexpected error output: %q", buf.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	buf := capture(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Debug("concurrent %d", i)
			Error("concurrent %d", i)
			IsVerbose()
		}()
	}
	wg.Wait()

	if got := bytes.Count(buf.Bytes(), []byte("\n")); got != 20 {
		t.Errorf("expected 20 lines, got %d", got)
	}
}
