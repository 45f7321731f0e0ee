package monitoring

import (
	"fmt"
	"testing"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("test %d", 1)
	if len(*lines) != 1 || (*lines)[0] != "test 1" {
		t.Fatalf("custom logger not called: %v", *lines)
	}

	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger should not reach previous sink, got %v", *lines)
	}
}

func TestLogger_Prefixes(t *testing.T) {
	lines := capture(t)
	l := NewLogger("sweep")

	l.Printf("point alpha=%.2f", 0.5)
	l.Warnf("skipping %s: %v", "clip_03", "not found")

	want := []string{
		"[sweep] point alpha=0.50",
		"[sweep] WARNING: skipping clip_03: not found",
	}
	if len(*lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(*lines), len(want), *lines)
	}
	for i := range want {
		if (*lines)[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, (*lines)[i], want[i])
		}
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}
