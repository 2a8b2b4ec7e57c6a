// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	lg := New("kfa", Options{Output: &buf, ReportTime: false})

	lg.Info("flow created", "port", 7, "state", "pending")

	out := buf.String()
	if !strings.Contains(out, "flow created") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "port") || !strings.Contains(out, "7") {
		t.Errorf("expected port=7 field in output, got %q", out)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	lg := New("lsr", Options{Output: &buf, ReportTime: false})
	child := lg.With("node", "A")

	child.Warn("fso aged out")

	out := buf.String()
	if !strings.Contains(out, "node") || !strings.Contains(out, "A") {
		t.Errorf("expected node=A field in output, got %q", out)
	}
}

func TestNewNopDiscardsOutput(t *testing.T) {
	lg := NewNop()
	// Should not panic and should not write anywhere observable.
	lg.Info("noop")
	lg.Error("still noop")
}
