// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindPrecondition, "invalid port")
	if err.Error() != "invalid port" {
		t.Errorf("expected 'invalid port', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "flow_write failed")
	if wrapped.Error() != "flow_write failed: invalid port" {
		t.Errorf("expected 'flow_write failed: invalid port', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindTransient, "would block")
	if GetKind(err) != KindTransient {
		t.Errorf("expected KindTransient, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindPrecondition, "unknown port")
	err = Attr(err, "port", 7)
	err = Attr(err, "op", "flow_write")

	attrs := GetAttributes(err)
	if attrs["port"] != 7 {
		t.Errorf("expected 7, got %v", attrs["port"])
	}
	if attrs["op"] != "flow_write" {
		t.Errorf("expected flow_write, got %v", attrs["op"])
	}

	wrapped := Wrap(err, KindInternal, "failed")
	wrapped = Attr(wrapped, "retry", false)

	allAttrs := GetAttributes(wrapped)
	if allAttrs["port"] != 7 || allAttrs["retry"] != false {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindPrecondition:     "precondition",
		KindTransient:        "transient",
		KindLifecycleClosed:  "lifecycle_closed",
		KindInterrupted:      "interrupted",
		KindProvider:         "provider",
		KindOutOfResources:   "out_of_resources",
		KindInternal:         "internal",
		Kind(99):             "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
