// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lsr

import (
	"testing"
	"time"

	"rina.dev/core/internal/clock"
)

func newTestDB(t *testing.T, self Address) (*DB, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Unix(0, 0))
	db := NewDB(self, 3, 50*time.Millisecond, fc, nil, nil)
	return db, fc
}

func TestFlowAllocatedCreatesUpFSO(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.FlowAllocated(7, "B", 3)

	snap := db.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("got %d FSOs, want 1", len(snap))
	}
	f := snap[0]
	if !f.Up || f.Seq != 1 || f.Age != 0 || f.SourcePort != 7 {
		t.Errorf("unexpected FSO: %+v", f)
	}
}

func TestFlowAllocatedRefreshBumpsSeq(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.FlowAllocated(7, "B", 3)
	db.FlowAllocated(7, "B", 3)

	snap := db.Snapshot()
	if snap[0].Seq != 2 {
		t.Errorf("seq = %d, want 2 after refresh", snap[0].Seq)
	}
}

func TestFlowDeallocatedMarksDownAndArmsGrace(t *testing.T) {
	db, fc := newTestDB(t, "A")
	db.FlowAllocated(7, "B", 3)
	db.FlowDeallocated(7)

	snap := db.Snapshot()
	if len(snap) != 1 || snap[0].Up {
		t.Fatalf("expected one down FSO, got %+v", snap)
	}
	if snap[0].Age != 3 {
		t.Errorf("age = %d, want MaxAge(3)", snap[0].Age)
	}

	fc.Advance(100 * time.Millisecond)
	time.Sleep(10 * time.Millisecond) // let the grace-timer goroutine run

	if len(db.Snapshot()) != 0 {
		t.Errorf("expected FSO removed after grace period")
	}
}

func TestAgeTickIncrementsAndArmsAtMaxAge(t *testing.T) {
	db, fc := newTestDB(t, "A")
	// Install a foreign, up FSO via flooding rather than FlowAllocated, so
	// ageing (not deallocation) is what arms its grace timer.
	db.RemoteUpdate(5, []WireFSO{{Source: "B", Neighbor: "C", Up: true, Seq: 1, Age: 0}})

	for i := 0; i < 3; i++ {
		db.AgeTick()
	}

	snap := db.Snapshot()
	if len(snap) != 1 || snap[0].Age != 3 {
		t.Fatalf("expected age=3 after 3 ticks, got %+v", snap)
	}

	fc.Advance(100 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	if len(db.Snapshot()) != 0 {
		t.Errorf("FSO should have been removed once age reached MaxAge and grace elapsed")
	}
}

func TestRemoteUpdateUnknownKeyInstalled(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.RemoteUpdate(5, []WireFSO{{Source: "B", Neighbor: "C", Up: true, Seq: 1}})

	snap := db.Snapshot()
	if len(snap) != 1 || snap[0].Source != "B" || snap[0].Neighbor != "C" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestRemoteUpdateSelfEchoDiscarded(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.RemoteUpdate(5, []WireFSO{{Source: "A", Neighbor: "B", Up: true, Seq: 1}})

	if len(db.Snapshot()) != 0 {
		t.Errorf("self-sourced unknown-key update must be discarded, got %+v", db.Snapshot())
	}
}

func TestRemoteUpdateStaleSeqDropped(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.RemoteUpdate(5, []WireFSO{{Source: "B", Neighbor: "C", Up: true, Seq: 5}})
	db.RemoteUpdate(5, []WireFSO{{Source: "B", Neighbor: "C", Up: false, Seq: 3}})

	snap := db.Snapshot()
	if !snap[0].Up || snap[0].Seq != 5 {
		t.Errorf("stale update must not overwrite: got %+v", snap[0])
	}
}

// Property 8: FSO echo-suppression. A remote update whose source equals
// self and whose key already exists bumps the local seq instead of
// overwriting with foreign contents.
func TestPropertyEchoSuppressionOnKnownSelfFSO(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.FlowAllocated(7, "B", 3) // installs (A,B) seq=1

	db.RemoteUpdate(9, []WireFSO{{Source: "A", Neighbor: "B", Up: false, Seq: 100}})

	snap := db.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected exactly one FSO, got %+v", snap)
	}
	f := snap[0]
	if !f.Up {
		t.Errorf("self FSO must not be overwritten by foreign contents: got Up=%v", f.Up)
	}
	if f.Seq != 101 {
		t.Errorf("expected defensive re-assertion seq=101, got %d", f.Seq)
	}
}

func TestRemoteUpdateNewerSeqOverwritesForeignFSO(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.RemoteUpdate(5, []WireFSO{{Source: "B", Neighbor: "C", SourcePort: 1, Up: true, Seq: 1}})
	db.RemoteUpdate(6, []WireFSO{{Source: "B", Neighbor: "C", SourcePort: 2, Up: false, Seq: 2}})

	snap := db.Snapshot()
	if snap[0].Up || snap[0].SourcePort != 2 {
		t.Errorf("newer update should overwrite: got %+v", snap[0])
	}
}
