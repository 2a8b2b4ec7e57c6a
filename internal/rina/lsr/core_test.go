// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lsr

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"rina.dev/core/internal/clock"
)

func TestPropagateSendsModifiedFSOsAndClearsFlag(t *testing.T) {
	db, _ := newTestDB(t, "A")
	db.FlowAllocated(7, "B", 3)

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	fl := NewFlooder(nil)
	fl.AddPeer(NewPeer(7, clientConn))

	received := make(chan floodMessage, 1)
	go func() {
		var msg floodMessage
		dec := json.NewDecoder(serverConn)
		if err := dec.Decode(&msg); err == nil {
			received <- msg
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- db.Propagate(fl) }()

	select {
	case msg := <-received:
		if len(msg.FSOs) != 1 || msg.FSOs[0].Neighbor != "B" {
			t.Fatalf("unexpected flood message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("propagation did not send within timeout")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	snap := db.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 FSO, got %d", len(snap))
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for key, f := range db.fsos {
		if f.modified {
			t.Errorf("FSO %s still modified after a successful propagation", key)
		}
	}
}

func TestPropagateExcludesAvoidPort(t *testing.T) {
	db, _ := newTestDB(t, "A")
	// Install via RemoteUpdate so avoidPort is set to the ingress port.
	db.RemoteUpdate(99, []WireFSO{{Source: "B", Neighbor: "C", Up: true, Seq: 1}})

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	fl := NewFlooder(nil)
	fl.AddPeer(NewPeer(99, clientConn)) // same port as ingress: must be excluded

	done := make(chan error, 1)
	go func() { done <- db.Propagate(fl) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Propagate: %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		// Nobody reads the pipe, so a send to the avoided peer would block
		// Propagate here.
		t.Fatal("Propagate blocked sending to the avoided peer")
	}
}

func TestCoreRunRecomputesOnRoutingTick(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	core := NewCore(Options{
		Self:          "A",
		MaxAge:        3,
		RoutingPeriod: time.Second,
		Clock:         fc,
	})
	core.DB.FlowAllocated(1, "B", 2)
	core.DB.RemoteUpdate(1, []WireFSO{{Source: "B", SourcePort: 2, Neighbor: "A", NeighborPort: 1, Up: true, Seq: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- core.Run(ctx) }()

	// Let the workers park on their tickers before advancing.
	time.Sleep(20 * time.Millisecond)
	fc.Advance(time.Second)
	time.Sleep(50 * time.Millisecond)

	if port, ok := core.Table().Lookup("B"); !ok || port != 1 {
		t.Errorf("expected B reachable via port 1 after routing tick, got port=%d ok=%v", port, ok)
	}

	cancel()
	<-done
}

func TestCoreRecomputeIsCallableDirectly(t *testing.T) {
	core := NewCore(Options{Self: "A", MaxAge: 3})
	core.DB.FlowAllocated(1, "B", 2)
	core.DB.RemoteUpdate(1, []WireFSO{{Source: "B", SourcePort: 2, Neighbor: "A", NeighborPort: 1, Up: true, Seq: 1}})
	core.Recompute()

	if port, ok := core.Table().Lookup("B"); !ok || port != 1 {
		t.Errorf("expected B reachable via port 1, got port=%d ok=%v", port, ok)
	}
}
