// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kfa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rina.dev/core/internal/rina/pidm"
)

func newTestKFA(t *testing.T) *KFA {
	t.Helper()
	return New(pidm.DefaultWidth, nil, nil)
}

func loopbackProvider(k *KFA) Provider {
	return ProviderFunc(func(port pidm.PortId, sdu SDU) error {
		return k.SduPost(port, sdu)
	})
}

func mustReserveAndBind(t *testing.T, k *KFA, prov Provider) PortId {
	t.Helper()
	port, err := k.ReservePort("test-ipcp")
	if err != nil {
		t.Fatalf("ReservePort: %v", err)
	}
	if err := k.FlowCreate(port, prov); err != nil {
		t.Fatalf("FlowCreate: %v", err)
	}
	if err := k.FlowBind(port, prov); err != nil {
		t.Fatalf("FlowBind: %v", err)
	}
	return port
}

// Scenario: basic echo. A flow bound to a loopback provider round-trips an
// SDU written on the same port it was posted to.
func TestScenarioBasicEcho(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)

	var prov Provider = loopbackProvider(k)
	if err := k.SetOptions(port, FlowOptions{}); err != nil {
		t.Fatalf("SetOptions: %v", err)
	}

	// Rebind with the real loopback provider now that the port exists.
	f, ok := k.ports[port]
	if !ok {
		t.Fatalf("flow missing after bind")
	}
	k.mu.Lock()
	f.ipcp = prov
	k.mu.Unlock()

	ctx := context.Background()
	n, err := k.FlowWrite(ctx, port, SDU{Data: []byte("hello")}, true)
	if err != nil {
		t.Fatalf("FlowWrite: %v", err)
	}
	if n != 5 {
		t.Errorf("FlowWrite returned %d, want 5", n)
	}

	sdu, err := k.FlowRead(ctx, port, true)
	if err != nil {
		t.Fatalf("FlowRead: %v", err)
	}
	if string(sdu.Data) != "hello" {
		t.Errorf("FlowRead got %q, want %q", sdu.Data, "hello")
	}
}

// Scenario: a blocking reader parked on an empty FIFO is woken by
// FlowDeallocate and observes FlowClosed rather than blocking forever.
func TestScenarioDeallocateWakesReader(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)

	readDone := make(chan error, 1)
	go func() {
		_, err := k.FlowRead(context.Background(), port, true)
		readDone <- err
	}()

	// Give the reader a chance to park on the wait-set.
	time.Sleep(20 * time.Millisecond)

	if err := k.FlowDeallocate(port); err != nil {
		t.Fatalf("FlowDeallocate: %v", err)
	}

	select {
	case err := <-readDone:
		if Code(err) != CodeFlowClosed {
			t.Errorf("FlowRead error code = %q, want %q", Code(err), CodeFlowClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader was not woken by deallocation")
	}
}

// Scenario: a non-blocking write against a Disabled flow returns WouldBlock
// immediately; after EnableWrite the same write succeeds.
func TestScenarioNonBlockingWriteThenEnable(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)

	if err := k.DisableWrite(port); err != nil {
		t.Fatalf("DisableWrite: %v", err)
	}

	_, err := k.FlowWrite(context.Background(), port, SDU{Data: []byte("x")}, false)
	if Code(err) != CodeWouldBlock {
		t.Fatalf("FlowWrite on disabled flow: got code %q, want %q", Code(err), CodeWouldBlock)
	}

	var wrote SDU
	prov := ProviderFunc(func(_ pidm.PortId, sdu SDU) error {
		wrote = sdu
		return nil
	})
	k.mu.Lock()
	k.ports[port].ipcp = prov
	k.mu.Unlock()

	if err := k.EnableWrite(port); err != nil {
		t.Fatalf("EnableWrite: %v", err)
	}

	n, err := k.FlowWrite(context.Background(), port, SDU{Data: []byte("x")}, false)
	if err != nil {
		t.Fatalf("FlowWrite after enable: %v", err)
	}
	if n != 1 || string(wrote.Data) != "x" {
		t.Errorf("provider did not see the write: n=%d data=%q", n, wrote.Data)
	}
}

// A blocking writer parked on a Disabled flow is woken by EnableWrite.
func TestScenarioBlockingWriteWokenByEnable(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)
	if err := k.DisableWrite(port); err != nil {
		t.Fatalf("DisableWrite: %v", err)
	}

	prov := ProviderFunc(func(_ pidm.PortId, _ SDU) error { return nil })
	k.mu.Lock()
	k.ports[port].ipcp = prov
	k.mu.Unlock()

	writeDone := make(chan error, 1)
	go func() {
		_, err := k.FlowWrite(context.Background(), port, SDU{Data: []byte("y")}, true)
		writeDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := k.EnableWrite(port); err != nil {
		t.Fatalf("EnableWrite: %v", err)
	}

	select {
	case err := <-writeDone:
		if err != nil {
			t.Errorf("blocked write after enable: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocking writer was not woken by EnableWrite")
	}
}

// A blocking FlowRead observes Interrupted when ctx is cancelled instead of
// hanging forever.
func TestFlowReadInterruptedByContextCancel(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := k.FlowRead(ctx, port, true)
	if Code(err) != CodeInterrupted {
		t.Fatalf("FlowRead error code = %q, want %q", Code(err), CodeInterrupted)
	}
}

// Operating on an unknown port returns UnknownFlow from FlowRead, FlowWrite,
// SduPost and FlowDeallocate.
func TestUnknownPortOperations(t *testing.T) {
	k := newTestKFA(t)
	const bogus PortId = 999999

	if _, err := k.FlowRead(context.Background(), bogus, false); Code(err) != CodeUnknownFlow {
		t.Errorf("FlowRead: got %q", Code(err))
	}
	if _, err := k.FlowWrite(context.Background(), bogus, SDU{}, false); Code(err) != CodeUnknownFlow {
		t.Errorf("FlowWrite: got %q", Code(err))
	}
	if err := k.SduPost(bogus, SDU{}); Code(err) != CodeUnknownFlow {
		t.Errorf("SduPost: got %q", Code(err))
	}
	if err := k.FlowDeallocate(bogus); Code(err) != CodeUnknownFlow {
		t.Errorf("FlowDeallocate: got %q", Code(err))
	}
}

// FlowDeallocate is idempotent: a second call on an already-deallocated
// flow is a silent no-op, not an error.
func TestFlowDeallocateIsIdempotent(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)

	if err := k.FlowDeallocate(port); err != nil {
		t.Fatalf("first deallocate: %v", err)
	}
	if err := k.FlowDeallocate(port); err != nil {
		t.Fatalf("second deallocate should be a no-op, got: %v", err)
	}
}

// Property: the flow map stays closed when flows reserved and bound one by
// one are then deallocated concurrently — every port Ports() reports
// afterwards resolves via Info.
func TestPropertyFlowMapClosure(t *testing.T) {
	k := newTestKFA(t)

	const n = 32
	var wg sync.WaitGroup
	ports := make([]PortId, n)

	for i := 0; i < n; i++ {
		port := mustReserveAndBind(t, k, nil)
		ports[i] = port
	}

	for _, port := range ports {
		wg.Add(1)
		go func(p PortId) {
			defer wg.Done()
			_ = k.FlowDeallocate(p)
		}(port)
	}
	wg.Wait()

	for _, p := range k.Ports() {
		if _, ok := k.Info(p); !ok {
			t.Errorf("Ports() reported %d but Info() could not find it", p)
		}
	}
}

// Property: every post is visible to a subsequent read in FIFO order (no
// reordering across the SDU queue).
func TestPropertyReadAfterPostOrdering(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)

	for i := 0; i < 5; i++ {
		if err := k.SduPost(port, SDU{Data: []byte{byte(i)}}); err != nil {
			t.Fatalf("SduPost %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		sdu, err := k.FlowRead(context.Background(), port, false)
		if err != nil {
			t.Fatalf("FlowRead %d: %v", i, err)
		}
		if len(sdu.Data) != 1 || sdu.Data[0] != byte(i) {
			t.Errorf("FlowRead %d got %v, want [%d]", i, sdu.Data, i)
		}
	}
}

// Property: after a burst of concurrent non-blocking readers has returned,
// deallocation finds no reader in flight and destroys the flow at once
// (removes it from the port map).
func TestPropertyDeallocationSafety(t *testing.T) {
	k := newTestKFA(t)
	port := mustReserveAndBind(t, k, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = k.FlowRead(context.Background(), port, false)
		}()
	}
	wg.Wait()

	if err := k.FlowDeallocate(port); err != nil {
		t.Fatalf("FlowDeallocate: %v", err)
	}
	if _, ok := k.Info(port); ok {
		t.Errorf("flow still present after deallocation drained all waiters")
	}
}

// ReservePort/ReleasePort round trip exercises the PIDM directly through
// the engine without ever creating a Flow.
func TestReserveReleaseWithoutFlow(t *testing.T) {
	k := newTestKFA(t)
	port, err := k.ReservePort("ipcp-a")
	if err != nil {
		t.Fatalf("ReservePort: %v", err)
	}
	if err := k.ReleasePort(port); err != nil {
		t.Fatalf("ReleasePort: %v", err)
	}

	port2, err := k.ReservePort("ipcp-b")
	if err != nil {
		t.Fatalf("ReservePort (reuse): %v", err)
	}
	if port2 != port {
		t.Errorf("expected released port %d to be reused, got %d", port, port2)
	}
}

func TestGetOptionsUnknownUsesErrorsIs(t *testing.T) {
	k := newTestKFA(t)
	_, err := k.GetOptions(PortId(123456))
	if !errors.Is(err, err) {
		t.Fatalf("errors.Is should be reflexive")
	}
	if Code(err) != CodeUnknownFlow {
		t.Errorf("GetOptions: got code %q, want %q", Code(err), CodeUnknownFlow)
	}
}
