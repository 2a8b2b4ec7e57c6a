// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kfa implements the Kernel Flow Allocator: the per-node object that
// owns every end-point flow, mediates user-to-stack data transfer with
// blocking and non-blocking semantics, and coordinates flow lifecycle against
// concurrent readers, writers, enqueuers and deallocators.
//
// A single sync.Mutex guards the map[PortId]*Flow port map and every Flow in
// it (writes to the counter-triple happen on every read and write
// call, so a plain Mutex is the honest lock here, not an RWMutex); two
// condition variables per Flow stand in for the readable/writable wait
// sets, and "last one out cleans up" handles deferred destruction once
// every handle on a deallocated flow has been released.
package kfa

import (
	"context"
	"sync"

	"rina.dev/core/internal/logging"
	"rina.dev/core/internal/metrics"
	"rina.dev/core/internal/rina/pidm"
)

// KFA is the engine handle threaded through every entry point, replacing the
// original source's process-singleton default_kipcm.
type KFA struct {
	mu sync.Mutex

	pidm  *pidm.PIDM
	ports map[PortId]*Flow

	logger  *logging.Logger
	metrics *metrics.KFA
}

// New creates a KFA backed by a PIDM of the given bitmap width.
func New(pidmWidth int, logger *logging.Logger, m *metrics.KFA) *KFA {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &KFA{
		pidm:    pidm.New(pidmWidth),
		ports:   make(map[PortId]*Flow),
		logger:  logger.With("component", "kfa"),
		metrics: m,
	}
}

// ReservePort asks the PIDM to reserve a port id on behalf of ipcpID,
// without creating a Flow. Reserving a PortId is separable from creating
// a Flow.
func (k *KFA) ReservePort(ipcpID string) (PortId, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id, err := k.pidm.Allocate()
	if err != nil {
		k.logger.Warn("port reservation failed", "ipcp", ipcpID, "error", err)
		return Invalid, err
	}
	k.logger.Debug("reserved port", "port", id, "ipcp", ipcpID)
	return id, nil
}

// ReleasePort returns port to the PIDM. It is a no-op if the port is still
// owned by a Flow that has not finished tearing down.
func (k *KFA) ReleasePort(port PortId) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, owned := k.ports[port]; owned {
		return nil
	}
	return k.pidm.Release(port)
}

// FlowCreate installs a Flow in Pending state bound to ipcp. The port must
// already have been reserved. Returns a precondition error if the port is
// already owned by a Flow.
func (k *KFA) FlowCreate(port PortId, ipcp Provider) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.ports[port]; exists {
		return errBusy("port already owned by a flow")
	}
	if !k.pidm.IsAllocated(port) {
		return errInvalidArgument("port was not reserved")
	}

	f := &Flow{port: port, ipcp: ipcp, state: Pending}
	f.writerCond = sync.NewCond(&k.mu)
	f.readerCond = sync.NewCond(&k.mu)
	k.ports[port] = f

	if k.metrics != nil {
		k.metrics.FlowsActive.Inc()
	}
	k.logger.Debug("flow created", "port", port)
	return nil
}

// FlowBind transitions Pending -> Allocated and allocates the SDU-ready
// FIFO.
func (k *KFA) FlowBind(port PortId, ipcp Provider) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.ports[port]
	if !ok {
		return errUnknownFlow()
	}
	if f.state != Pending {
		return errInvalidArgument("flow is not pending")
	}

	f.ipcp = ipcp
	f.fifo = make([]SDU, 0)
	f.state = Allocated
	f.writerCond.Broadcast()

	k.logger.Debug("flow bound", "port", port)
	return nil
}

// FlowDeallocate asynchronously marks the Flow Deallocated, wakes every
// sleeper on both wait-sets, and performs destruction immediately if no
// readers/writers/enqueuers are in flight; otherwise the last departing
// entry point destroys it.
func (k *KFA) FlowDeallocate(port PortId) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.ports[port]
	if !ok {
		return errUnknownFlow()
	}
	if f.state == Deallocated {
		return nil // monotonic: already deallocated
	}

	f.state = Deallocated
	f.writerCond.Broadcast()
	f.readerCond.Broadcast()
	k.tryDestroyLocked(f)

	if k.metrics != nil {
		k.metrics.Deallocations.Inc()
	}
	k.logger.Info("flow deallocated", "port", port)
	return nil
}

// tryDestroyLocked removes f from the port map iff it is Deallocated and its
// counter-triple has reached zero. Must be called with k.mu held. This is
// the "last one out cleans up" check every entry point runs before
// returning.
func (k *KFA) tryDestroyLocked(f *Flow) {
	if f.state == Deallocated && f.refCount() == 0 {
		delete(k.ports, f.port)
		f.fifo = nil
		if k.metrics != nil {
			k.metrics.FlowsActive.Dec()
		}
		k.logger.Debug("flow destroyed", "port", f.port)
	}
}

// FlowWrite writes sdu to the flow bound at port, blocking the caller until
// the flow is writable unless blocking is false. ctx cancellation wakes a
// blocking writer parked on the writer wait-set with Interrupted, before
// the Flow becomes writable.
func (k *KFA) FlowWrite(ctx context.Context, port PortId, sdu SDU, blocking bool) (int, error) {
	k.mu.Lock()

	f, ok := k.ports[port]
	if !ok {
		k.mu.Unlock()
		k.countWrite("unknown_flow")
		return 0, errUnknownFlow()
	}
	if f.state == Deallocated {
		k.mu.Unlock()
		k.countWrite("closed")
		return 0, errFlowClosed()
	}

	f.writers++

	if !blocking {
		if f.state == Pending || f.state == Disabled {
			f.writers--
			k.tryDestroyLocked(f)
			k.mu.Unlock()
			k.countWrite("would_block")
			return 0, errWouldBlock()
		}
	} else {
		for f.state != Allocated && f.state != Deallocated {
			if err := waitCond(ctx, &k.mu, f.writerCond); err != nil {
				f.writers--
				k.tryDestroyLocked(f)
				k.mu.Unlock()
				k.countWrite("interrupted")
				return 0, errInterrupted()
			}
		}
	}

	if f.state == Deallocated {
		f.writers--
		k.tryDestroyLocked(f)
		k.mu.Unlock()
		k.countWrite("closed")
		return 0, errFlowClosed()
	}

	ipcp := f.ipcp
	k.mu.Unlock() // release the engine lock before calling out to the provider

	werr := ipcp.SduWrite(port, sdu)

	k.mu.Lock()
	f.writers--
	k.tryDestroyLocked(f)
	k.mu.Unlock()

	if werr != nil {
		k.countWrite("io_error")
		return 0, errIoError(werr)
	}
	k.countWrite("ok")
	return len(sdu.Data), nil
}

// FlowRead pops the next SDU from the flow's ready FIFO, blocking the caller
// until one is available unless blocking is false. Partial reads are not
// supported at this layer; the character-device surface enforces the
// "buffer too short" discard.
func (k *KFA) FlowRead(ctx context.Context, port PortId, blocking bool) (SDU, error) {
	k.mu.Lock()

	f, ok := k.ports[port]
	if !ok {
		k.mu.Unlock()
		k.countRead("unknown_flow")
		return SDU{}, errUnknownFlow()
	}
	if f.state == Deallocated && len(f.fifo) == 0 {
		k.mu.Unlock()
		k.countRead("closed")
		return SDU{}, errFlowClosed()
	}

	f.readers++

	if !blocking {
		if len(f.fifo) == 0 && f.state != Deallocated {
			f.readers--
			k.tryDestroyLocked(f)
			k.mu.Unlock()
			k.countRead("would_block")
			return SDU{}, errWouldBlock()
		}
	} else {
		for len(f.fifo) == 0 && f.state != Deallocated {
			if err := waitCond(ctx, &k.mu, f.readerCond); err != nil {
				f.readers--
				k.tryDestroyLocked(f)
				k.mu.Unlock()
				k.countRead("interrupted")
				return SDU{}, errInterrupted()
			}
		}
	}

	if len(f.fifo) == 0 {
		// Woke because state became Deallocated with nothing left to drain.
		f.readers--
		k.tryDestroyLocked(f)
		k.mu.Unlock()
		k.countRead("closed")
		return SDU{}, errFlowClosed()
	}

	sdu := f.fifo[0]
	f.fifo = f.fifo[1:]
	f.readers--
	k.tryDestroyLocked(f)
	k.mu.Unlock()

	k.countRead("ok")
	return sdu, nil
}

// SduPost is the entry point from the IPCP provider; it takes ownership of
// sdu and wakes exactly the reader wait-set.
func (k *KFA) SduPost(port PortId, sdu SDU) error {
	k.mu.Lock()

	f, ok := k.ports[port]
	if !ok {
		k.mu.Unlock()
		k.countPost("unknown_flow")
		return errUnknownFlow()
	}
	if f.state == Deallocated {
		k.mu.Unlock()
		k.countPost("closed")
		return errFlowClosed()
	}

	f.enqueuers++
	f.fifo = append(f.fifo, sdu)
	f.readerCond.Broadcast()
	f.enqueuers--
	k.tryDestroyLocked(f)
	k.mu.Unlock()

	k.countPost("ok")
	return nil
}

// EnableWrite transitions Disabled -> Allocated and wakes the writer
// wait-set. Deallocated is sticky and overrides it.
func (k *KFA) EnableWrite(port PortId) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.ports[port]
	if !ok {
		return errUnknownFlow()
	}
	if f.state == Disabled {
		f.state = Allocated
		f.writerCond.Broadcast()
	}
	return nil
}

// DisableWrite transitions Allocated -> Disabled. Deallocated is sticky and
// overrides it.
func (k *KFA) DisableWrite(port PortId) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.ports[port]
	if !ok {
		return errUnknownFlow()
	}
	if f.state == Allocated {
		f.state = Disabled
	}
	return nil
}

// SetOptions replaces the option flags on a flow.
func (k *KFA) SetOptions(port PortId, opts FlowOptions) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.ports[port]
	if !ok {
		return errUnknownFlow()
	}
	f.opts = opts
	return nil
}

// GetOptions returns the current option flags on a flow.
func (k *KFA) GetOptions(port PortId) (FlowOptions, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.ports[port]
	if !ok {
		return FlowOptions{}, errUnknownFlow()
	}
	return f.opts, nil
}

// Info returns a point-in-time snapshot of the Flow at port, for
// introspection and tests.
func (k *KFA) Info(port PortId) (Info, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.ports[port]
	if !ok {
		return Info{}, false
	}
	return f.snapshot(), true
}

// Ports returns every port currently present in the port map, for property
// tests asserting the flow map stays closed under concurrent mutation.
func (k *KFA) Ports() []PortId {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]PortId, 0, len(k.ports))
	for p := range k.ports {
		out = append(out, p)
	}
	return out
}

func (k *KFA) countWrite(result string) {
	if k.metrics != nil {
		k.metrics.WritesTotal.WithLabelValues(result).Inc()
	}
}

func (k *KFA) countRead(result string) {
	if k.metrics != nil {
		k.metrics.ReadsTotal.WithLabelValues(result).Inc()
	}
}

func (k *KFA) countPost(result string) {
	if k.metrics != nil {
		k.metrics.PostsTotal.WithLabelValues(result).Inc()
	}
}
