// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kfa

import (
	"sync"

	"rina.dev/core/internal/rina/pidm"
)

// PortId re-exports pidm.PortId so callers of this package need not import
// pidm directly for the common case.
type PortId = pidm.PortId

// Invalid is the reserved "no port" value.
const Invalid = pidm.Invalid

// FlowState is the lifecycle state of a Flow.
type FlowState int

const (
	// Pending: created by flow_create, not yet bound to a provider.
	Pending FlowState = iota
	// Allocated: bound, SDU FIFO live, may carry traffic.
	Allocated
	// Disabled: flow-controlled off by the provider; toggles back to Allocated.
	Disabled
	// Deallocated: terminal. Monotonic until the Flow is destroyed.
	Deallocated
)

func (s FlowState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Allocated:
		return "allocated"
	case Disabled:
		return "disabled"
	case Deallocated:
		return "deallocated"
	default:
		return "unknown"
	}
}

// SDU is an owned byte buffer, the unit of user-visible data. Ownership
// transfers on write (caller -> Flow -> provider) and on post
// (provider -> Flow -> reader).
type SDU struct {
	Data []byte
}

// FlowOptions are the per-flow option flags, plus the supplemented
// get_options/set_options round trip. Only the single bit the original
// source defines is modeled.
type FlowOptions struct {
	NonBlocking bool
}

// Flow is the end-point object owned by the KFA. Fields are
// unexported: every mutation happens under the owning KFA's lock, and
// handles returned to callers (via Info) are point-in-time snapshots, never
// live references a caller can mutate outside the lock.
type Flow struct {
	port PortId
	ipcp Provider

	state FlowState
	opts  FlowOptions

	fifo []SDU

	readers   int
	writers   int
	enqueuers int

	writerCond *sync.Cond
	readerCond *sync.Cond
}

// Info is a point-in-time, safe-to-read-after-the-call snapshot of a Flow,
// used by introspection and tests that need to observe counters and state
// without racing the live Flow.
type Info struct {
	Port      PortId
	State     FlowState
	Readers   int
	Writers   int
	Enqueuers int
	FIFOLen   int
}

func (f *Flow) snapshot() Info {
	return Info{
		Port:      f.port,
		State:     f.state,
		Readers:   f.readers,
		Writers:   f.writers,
		Enqueuers: f.enqueuers,
		FIFOLen:   len(f.fifo),
	}
}

// refCount sums the three classes of active caller holding a reference to
// the flow: readers + writers + enqueuers.
func (f *Flow) refCount() int {
	return f.readers + f.writers + f.enqueuers
}
