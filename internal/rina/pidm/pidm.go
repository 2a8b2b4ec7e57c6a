// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pidm implements the Port-ID Manager: a fixed-width bitmap allocator
// for PortId values, grounded on original_source/linux/net/rina/pidm.c. No
// locking is required of the PIDM itself — the KFA serialises calls into it.
package pidm

import (
	"math/bits"

	"rina.dev/core/internal/errors"
)

// PortId is a small non-negative integer, node-local, dense, recycled.
// 0 is reserved to mean "invalid".
type PortId uint32

// Invalid is the reserved PortId value signalling "no port".
const Invalid PortId = 0

// DefaultWidth is the bitmap width used when none is supplied: typically
// >= 2^16 so a busy node never exhausts the space in practice.
const DefaultWidth = 1 << 16

// PIDM is a fixed-size bit set of width W. allocate() returns the first zero
// bit, sets it, and returns (index+1) as the PortId so 0 stays invalid.
type PIDM struct {
	width int
	words []uint64
	used  int
}

// New creates a PIDM with the given bitmap width. A non-positive width falls
// back to DefaultWidth.
func New(width int) *PIDM {
	if width <= 0 {
		width = DefaultWidth
	}
	return &PIDM{
		width: width,
		words: make([]uint64, (width+63)/64),
	}
}

// Width returns the bitmap width this PIDM was constructed with.
func (p *PIDM) Width() int { return p.width }

// Used returns the number of currently allocated port ids.
func (p *PIDM) Used() int { return p.used }

// Allocate returns the first free PortId, or KindOutOfResources if the
// bitmap is full.
func (p *PIDM) Allocate() (PortId, error) {
	for wi, w := range p.words {
		if w == ^uint64(0) {
			continue
		}
		// Find first zero bit in this word.
		inv := ^w
		bit := bits.TrailingZeros64(inv)
		idx := wi*64 + bit
		if idx >= p.width {
			break
		}
		p.words[wi] |= 1 << uint(bit)
		p.used++
		return PortId(idx + 1), nil
	}
	return Invalid, errors.New(errors.KindOutOfResources, "out of port ids")
}

// Release clears the bit backing id, returning it to the free pool. Releasing
// an id that was never allocated is a no-op precondition error, matching the
// original's "bad flow-id" guard.
func (p *PIDM) Release(id PortId) error {
	if id == Invalid || int(id) > p.width {
		return errors.Errorf(errors.KindPrecondition, "bad port id %d", id)
	}
	idx := int(id) - 1
	wi, bit := idx/64, uint(idx%64)
	mask := uint64(1) << bit
	if p.words[wi]&mask == 0 {
		return errors.Errorf(errors.KindPrecondition, "port id %d not allocated", id)
	}
	p.words[wi] &^= mask
	p.used--
	return nil
}

// IsAllocated reports whether id is currently held.
func (p *PIDM) IsAllocated(id PortId) bool {
	if id == Invalid || int(id) > p.width {
		return false
	}
	idx := int(id) - 1
	wi, bit := idx/64, uint(idx%64)
	return p.words[wi]&(1<<bit) != 0
}
