// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package lsr implements the Link-State Routing Core: the FSO database, its
// flooding protocol over N-1 flows, and the periodic Dijkstra recomputation
// that publishes a ForwardingTable.
package lsr

import "fmt"

// Address identifies a DIF member. The wire/transport encoding of an address
// is policy-defined; the core only ever compares and orders them.
type Address string

// Key identifies an FSO by the directed edge it describes.
type Key struct {
	Source   Address
	Neighbor Address
}

func (k Key) String() string {
	return fmt.Sprintf("%s->%s", k.Source, k.Neighbor)
}

// FSO is a Flow-State Object: one directed link advertisement.
type FSO struct {
	Source       Address
	SourcePort   int
	Neighbor     Address
	NeighborPort int
	Up           bool
	Seq          uint64
	Age          int

	// avoidPort is the ingress N-1 flow this FSO arrived on, so propagation
	// never reflects an advertisement back the way it came.
	avoidPort int
	// modified marks this FSO as needing propagation on the next pass.
	modified bool
	// erasing marks that the grace timer has been armed; set once so a
	// repeated MaxAge tick does not arm it twice.
	erasing bool
	// pending is the set of egress ports still owed this update; populated
	// on the propagation pass that first observes modified=true, and
	// drained as each egress send succeeds. modified only clears once
	// pending is empty, so a send failure to one peer doesn't suppress
	// retries to the others.
	pending map[int]bool
}

// Snapshot is a deep, lock-free copy of an FSO safe to read after the call
// that produced it returns.
type Snapshot struct {
	Key        Key
	Source     Address
	SourcePort int
	Neighbor   Address
	Up         bool
	Seq        uint64
	Age        int
}

func (f *FSO) key() Key { return Key{Source: f.Source, Neighbor: f.Neighbor} }

func (f *FSO) snapshot() Snapshot {
	return Snapshot{
		Key:        f.key(),
		Source:     f.Source,
		SourcePort: f.SourcePort,
		Neighbor:   f.Neighbor,
		Up:         f.Up,
		Seq:        f.Seq,
		Age:        f.Age,
	}
}

// WireFSO is the flooding-protocol encoding of one FSO, grounded on the
// spec's wire contract: an ordered sequence of FSOs carrying
// (source-address, source-port, neighbor-address, neighbor-port, up-flag,
// seq-number, age). JSON field names are lowerCamelCase to match the
// teacher's other wire-message structs.
type WireFSO struct {
	Source       Address `json:"source"`
	SourcePort   int     `json:"sourcePort"`
	Neighbor     Address `json:"neighbor"`
	NeighborPort int     `json:"neighborPort"`
	Up           bool    `json:"up"`
	Seq          uint64  `json:"seq"`
	Age          int     `json:"age"`
}

func (f *FSO) toWire() WireFSO {
	return WireFSO{
		Source:       f.Source,
		SourcePort:   f.SourcePort,
		Neighbor:     f.Neighbor,
		NeighborPort: f.NeighborPort,
		Up:           f.Up,
		Seq:          f.Seq,
		Age:          f.Age,
	}
}

// ForwardingEntry is one published route: the local N-1 port to use to
// reach Destination.
type ForwardingEntry struct {
	Destination Address
	Port        int
}
