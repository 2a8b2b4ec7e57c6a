// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lsr

import "sync/atomic"

// Table is the published ForwardingTable: a read-mostly map from
// destination address to the local egress port, swapped in atomically by
// the routing worker so concurrent lookups never see a torn update.
type Table struct {
	current atomic.Pointer[map[Address]int]
}

// NewTable returns an empty, ready-to-use Table.
func NewTable() *Table {
	t := &Table{}
	empty := make(map[Address]int)
	t.current.Store(&empty)
	return t
}

// publish atomically replaces the table contents with entries.
func (t *Table) publish(entries []ForwardingEntry) {
	next := make(map[Address]int, len(entries))
	for _, e := range entries {
		next[e.Destination] = e.Port
	}
	t.current.Store(&next)
}

// Lookup returns the egress port for destination, or false if it is not
// currently reachable.
func (t *Table) Lookup(destination Address) (int, bool) {
	m := *t.current.Load()
	port, ok := m[destination]
	return port, ok
}

// Entries returns a snapshot of the full table, for introspection and tests.
func (t *Table) Entries() []ForwardingEntry {
	m := *t.current.Load()
	out := make([]ForwardingEntry, 0, len(m))
	for dest, port := range m {
		out = append(out, ForwardingEntry{Destination: dest, Port: port})
	}
	return out
}
