// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lsr

import (
	"sync"
	"time"

	"rina.dev/core/internal/clock"
	"rina.dev/core/internal/logging"
	"rina.dev/core/internal/metrics"
)

// DB is the Flow-State Object database: the single source of truth for
// every link advertisement this node knows about, self-originated or
// learned by flooding. All mutation happens under mu; Dijkstra and
// propagation take a snapshot under the lock, then release it before doing
// any I/O or heavier computation.
type DB struct {
	mu sync.Mutex

	self            Address
	maxAge          int
	waitUntilRemove time.Duration
	clock           clock.Clock

	fsos   map[Key]*FSO
	byPort map[int]Key // local port -> key, for FlowDeallocated lookup

	logger  *logging.Logger
	metrics *metrics.LSR
}

// NewDB creates an FSO database for node self.
func NewDB(self Address, maxAge int, waitUntilRemove time.Duration, clk clock.Clock, logger *logging.Logger, m *metrics.LSR) *DB {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DB{
		self:            self,
		maxAge:          maxAge,
		waitUntilRemove: waitUntilRemove,
		clock:           clk,
		fsos:            make(map[Key]*FSO),
		byPort:          make(map[int]Key),
		logger:          logger.With("component", "lsr"),
		metrics:         m,
	}
}

func (d *DB) countLocked() {
	if d.metrics != nil {
		d.metrics.FSOCount.Set(float64(len(d.fsos)))
	}
}

// FlowAllocated records a new or refreshed N-1 flow from self to neighbor
// bound to localPort.
func (d *DB) FlowAllocated(localPort int, neighbor Address, neighborPort int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := Key{Source: d.self, Neighbor: neighbor}
	f, ok := d.fsos[key]
	if !ok {
		f = &FSO{Source: d.self, Neighbor: neighbor}
		d.fsos[key] = f
	}
	f.SourcePort = localPort
	f.NeighborPort = neighborPort
	f.Up = true
	f.Seq++
	f.Age = 0
	f.modified = true
	f.erasing = false
	d.byPort[localPort] = key

	d.logger.Debug("N-1 flow allocated", "port", localPort, "neighbor", neighbor, "seq", f.Seq)
	d.countLocked()
}

// FlowDeallocated marks the FSO bound to localPort down and arms its grace
// timer. The FSO itself is only removed once the timer fires, giving peers
// time to learn of the loss via flooding before it disappears from this
// node's own advertisements.
func (d *DB) FlowDeallocated(localPort int) {
	d.mu.Lock()
	key, ok := d.byPort[localPort]
	if !ok {
		d.mu.Unlock()
		return
	}
	f, ok := d.fsos[key]
	if !ok {
		d.mu.Unlock()
		return
	}

	f.Up = false
	f.Age = d.maxAge
	f.Seq++
	f.avoidPort = 0
	f.modified = true
	delete(d.byPort, localPort)
	d.logger.Info("N-1 flow deallocated", "port", localPort, "neighbor", f.Neighbor)
	d.countLocked()
	d.armGraceTimerLocked(key, f)
	d.mu.Unlock()
}

// armGraceTimerLocked schedules removal of key after waitUntilRemove,
// unless already armed. Must be called with d.mu held.
func (d *DB) armGraceTimerLocked(key Key, f *FSO) {
	if f.erasing {
		return
	}
	f.erasing = true
	timer := d.clock.After(d.waitUntilRemove)
	go func() {
		<-timer
		d.removeIfStillErasing(key)
	}()
}

func (d *DB) removeIfStillErasing(key Key) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.fsos[key]
	if !ok || !f.erasing {
		return
	}
	delete(d.fsos, key)
	d.logger.Debug("fso removed after grace period", "key", key)
	d.countLocked()
}

// AgeTick increments every FSO's age by one. Any FSO reaching MaxAge without
// already being in its grace period has its removal armed.
func (d *DB) AgeTick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, f := range d.fsos {
		f.Age++
		if f.Age >= d.maxAge && !f.erasing {
			d.armGraceTimerLocked(key, f)
		}
	}
}

// RemoteUpdate applies a batch of FSOs received over N-1 flow ingressPort.
func (d *DB) RemoteUpdate(ingressPort int, batch []WireFSO) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, w := range batch {
		key := Key{Source: w.Source, Neighbor: w.Neighbor}
		f, known := d.fsos[key]

		if !known {
			if w.Source == d.self {
				// Self-advertisement echo: discard.
				continue
			}
			f = &FSO{
				Source:       w.Source,
				SourcePort:   w.SourcePort,
				Neighbor:     w.Neighbor,
				NeighborPort: w.NeighborPort,
				Up:           w.Up,
				Seq:          w.Seq,
				Age:          w.Age,
				avoidPort:    ingressPort,
				modified:     true,
			}
			d.fsos[key] = f
			continue
		}

		if w.Seq <= f.Seq {
			continue // stale, drop
		}

		if w.Source == d.self {
			// Defensive re-assertion: never overwrite our own FSO with a
			// foreign copy of it, just bump our sequence number past theirs.
			f.Seq = w.Seq + 1
			f.avoidPort = 0
			f.modified = true
			continue
		}

		f.SourcePort = w.SourcePort
		f.NeighborPort = w.NeighborPort
		f.Up = w.Up
		f.Seq = w.Seq
		f.Age = w.Age
		f.avoidPort = ingressPort
		f.modified = true
	}
	d.countLocked()
}

// Snapshot returns a point-in-time copy of every FSO currently known.
func (d *DB) Snapshot() []Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Snapshot, 0, len(d.fsos))
	for _, f := range d.fsos {
		out = append(out, f.snapshot())
	}
	return out
}

// Self returns the address this database represents.
func (d *DB) Self() Address { return d.self }
