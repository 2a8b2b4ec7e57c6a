// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lsr

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"rina.dev/core/internal/clock"
	"rina.dev/core/internal/logging"
	"rina.dev/core/internal/metrics"
)

// Core is the Link-State Routing engine for one node: the FSO database,
// its flooding peers, and the three periodic workers (ageing, propagation,
// routing) that keep the ForwardingTable current.
type Core struct {
	DB      *DB
	Flooder *Flooder

	agePeriod         time.Duration
	propagationPeriod time.Duration
	routingPeriod     time.Duration
	metric            Metric

	clock   clock.Clock
	logger  *logging.Logger
	metrics *metrics.LSR

	table *Table
}

// Options configures a Core.
type Options struct {
	Self              Address
	MaxAge            int
	AgePeriod         time.Duration
	PropagationPeriod time.Duration
	RoutingPeriod     time.Duration
	WaitUntilRemove   time.Duration
	Metric            Metric
	Clock             clock.Clock
	Logger            *logging.Logger
	Metrics           *metrics.LSR
}

// NewCore builds a Core from Options, filling in defaults for Metric, Clock,
// Logger and MaxAge when left zero. Zero periods are kept as given, which
// disables the matching worker (see runTicker).
func NewCore(opts Options) *Core {
	if opts.Metric == nil {
		opts.Metric = UnitMetric
	}
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = 3
	}

	db := NewDB(opts.Self, opts.MaxAge, opts.WaitUntilRemove, opts.Clock, opts.Logger, opts.Metrics)
	return &Core{
		DB:                db,
		Flooder:           NewFlooder(opts.Logger),
		agePeriod:         opts.AgePeriod,
		propagationPeriod: opts.PropagationPeriod,
		routingPeriod:     opts.RoutingPeriod,
		metric:            opts.Metric,
		clock:             opts.Clock,
		logger:            opts.Logger.With("component", "lsr-core"),
		metrics:           opts.Metrics,
		table:             NewTable(),
	}
}

// Table returns the currently published forwarding table.
func (c *Core) Table() *Table { return c.table }

// Run starts the ageing, propagation, and routing workers and blocks until
// ctx is cancelled or one of them returns an error.
func (c *Core) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.runTicker(ctx, c.agePeriod, func() { c.DB.AgeTick() }) })
	g.Go(func() error {
		return c.runTicker(ctx, c.propagationPeriod, func() {
			if err := c.DB.Propagate(c.Flooder); err != nil {
				c.logger.Warn("propagation pass had failures", "error", err)
			}
		})
	})
	g.Go(func() error { return c.runTicker(ctx, c.routingPeriod, func() { c.recompute() }) })

	return g.Wait()
}

// runTicker invokes fn every period until ctx is cancelled. A non-positive
// period disables the worker (useful in tests that drive fn manually).
func (c *Core) runTicker(ctx context.Context, period time.Duration, fn func()) error {
	if period <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := c.clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			fn()
		}
	}
}

// recompute runs Dijkstra against the current FSO snapshot and publishes
// the result to the forwarding table.
func (c *Core) recompute() {
	snap := c.DB.Snapshot()
	entries := route(snap, c.DB.Self(), c.metric)
	c.table.publish(entries)

	if c.metrics != nil {
		c.metrics.RoutingRunsTotal.Inc()
		c.metrics.ForwardingEntries.Set(float64(len(entries)))
	}
	c.logger.Debug("routing recomputed", "entries", len(entries))
}

// Recompute exposes recompute for callers (and tests) that want to force a
// routing pass outside the periodic worker, e.g. opportunistically on a
// modified transition.
func (c *Core) Recompute() { c.recompute() }
