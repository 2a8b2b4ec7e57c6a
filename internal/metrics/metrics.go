// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus collectors for the core components:
// one struct of pre-built collectors per component, registered against a
// caller-supplied registry rather than the global default so tests can use
// isolated registries.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// KFA holds the Kernel Flow Allocator's collectors.
type KFA struct {
	FlowsActive   prometheus.Gauge
	WritesTotal   *prometheus.CounterVec // label "result": ok|would_block|closed|unknown_flow|interrupted|io_error
	ReadsTotal    *prometheus.CounterVec
	PostsTotal    *prometheus.CounterVec
	Deallocations prometheus.Counter
}

// NewKFA builds and registers the KFA collectors.
func NewKFA(reg prometheus.Registerer) *KFA {
	m := &KFA{
		FlowsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rina_kfa_flows_active",
			Help: "Number of flows currently tracked by the KFA port map.",
		}),
		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rina_kfa_writes_total",
			Help: "Total flow_write calls by result.",
		}, []string{"result"}),
		ReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rina_kfa_reads_total",
			Help: "Total flow_read calls by result.",
		}, []string{"result"}),
		PostsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rina_kfa_posts_total",
			Help: "Total sdu_post calls by result.",
		}, []string{"result"}),
		Deallocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rina_kfa_deallocations_total",
			Help: "Total flow_deallocate calls.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FlowsActive, m.WritesTotal, m.ReadsTotal, m.PostsTotal, m.Deallocations)
	}
	return m
}

// PIDM holds the Port-ID Manager's collectors.
type PIDM struct {
	Utilization prometheus.Gauge
	Exhausted   prometheus.Counter
}

// NewPIDM builds and registers the PIDM collectors.
func NewPIDM(reg prometheus.Registerer) *PIDM {
	m := &PIDM{
		Utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rina_pidm_utilization_ratio",
			Help: "Fraction of the port-id bitmap currently allocated.",
		}),
		Exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rina_pidm_exhausted_total",
			Help: "Total allocate() calls that returned OutOfPortIds.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Utilization, m.Exhausted)
	}
	return m
}

// LSR holds the Link-State Routing core's collectors.
type LSR struct {
	FSOCount          prometheus.Gauge
	PropagationsTotal prometheus.Counter
	RoutingRunsTotal  prometheus.Counter
	ForwardingEntries prometheus.Gauge
}

// NewLSR builds and registers the LSR collectors.
func NewLSR(reg prometheus.Registerer) *LSR {
	m := &LSR{
		FSOCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rina_lsr_fso_count",
			Help: "Number of Flow State Objects currently in the database.",
		}),
		PropagationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rina_lsr_propagations_total",
			Help: "Total propagation passes run.",
		}),
		RoutingRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rina_lsr_routing_runs_total",
			Help: "Total Dijkstra recomputations run.",
		}),
		ForwardingEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rina_lsr_forwarding_entries",
			Help: "Number of destinations currently in the forwarding table.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FSOCount, m.PropagationsTotal, m.RoutingRunsTotal, m.ForwardingEntries)
	}
	return m
}

// ShimWifi holds the shim-Wi-Fi STA state machine's collectors.
type ShimWifi struct {
	EnrollmentsTotal *prometheus.CounterVec // label "result": success|timeout|failure
	ScansTotal       prometheus.Counter
}

// NewShimWifi builds and registers the shim-Wi-Fi collectors.
func NewShimWifi(reg prometheus.Registerer) *ShimWifi {
	m := &ShimWifi{
		EnrollmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rina_shimwifi_enrollments_total",
			Help: "Total EnrollToDAF outcomes by result.",
		}, []string{"result"}),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rina_shimwifi_scans_total",
			Help: "Total scan ticks issued to the supplicant.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.EnrollmentsTotal, m.ScansTotal)
	}
	return m
}
