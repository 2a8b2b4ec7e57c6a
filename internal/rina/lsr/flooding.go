// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lsr

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"rina.dev/core/internal/logging"
)

// floodMessage is the wire envelope exchanged over an N-1 flow: a type tag
// plus the one payload that type carries.
type floodMessage struct {
	Type string    `json:"type"`
	FSOs []WireFSO `json:"fsos,omitempty"`
}

// Peer is one established N-1 flow this node floods updates over and
// receives updates from, addressed by the local port it was allocated on.
type Peer struct {
	Port int
	conn net.Conn
	enc  *json.Encoder
}

// NewPeer wraps an established connection as a flooding peer bound to
// localPort.
func NewPeer(localPort int, conn net.Conn) *Peer {
	return &Peer{Port: localPort, conn: conn, enc: json.NewEncoder(conn)}
}

// send transmits batch to the peer as one flooding bundle.
func (p *Peer) send(batch []WireFSO) error {
	return p.enc.Encode(floodMessage{Type: "update", FSOs: batch})
}

// Flooder manages the set of peer connections this node floods updates
// over and drives one propagation pass at a time.
type Flooder struct {
	mu     sync.RWMutex
	peers  map[int]*Peer
	logger *logging.Logger
}

// NewFlooder creates an empty Flooder.
func NewFlooder(logger *logging.Logger) *Flooder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Flooder{peers: make(map[int]*Peer), logger: logger.With("component", "lsr-flood")}
}

// AddPeer registers a peer reachable over localPort. Replaces any existing
// peer on the same port.
func (fl *Flooder) AddPeer(p *Peer) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.peers[p.Port] = p
}

// RemovePeer drops the peer bound to localPort, if any.
func (fl *Flooder) RemovePeer(localPort int) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	delete(fl.peers, localPort)
}

// Ports returns the local ports of every currently registered peer.
func (fl *Flooder) Ports() []int {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	out := make([]int, 0, len(fl.peers))
	for p := range fl.peers {
		out = append(out, p)
	}
	return out
}

// ListenAndServe accepts incoming N-1 peer connections and feeds decoded
// update bundles to onUpdate(ingressPort, batch). It runs until the
// listener is closed.
func (fl *Flooder) ListenAndServe(ln net.Listener, onUpdate func(ingressPort int, batch []WireFSO)) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go fl.serveConn(conn, onUpdate)
	}
}

func (fl *Flooder) serveConn(conn net.Conn, onUpdate func(int, []WireFSO)) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	for {
		var msg floodMessage
		if err := dec.Decode(&msg); err != nil {
			fl.logger.Debug("peer connection closed", "addr", conn.RemoteAddr(), "error", err)
			return
		}
		if msg.Type != "update" {
			continue
		}
		port, ok := fl.portForConn(conn)
		if !ok {
			fl.logger.Warn("update from unregistered peer connection", "addr", conn.RemoteAddr())
			continue
		}
		onUpdate(port, msg.FSOs)
	}
}

func (fl *Flooder) portForConn(conn net.Conn) (int, bool) {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	for port, p := range fl.peers {
		if p.conn == conn {
			return port, true
		}
	}
	return 0, false
}

// Propagate runs one flooding pass: collect every modified FSO, build the
// send-set per egress peer excluding the FSO's avoidPort, transmit, and
// clear modified (and avoidPort) on an FSO only once every peer it owed an
// update to has successfully received one.
func (d *DB) Propagate(fl *Flooder) error {
	egressPorts := fl.Ports()

	type pending struct {
		fso   *FSO
		ports []int
	}

	d.mu.Lock()
	bundles := make(map[int][]WireFSO)
	toClear := make([]pending, 0)
	for _, f := range d.fsos {
		if !f.modified {
			continue
		}
		if f.pending == nil {
			f.pending = make(map[int]bool, len(egressPorts))
			for _, port := range egressPorts {
				if port != f.avoidPort {
					f.pending[port] = true
				}
			}
			if len(f.pending) == 0 {
				// Nothing to send this pass (e.g. the only known peer is the
				// one this update arrived on). Nothing is owed, so there's
				// nothing to defer: clear immediately rather than wait
				// forever for a send that will never happen.
				f.modified = false
				f.avoidPort = 0
				f.pending = nil
				continue
			}
		}
		ports := make([]int, 0, len(f.pending))
		for port := range f.pending {
			ports = append(ports, port)
			bundles[port] = append(bundles[port], f.toWire())
		}
		if len(ports) > 0 {
			toClear = append(toClear, pending{fso: f, ports: ports})
		}
	}
	d.mu.Unlock()

	if len(bundles) == 0 {
		return nil
	}

	succeeded := make(map[int]bool, len(bundles))
	var firstErr error
	for port, batch := range bundles {
		fl.mu.RLock()
		p, ok := fl.peers[port]
		fl.mu.RUnlock()
		if !ok {
			continue
		}
		if err := p.send(batch); err != nil {
			fl.logger.Warn("propagation send failed, will retry next pass", "port", port, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("send to port %d: %w", port, err)
			}
			continue
		}
		succeeded[port] = true
	}

	d.mu.Lock()
	for _, pc := range toClear {
		for _, port := range pc.ports {
			if succeeded[port] {
				delete(pc.fso.pending, port)
			}
		}
		if len(pc.fso.pending) == 0 {
			pc.fso.modified = false
			pc.fso.avoidPort = 0
			pc.fso.pending = nil
		}
	}
	if d.metrics != nil {
		d.metrics.PropagationsTotal.Inc()
	}
	d.mu.Unlock()

	return firstErr
}
