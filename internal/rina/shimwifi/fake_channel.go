// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package shimwifi

import (
	"context"
	"sync"
)

// FakeChannel is an in-memory SupplicantChannel for tests: requests are
// recorded, and a test drives the state machine forward by pushing Events
// through Emit, the way a real supplicant's monitor channel would.
type FakeChannel struct {
	mu      sync.Mutex
	events  chan Event
	opened  bool
	iface   string
	Calls   []string
	results []ScanResult
}

// NewFakeChannel creates an unopened FakeChannel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{events: make(chan Event, 16)}
}

func (f *FakeChannel) Open(_ context.Context, iface string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	f.iface = iface
	f.Calls = append(f.Calls, "open:"+iface)
	return nil
}

func (f *FakeChannel) Events() <-chan Event { return f.events }

// Emit pushes ev onto the monitor channel, simulating the supplicant.
func (f *FakeChannel) Emit(ev Event) { f.events <- ev }

// SetScanResults configures what ScanResults returns on the next call.
func (f *FakeChannel) SetScanResults(results []ScanResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = results
}

func (f *FakeChannel) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *FakeChannel) Scan(_ context.Context) error {
	f.record("scan")
	return nil
}

func (f *FakeChannel) ScanResults(_ context.Context) ([]ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "scan_results")
	return f.results, nil
}

func (f *FakeChannel) EnableNetwork(_ context.Context, id string) error {
	f.record("enable_network:" + id)
	return nil
}

func (f *FakeChannel) DisableNetwork(_ context.Context, id string) error {
	f.record("disable_network:" + id)
	return nil
}

func (f *FakeChannel) SelectNetwork(_ context.Context, id string) error {
	f.record("select_network:" + id)
	return nil
}

func (f *FakeChannel) SetBSSID(_ context.Context, id, bssid string) error {
	f.record("bssid:" + id + ":" + bssid)
	return nil
}

func (f *FakeChannel) Reassociate(_ context.Context) error {
	f.record("reassociate")
	return nil
}

func (f *FakeChannel) Disconnect(_ context.Context) error {
	f.record("disconnect")
	return nil
}

func (f *FakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opened {
		close(f.events)
		f.opened = false
	}
	return nil
}
