// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package shimwifi

import "context"

// SupplicantChannel is the control + monitor socket to an external
// supplicant process. Requests block for their response; Events delivers
// the asynchronous stream a monitor channel would carry.
type SupplicantChannel interface {
	// Open launches (or attaches to) the supplicant for iface and opens
	// both the control and monitor channels.
	Open(ctx context.Context, iface string) error

	// Events returns the channel of asynchronous supplicant events. Valid
	// only after Open succeeds; closed when the channel is Closed.
	Events() <-chan Event

	Scan(ctx context.Context) error
	ScanResults(ctx context.Context) ([]ScanResult, error)
	EnableNetwork(ctx context.Context, id string) error
	DisableNetwork(ctx context.Context, id string) error // id "all" disables every network
	SelectNetwork(ctx context.Context, id string) error
	SetBSSID(ctx context.Context, id, bssid string) error
	Reassociate(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Close() error
}
