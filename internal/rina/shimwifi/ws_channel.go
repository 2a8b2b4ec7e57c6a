// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package shimwifi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"rina.dev/core/internal/logging"
)

// WSChannel is a SupplicantChannel backed by a single gorilla/websocket
// connection: requests are JSON frames correlated by id, responses and
// asynchronous events arrive interleaved on the same read loop and are
// routed by frame type, wrapping gorilla/websocket as a single
// bidirectional byte stream.
type WSChannel struct {
	dialer *websocket.Dialer
	url    string
	logger *logging.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan wsFrame
	nextID  uint64

	events chan Event
	closed atomic.Bool
}

type wsFrame struct {
	ID     uint64 `json:"id,omitempty"`
	Kind   string `json:"kind"` // "request", "response", or "event"
	Method string `json:"method,omitempty"`
	Params any    `json:"params,omitempty"`
	Error  string `json:"error,omitempty"`
	Event  *wireEvent `json:"event,omitempty"`
}

type wireEvent struct {
	Kind    string       `json:"kind"`
	Results []ScanResult `json:"results,omitempty"`
}

// NewWSChannel creates a channel that will dial url when Open is called.
func NewWSChannel(url string, logger *logging.Logger) *WSChannel {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WSChannel{
		dialer:  websocket.DefaultDialer,
		url:     url,
		logger:  logger.With("component", "shimwifi-ws"),
		pending: make(map[uint64]chan wsFrame),
		events:  make(chan Event, 16),
	}
}

func (c *WSChannel) Open(ctx context.Context, iface string) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("shim-wifi: dial supplicant control socket: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()

	_, err = c.request(ctx, "open", iface)
	return err
}

func (c *WSChannel) Events() <-chan Event { return c.events }

func (c *WSChannel) readLoop() {
	defer close(c.events)
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("supplicant connection read failed", "error", err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("malformed supplicant frame", "error", err)
			continue
		}

		switch frame.Kind {
		case "response":
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if ok {
				ch <- frame
			}
		case "event":
			if frame.Event == nil {
				continue
			}
			c.events <- decodeEvent(*frame.Event)
		}
	}
}

func decodeEvent(w wireEvent) Event {
	switch w.Kind {
	case "trying_associate":
		return Event{Kind: EvTryingAssociate}
	case "associated":
		return Event{Kind: EvAssociated}
	case "key_negotiated":
		return Event{Kind: EvKeyNegotiated}
	case "connected":
		return Event{Kind: EvConnected}
	case "disconnected":
		return Event{Kind: EvDisconnected}
	case "scan_results_ready":
		return Event{Kind: EvScanResultsReady, Results: w.Results}
	default:
		return Event{Kind: EvDisconnected}
	}
}

// request sends method/params and blocks for the matching response,
// honoring ctx cancellation.
func (c *WSChannel) request(ctx context.Context, method string, params any) (wsFrame, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	ch := make(chan wsFrame, 1)
	c.pending[id] = ch
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return wsFrame{}, fmt.Errorf("shim-wifi: channel not open")
	}

	payload, err := json.Marshal(wsFrame{ID: id, Kind: "request", Method: method, Params: params})
	if err != nil {
		return wsFrame{}, err
	}

	c.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.mu.Unlock()
	if err != nil {
		return wsFrame{}, fmt.Errorf("shim-wifi: send %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp, fmt.Errorf("shim-wifi: %s: %s", method, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return wsFrame{}, ctx.Err()
	}
}

func (c *WSChannel) Scan(ctx context.Context) error {
	_, err := c.request(ctx, "scan", nil)
	return err
}

func (c *WSChannel) ScanResults(ctx context.Context) ([]ScanResult, error) {
	resp, err := c.request(ctx, "scan_results", nil)
	if err != nil {
		return nil, err
	}
	if resp.Event == nil {
		return nil, nil
	}
	return resp.Event.Results, nil
}

func (c *WSChannel) EnableNetwork(ctx context.Context, id string) error {
	_, err := c.request(ctx, "enable_network", id)
	return err
}

func (c *WSChannel) DisableNetwork(ctx context.Context, id string) error {
	_, err := c.request(ctx, "disable_network", id)
	return err
}

func (c *WSChannel) SelectNetwork(ctx context.Context, id string) error {
	_, err := c.request(ctx, "select_network", id)
	return err
}

func (c *WSChannel) SetBSSID(ctx context.Context, id, bssid string) error {
	_, err := c.request(ctx, "bssid", [2]string{id, bssid})
	return err
}

func (c *WSChannel) Reassociate(ctx context.Context) error {
	_, err := c.request(ctx, "reassociate", nil)
	return err
}

func (c *WSChannel) Disconnect(ctx context.Context) error {
	_, err := c.request(ctx, "disconnect", nil)
	return err
}

func (c *WSChannel) Close() error {
	c.closed.Store(true)
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}
