// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kfa

import (
	"context"

	"rina.dev/core/internal/errors"
)

// Handle is the per-open private state of the character-device surface,
// grounded on the original kernel module's struct iodev_priv: one bound
// PortId per open file, plus the non-blocking flag it was opened with.
type Handle struct {
	kfa       *KFA
	port      PortId
	nonblock  bool
}

// Open allocates a fresh Handle with no bound port, mirroring iodev_open's
// priv->port_id = port_id_bad().
func (k *KFA) Open(nonblock bool) *Handle {
	return &Handle{kfa: k, port: Invalid, nonblock: nonblock}
}

// Bind implements ioctl(BIND, {port_id}): requires port valid and this
// Handle not already bound, grounded on iodev_ioctl's IRATI_FLOW_BIND.
func (h *Handle) Bind(port PortId) error {
	if port == Invalid {
		return errInvalidArgument("bad port id")
	}
	if h.port != Invalid {
		return errBusy("handle already bound")
	}
	h.port = port
	return nil
}

// Write copies buf into an owned SDU and calls flow_write(port, sdu,
// !nonblock). Ownership of buf's bytes passes to the engine even on error
// paths after the SDU is constructed, matching iodev_write's "ownership
// isn't ours anymore" comment once sdu_create succeeds.
func (h *Handle) Write(ctx context.Context, buf []byte) (int, error) {
	if h.port == Invalid {
		return 0, errInvalidArgument("handle not bound")
	}
	if len(buf) == 0 {
		return 0, errInvalidArgument("empty write")
	}

	owned := make([]byte, len(buf))
	copy(owned, buf)
	sdu := SDU{Data: owned}

	n, err := h.kfa.FlowWrite(ctx, h.port, sdu, !h.nonblock)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Read calls flow_read(port, !nonblock). If the returned SDU is longer than
// len(buf), the copy is refused and the SDU discarded: a deliberately
// unforgiving behaviour carried over from iodev_read's "we don't handle
// partial copies".
func (h *Handle) Read(ctx context.Context, buf []byte) (int, error) {
	if h.port == Invalid {
		return 0, errInvalidArgument("handle not bound")
	}

	sdu, err := h.kfa.FlowRead(ctx, h.port, !h.nonblock)
	if err != nil {
		return 0, err
	}

	if len(sdu.Data) > len(buf) {
		return 0, withCode(errors.KindPrecondition, CodeIoError, "sdu longer than read buffer")
	}

	n := copy(buf, sdu.Data)
	return n, nil
}

// PollResult mirrors the readiness bits a poll(2)-style call would report.
type PollResult struct {
	Readable bool
	Writable bool
}

// Poll always reports ready for both directions, the conservative contract
// iodev_poll documents: "we always pretend to be ready".
func (h *Handle) Poll() PollResult {
	return PollResult{Readable: true, Writable: true}
}

// Release frees the Handle's private state. It does not itself deallocate
// the flow, matching iodev_release's TODO-gated behaviour: this
// implementation simply never performs the deallocation iodev_release only
// speculated about.
func (h *Handle) Release() {
	h.port = Invalid
}

// Port returns the PortId this Handle is bound to, or Invalid.
func (h *Handle) Port() PortId { return h.port }
