// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kfa

import "rina.dev/core/internal/rina/pidm"

// Provider is the downward surface an IPCP must implement to back a Flow.
// SduWrite takes ownership of sdu and transmits it on the N-1 flow backing
// port.
type Provider interface {
	SduWrite(port pidm.PortId, sdu SDU) error
}

// ProviderFunc adapts a plain function to a Provider, letting tests satisfy
// the interface without a dedicated mock type.
type ProviderFunc func(port pidm.PortId, sdu SDU) error

func (f ProviderFunc) SduWrite(port pidm.PortId, sdu SDU) error { return f(port, sdu) }
