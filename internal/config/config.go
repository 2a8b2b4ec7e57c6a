// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the bootstrap configuration for a rinad node: timer
// constants, listen addresses, and PIDM sizing. It intentionally does not
// implement DIFConfiguration or a policy-parameter tree — this is only the
// ambient "how do I start up" layer every long-running process needs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rina.dev/core/internal/errors"
)

// NodeConfig is the bootstrap configuration for one RINA node process.
type NodeConfig struct {
	// NodeAddress is this node's routing address, used as the LSR's "self".
	NodeAddress string `yaml:"node_address"`

	PIDMWidth int `yaml:"pidm_width"`

	MaxAge            time.Duration `yaml:"max_age"`
	AgePeriod         time.Duration `yaml:"age_period"`
	PropagationPeriod time.Duration `yaml:"propagation_period"`
	RoutingPeriod     time.Duration `yaml:"routing_period"`
	WaitUntilRemove   time.Duration `yaml:"wait_until_remove_object"`

	EnrollmentTimeout time.Duration `yaml:"enrollment_timeout"`
	ScanInterval      time.Duration `yaml:"scan_interval"`

	// ListenAddr is where this node accepts N-1 flooding connections from peers.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultNodeConfig returns the defaults every unset field is filled from.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		NodeAddress:       "node-0",
		PIDMWidth:         1 << 16,
		MaxAge:            30 * time.Second,
		AgePeriod:         1 * time.Second,
		PropagationPeriod: 2 * time.Second,
		RoutingPeriod:     5 * time.Second,
		WaitUntilRemove:   5 * time.Second,
		EnrollmentTimeout: 10 * time.Second,
		ScanInterval:      15 * time.Second,
		ListenAddr:        ":7632",
	}
}

// Load reads a YAML file and overlays it on DefaultNodeConfig.
func Load(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, errors.KindPrecondition, "read config %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, errors.KindPrecondition, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the bootstrap invariants a node cannot run without.
func (c NodeConfig) Validate() error {
	if c.PIDMWidth <= 0 {
		return errors.New(errors.KindPrecondition, fmt.Sprintf("pidm_width must be positive, got %d", c.PIDMWidth))
	}
	if c.MaxAge <= 0 || c.AgePeriod <= 0 {
		return errors.New(errors.KindPrecondition, "max_age and age_period must be positive")
	}
	if c.NodeAddress == "" {
		return errors.New(errors.KindPrecondition, "node_address must not be empty")
	}
	return nil
}
