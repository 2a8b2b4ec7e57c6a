// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_address: "A"
pidm_width: 4
age_period: 500ms
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "A", cfg.NodeAddress)
	require.Equal(t, 4, cfg.PIDMWidth)
	require.Equal(t, 500*time.Millisecond, cfg.AgePeriod)
	// Unset fields keep their default.
	require.Equal(t, DefaultNodeConfig().PropagationPeriod, cfg.PropagationPeriod)
}

func TestValidateRejectsBadWidth(t *testing.T) {
	cfg := DefaultNodeConfig()
	cfg.PIDMWidth = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyAddress(t *testing.T) {
	cfg := DefaultNodeConfig()
	cfg.NodeAddress = ""
	require.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
