package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestCommand(t))
	require.NoError(t, err)

	assert.Equal(t, int64(1225378), cfg.OSM.Relation)
	assert.Equal(t, 10.0, cfg.Compare.Threshold)
	assert.Equal(t, "divergences.geojson", cfg.Output.Path)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("PF__COMPARE__THRESHOLD", "30")
	t.Setenv("PF__COMPARE__MIN_LENGTH", "800")

	cfg, err := loadConfig(newTestCommand(t,
		"--threshold", "15",
		"--relation", "42",
		"--workers", "2",
		"--format", "kml",
	))
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.Compare.Threshold, "Explicit flags beat the environment")
	assert.Equal(t, 800.0, cfg.Compare.MinLength, "Unset flags leave the environment alone")
	assert.Equal(t, int64(42), cfg.OSM.Relation)
	assert.Equal(t, 2, cfg.Compare.Workers)
	assert.Equal(t, "kml", cfg.Output.Format)
}

func TestExecute_MissingReference(t *testing.T) {
	dir := t.TempDir()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"--reference", filepath.Join(dir, "missing.geojson"),
		"--cache-dir", filepath.Join(dir, "cache"),
		"--output", filepath.Join(dir, "divergences.geojson"),
	})

	var err error
	assert.NotPanics(t, func() {
		err = cmd.Execute()
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load reference data")
	assert.NoFileExists(t, filepath.Join(dir, "divergences.geojson"))
}
