package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"globule-detector/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logLevel, configPath = "info", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigDefaults(t *testing.T) {
	out, err := execute(t, "config", "defaults")
	require.NoError(t, err)

	cfg, err := params.ParseConfig([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, params.DefaultConfig(), *cfg)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("globule:\n  min_diameter: 3\n"), 0o600))
	out, err := execute(t, "config", "validate", "--file", good)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration valid")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("globule:\n  boundary_threshold: 2\n"), 0o600))
	_, err = execute(t, "config", "validate", "--file", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary_threshold")
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo", "--log-level", "error")
	require.NoError(t, err)

	var report struct {
		Stats struct {
			FirstPassIsolated  int `yaml:"first_pass_isolated"`
			SeparatedPieces    int `yaml:"separated_pieces"`
			SecondPassIsolated int `yaml:"second_pass_isolated"`
		} `yaml:"stats"`
		Globules []struct {
			Bounds string `yaml:"bounds"`
		} `yaml:"globules"`
		Memory struct {
			ActiveMats int `yaml:"activemats"`
		} `yaml:"memory"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))

	assert.Equal(t, 1, report.Stats.FirstPassIsolated)
	assert.Equal(t, 2, report.Stats.SeparatedPieces)
	assert.Equal(t, 2, report.Stats.SecondPassIsolated)
	assert.Len(t, report.Globules, 3)
	assert.Zero(t, report.Memory.ActiveMats)
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "demo", "--log-level", "loud")
	assert.Error(t, err)
}
