package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/hazardscope/internal/config"
	"github.com/crimson-sun/hazardscope/internal/output/multi"
)

func TestVersionSkipsConfig(t *testing.T) {
	root := rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "hazardscope dev"))
}

func TestAnalyzeRejectsUnknownBackend(t *testing.T) {
	root := rootCommand()
	root.SetArgs([]string{"analyze", "--model", "claude", "a.jpg"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude")
}

func TestBuildOutput(t *testing.T) {
	cfg := config.OutputConfig{
		Format:    "stdout",
		FilePath:  filepath.Join(t.TempDir(), "out", "results.ndjson"),
		Verbosity: "full",
	}

	out, err := buildOutput(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	out, err = buildOutput(cfg, []string{"stdout", "file"})
	require.NoError(t, err)
	m, ok := out.(*multi.Multi)
	require.True(t, ok)
	assert.Equal(t, 2, m.Len())
	require.NoError(t, out.Close())
	assert.FileExists(t, cfg.FilePath)

	_, err = buildOutput(cfg, []string{"webhook"})
	assert.ErrorContains(t, err, "webhook_url")

	_, err = buildOutput(cfg, []string{"printer"})
	assert.ErrorContains(t, err, "unknown output")

	cfg.Verbosity = "loud"
	_, err = buildOutput(cfg, nil)
	assert.Error(t, err)
}
