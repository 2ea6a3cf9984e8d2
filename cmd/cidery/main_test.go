package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/cidery/pkg/interfaces/cli/commands"
)

func TestParseArgsAllocate(t *testing.T) {
	config, err := parseArgs([]string{
		"allocate",
		"-press-run", "pr-1",
		"-assign", "tank-1=400",
		"-assign", "tank-2=100",
		"-mode", "sugar",
		"-cost-check", "global",
		"-dry-run",
		"-driver", "memory",
		"-format", "json",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, commands.AllocateCommand, config.Command)
	assert.Equal(t, "pr-1", config.PressRunID)
	assert.Equal(t, commands.StringList{"tank-1=400", "tank-2=100"}, config.Assignments)
	assert.Equal(t, "sugar", config.Mode)
	assert.Equal(t, "global", config.CostCheck)
	assert.True(t, config.DryRun)
	assert.Equal(t, "memory", config.DBDriver)
	assert.Equal(t, "json", config.Format)
}

func TestParseArgsSeedAndShow(t *testing.T) {
	config, err := parseArgs([]string{"seed", "-dir", "testdata"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "testdata", config.SeedDir)
	assert.Equal(t, "text", config.Format)

	config, err = parseArgs([]string{"show", "-press-run", "pr-1", "-format", "csv"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, commands.ShowCommand, config.Command)
	assert.Equal(t, "pr-1", config.PressRunID)
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"ferment"}},
		{"flag of another command", []string{"seed", "-press-run", "pr-1"}},
		{"stray argument", []string{"show", "-press-run", "pr-1", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestRunHelpAndUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, commands.ExitOK, run(nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "allocate")

	stdout.Reset()
	assert.Equal(t, commands.ExitUsage, run([]string{"ferment"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "ferment"`)

	stderr.Reset()
	code := run([]string{"allocate", "-driver", "memory", "-assign", "tank-1=10"}, &stdout, &stderr)
	assert.Equal(t, commands.ExitUsage, code)
	assert.Contains(t, stderr.String(), "Error:")
}
