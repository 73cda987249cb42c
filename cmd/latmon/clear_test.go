package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/netqual/latmon/internal/config"
)

func TestClearDirs(t *testing.T) {
	cfg = config.Default()
	defer func() { flagClearResults, flagClearPlots, flagClearLogs = false, false, false }()

	// no flags selects everything
	assert.Equal(t, []string{"results", "plots", "logs"}, clearDirs())

	flagClearPlots = true
	assert.Equal(t, []string{"plots"}, clearDirs())

	flagClearResults = true
	assert.Equal(t, []string{"results", "plots"}, clearDirs())
}

func TestConfirmClear(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n":    true,
		"Y\n":    true,
		"yes\n":  true,
		"n\n":    false,
		"\n":     false,
		"nope\n": false,
	} {
		cmd := &cobra.Command{}
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetIn(strings.NewReader(input))

		got := confirmClear(cmd, []string{"results", "logs"})
		assert.Equal(t, want, got, "input %q", input)
		assert.Contains(t, out.String(), "permanently delete")
		assert.Contains(t, out.String(), "results")
	}
}
