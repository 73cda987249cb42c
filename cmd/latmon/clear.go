package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netqual/latmon/internal/config"
	"github.com/netqual/latmon/internal/sink"
)

var (
	flagClearResults bool
	flagClearPlots   bool
	flagClearLogs    bool
	flagYes          bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete stored results, plots and logs",
	Long: `Remove the artifact directories this tool has written. With no flags
all three (results, plots, logs) are cleared; --results, --plots and
--logs restrict the set. Asks for confirmation unless --yes is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		dirs := clearDirs()
		if !flagYes && !confirmClear(cmd, dirs) {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}

		removed, err := sink.Clear(dirs...)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to clear")
			return nil
		}
		for _, dir := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", dir)
		}
		return nil
	},
}

// clearDirs resolves which directories the flags select; no flags means
// all of them.
func clearDirs() []string {
	all := !flagClearResults && !flagClearPlots && !flagClearLogs

	var dirs []string
	if all || flagClearResults {
		dirs = append(dirs, cfg.ResultsDir)
	}
	if all || flagClearPlots {
		dirs = append(dirs, cfg.PlotsDir)
	}
	if all || flagClearLogs {
		dirs = append(dirs, cfg.LogDir)
	}
	return dirs
}

func confirmClear(cmd *cobra.Command, dirs []string) bool {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "This will permanently delete:")
	for _, dir := range dirs {
		fmt.Fprintf(out, "  %s\n", dir)
	}
	fmt.Fprint(out, "Proceed? [y/N]: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		return true
	}
	return false
}
