package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/kbfw/internal/compiler"
)

var strategiesCmd = &cobra.Command{
	Use:          "strategies",
	Short:        "List build strategies and whether they can run here",
	RunE:         runStrategies,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runStrategies(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	coordinator := compiler.NewCoordinator(newRuntime())
	available := coordinator.ListAvailableStrategies(ctx)

	w := cmd.OutOrStdout()

	for i, s := range compiler.DefaultStrategies() {
		status := "unavailable"
		if slices.Contains(available, s.Name()) {
			status = "available"
		}

		fmt.Fprintf(w, "%d. %-12s %s\n", i+1, s.Name(), status)
	}

	if len(available) == 0 {
		return fmt.Errorf("no strategy available: is the container runtime running?")
	}

	return nil
}
