package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/kbfw/internal/artifacts"
	"github.com/Norgate-AV/kbfw/internal/fsio"
)

var validateCmd = &cobra.Command{
	Use:          "validate FILE...",
	Short:        "Check firmware files for size and UF2 format",
	RunE:         runValidate,
	SilenceUsage: true,
	Args:         cobra.MinimumNArgs(1),
}

func init() {
	validateCmd.Flags().Bool("json", false, "Print the report as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	report := artifacts.NewValidator(fsio.NewOS()).GetValidationReport(args)
	w := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		for _, f := range report.Files {
			if f.Valid {
				fmt.Fprintf(w, "ok       %s (%s)\n", f.Path, formatSize(f.Size))
				continue
			}

			fmt.Fprintf(w, "invalid  %s: %s\n", f.Path, f.Error)
		}
	}

	if !report.AllValid() {
		return fmt.Errorf("%d of %d files failed validation", report.Invalid, len(report.Files))
	}

	return nil
}
