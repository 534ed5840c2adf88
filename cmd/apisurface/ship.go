package main

import (
	"fmt"

	"apisurface/internal/pipeline"

	"github.com/spf13/cobra"
)

var shipDryRun bool

func init() {
	shipCmd.Flags().BoolVar(&shipDryRun, "dry-run", false, "Show the changes to the shipped file without writing")
}

var shipCmd = &cobra.Command{
	Use:   "ship",
	Short: "Move unshipped entries into PublicAPI.Shipped.txt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := pipeline.Ship(cfg.Files.Shipped, cfg.Files.Unshipped, shipDryRun)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if shipDryRun {
			return printFileDiff(out, cfg.Files.Shipped, res.Previous, res.Shipped)
		}
		fmt.Fprintf(out, "🚢 Shipped %d entries; %s now has %d entries.\n", res.Moved, cfg.Files.Shipped, res.Shipped.Count())
		return nil
	},
}
