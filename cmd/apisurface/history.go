package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"apisurface/internal/analysis"
	"apisurface/internal/surface"

	"github.com/spf13/cobra"
)

var historyLibrary string

func init() {
	historyCmd.PersistentFlags().StringVarP(&historyLibrary, "library", "l", "", "Library name (defaults to project.name)")

	historyCmd.AddCommand(historyRecordCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDiffCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Record and compare public API surfaces across versions",
}

var historyRecordCmd = &cobra.Command{
	Use:   "record <version>",
	Short: "Extract the current surface and record it as <version>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := newSource()
		if err != nil {
			return err
		}
		ext, err := src.Extract(cmd.Context(), cfg.Target(), cfg.Project.SearchPaths)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", cfg.Target(), err)
		}
		current := surface.FromExtraction(ext.Nullable, ext.Oblivious)

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		library := libraryName(historyLibrary)
		if err := store.SaveSurface(cmd.Context(), library, args[0], current); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "💾 Recorded %s@%s (%d entries)\n", library, args[0], current.Count())
		return nil
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		library := libraryName(historyLibrary)
		versions, err := store.ListVersions(cmd.Context(), library)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "📭 No versions recorded for %s.\n", library)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tENTRIES\tNULLABLE\tRECORDED")
		for _, v := range versions {
			fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", v.Version, v.Entries, v.NullableEnable, v.RecordedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <version>",
	Short: "Print a recorded surface in PublicAPI file form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		s, err := store.LoadSurface(cmd.Context(), libraryName(historyLibrary), args[0])
		if err != nil {
			return err
		}
		_, err = s.WriteTo(cmd.OutOrStdout())
		return err
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff <from> <to>",
	Short: "Print the delta between two recorded versions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		library := libraryName(historyLibrary)
		from, err := store.LoadSurface(cmd.Context(), library, args[0])
		if err != nil {
			return err
		}
		to, err := store.LoadSurface(cmd.Context(), library, args[1])
		if err != nil {
			return err
		}

		diff := to.GenerateUnshippedDiff(from)
		if _, err := diff.WriteTo(cmd.OutOrStdout()); err != nil {
			return err
		}
		printReport(cmd.ErrOrStderr(), analysis.Summarize(diff))
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <version>",
	Short: "Delete a recorded version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		library := libraryName(historyLibrary)
		if err := store.DeleteSurface(cmd.Context(), library, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted %s@%s\n", library, args[0])
		return nil
	},
}
