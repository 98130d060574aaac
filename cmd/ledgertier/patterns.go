package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and manage learned vendor patterns",
	}

	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsSuppressCmd())
	cmd.AddCommand(patternsUnsuppressCmd())
	cmd.AddCommand(patternsRequireReceiptCmd())
	cmd.AddCommand(patternsDeleteCmd())
	cmd.AddCommand(patternsLearnCmd())
	cmd.AddCommand(patternsRebuildCmd())
	cmd.AddCommand(patternsSuggestSplitsCmd())

	return cmd
}

func patternsSuggestSplitsCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "suggest-splits",
		Short: "Show patterns that aggregate distinct vendor variants",
		Long: `Show patterns whose transactions fold in more than one recurring vendor
spelling, such as a marketplace and its subscription billing sharing one
normalized name. Splitting is a manual decision; this command only surfaces
the evidence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			floor := viper.GetFloat64("learning.fuzzy_floor")
			suggestions, err := newLearner(store).SplitSuggestions(cmd.Context(), userID, floor)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Println("No split candidates.")
				return nil
			}

			for _, s := range suggestions {
				fmt.Printf("Pattern %d (%s):\n", s.PatternID, s.NormalizedVendor)
				for _, v := range s.Variants {
					fmt.Printf("  %5d x %-30s  avg $%.2f\n", v.Count, truncate(v.Vendor, 30), v.AverageAmount)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func patternsListCmd() *cobra.Command {
	var userID string
	var includeSuppressed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's learned patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			patterns, err := store.GetPatternsForUser(cmd.Context(), userID, includeSuppressed)
			if err != nil {
				return err
			}
			if len(patterns) == 0 {
				fmt.Println("No patterns learned yet.")
				return nil
			}

			fmt.Printf("%-6s  %-30s  %-10s  %5s  %8s  %9s  %s\n",
				"ID", "VENDOR", "CLASS", "COUNT", "AVG AMT", "ACCURACY", "FLAGS")
			for _, p := range patterns {
				var flags []string
				if p.IsSuppressed {
					flags = append(flags, "suppressed")
				}
				if p.RequiresReceiptMatch {
					flags = append(flags, "receipt")
				}
				fmt.Printf("%-6d  %-30s  %-10s  %5d  %8.2f  %8.0f%%  %s\n",
					p.ID, truncate(p.NormalizedVendor, 30), p.ActiveClassification,
					p.OccurrenceCount, p.AverageAmount, p.AccuracyRate*100,
					strings.Join(flags, ","))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose patterns to list")
	cmd.Flags().BoolVarP(&includeSuppressed, "all", "a", false, "include suppressed patterns")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func patternsSuppressCmd() *cobra.Command {
	return patternFlagCmd("suppress", "Stop a pattern from generating predictions", func(s patternFlagSetter, id int64) error {
		return s.suppressed(id, true)
	})
}

func patternsUnsuppressCmd() *cobra.Command {
	return patternFlagCmd("unsuppress", "Resume predictions for a suppressed pattern", func(s patternFlagSetter, id int64) error {
		return s.suppressed(id, false)
	})
}

func patternsRequireReceiptCmd() *cobra.Command {
	var off bool

	cmd := patternFlagCmd("require-receipt", "Require a receipt match before predicting from a pattern", func(s patternFlagSetter, id int64) error {
		return s.receipt(id, !off)
	})
	cmd.Flags().BoolVar(&off, "off", false, "clear the requirement instead")

	return cmd
}

// patternFlagSetter narrows storage to the two pattern-flag toggles so the
// suppress/unsuppress/require-receipt commands can share a body.
type patternFlagSetter struct {
	suppressed func(id int64, v bool) error
	receipt    func(id int64, v bool) error
}

func patternFlagCmd(use, short string, apply func(patternFlagSetter, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <pattern-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pattern ID %q: %w", args[0], err)
			}

			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			setter := patternFlagSetter{
				suppressed: func(id int64, v bool) error {
					return store.SetPatternSuppressed(cmd.Context(), id, v)
				},
				receipt: func(id int64, v bool) error {
					return store.SetPatternReceiptMatch(cmd.Context(), id, v)
				},
			}
			if err := apply(setter, id); err != nil {
				return err
			}
			fmt.Printf("Pattern %d updated\n", id)
			return nil
		},
	}
}

func patternsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <pattern-id>",
		Short: "Delete a pattern and its predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("deleting a pattern removes its predictions too; re-run with --force")
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pattern ID %q: %w", args[0], err)
			}

			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeletePattern(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Pattern %d deleted\n", id)
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "confirm the deletion")

	return cmd
}

func patternsLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn <report-id>",
		Short: "Fold an approved report's lines into the user's patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := newLearner(store).LearnFromReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Processed %d line(s)", stats.LinesProcessed)
			if stats.LinesSkipped > 0 {
				fmt.Printf(", %d already learned", stats.LinesSkipped)
			}
			if stats.Failures > 0 {
				fmt.Printf(", %d failed", stats.Failures)
			}
			fmt.Println()
			return nil
		},
	}
}

func patternsRebuildCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute a user's patterns from their learnable history",
		Long: `Recompute every pattern's statistics from the user's learnable report lines.
Existing rows are updated in place, so suppression flags, receipt requirements,
and pattern IDs survive the rebuild. Safe to re-run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			updated, err := newLearner(store).Rebuild(cmd.Context(), userID)
			if err != nil {
				return err
			}

			fmt.Printf("Rebuilt %d pattern(s)\n", updated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose patterns to rebuild")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
