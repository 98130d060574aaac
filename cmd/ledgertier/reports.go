package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage expense report lifecycle",
	}

	cmd.AddCommand(reportsShowCmd())
	cmd.AddCommand(reportsStatusCmd())
	cmd.AddCommand(reportsApproveCmd())

	return cmd
}

func reportsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a report and its line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			rpt, err := store.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rpt == nil {
				return fmt.Errorf("report %s: %w", args[0], common.ErrNotFound)
			}

			lines, err := store.GetReportLines(cmd.Context(), rpt.ID)
			if err != nil {
				return err
			}

			fmt.Printf("Report %s  user=%s  status=%s  lines=%d\n\n",
				rpt.ID, rpt.UserID, rpt.Status, len(lines))
			for _, l := range lines {
				fmt.Printf("%s  %-30s  %8.2f  %-10s  %s\n",
					l.Date.Format("2006-01-02"), truncate(l.Vendor, 30),
					l.Amount, l.GLCode, l.Department)
			}
			return nil
		},
	}
}

func reportsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <report-id> <status>",
		Short: "Set a report's status",
		Long: `Set a report's status (draft, generated, submitted, approved, deleted).
Deleted reports drop out of pattern learning; their rows are retained.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := model.ReportStatus(strings.ToUpper(args[1]))
			switch status {
			case model.ReportDraft, model.ReportGenerated, model.ReportSubmitted,
				model.ReportApproved, model.ReportDeleted:
			default:
				return fmt.Errorf("invalid report status %q", args[1])
			}

			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UpdateReportStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Printf("Report %s is now %s\n", args[0], status)
			return nil
		},
	}
}

func reportsApproveCmd() *cobra.Command {
	var skipLearning bool

	cmd := &cobra.Command{
		Use:   "approve <report-id>",
		Short: "Approve a report and learn from its lines",
		Long: `Approve a report and fold its line items into the owner's vendor patterns.
Learning is idempotent per line, so re-approving does not double-count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UpdateReportStatus(cmd.Context(), args[0], model.ReportApproved); err != nil {
				return err
			}
			fmt.Printf("Report %s approved\n", args[0])

			if skipLearning {
				return nil
			}

			stats, err := newLearner(store).LearnFromReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Learned from %d line(s)", stats.LinesProcessed)
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

	cmd.Flags().BoolVar(&skipLearning, "no-learn", false, "approve without updating patterns")

	return cmd
}
