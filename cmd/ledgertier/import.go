package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgertier/ledgertier/internal/model"
)

// Statement exports are pipe-delimited:
// Date|Description|Vendor|Amount|GL Code|Department
// Transactions use the first four columns; report lines use all six.
const importDateLayout = "2006-01-02"

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions or report lines from CSV exports",
	}

	cmd.AddCommand(importTransactionsCmd())
	cmd.AddCommand(importReportCmd())

	return cmd
}

func importTransactionsCmd() *cobra.Command {
	var userID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "transactions <file>",
		Short: "Import statement transactions",
		Long: `Import statement transactions from a pipe-delimited export.

Expected columns: Date|Description|Vendor|Amount. A header row is detected
and skipped. Rows whose (date, description, amount, user) already exist are
skipped, so re-importing the same file is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readImportFile(args[0])
			if err != nil {
				return err
			}

			transactions := make([]model.Transaction, 0, len(rows))
			for i, row := range rows {
				if len(row) < 4 {
					return fmt.Errorf("line %d: expected at least 4 columns, got %d", i+1, len(row))
				}
				date, amount, err := parseDateAmount(row[0], row[3], i+1)
				if err != nil {
					return err
				}

				txn := model.Transaction{
					Date:        date,
					UserID:      userID,
					Description: strings.TrimSpace(row[1]),
					Vendor:      strings.TrimSpace(row[2]),
					Amount:      amount,
				}
				txn.ID = txn.GenerateHash()
				transactions = append(transactions, txn)
			}

			if dryRun {
				fmt.Printf("Would import %d transaction(s)\n", len(transactions))
				return nil
			}

			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			bar := importBar(len(transactions), "Importing transactions...")
			const batchSize = 100
			for start := 0; start < len(transactions); start += batchSize {
				end := start + batchSize
				if end > len(transactions) {
					end = len(transactions)
				}
				if err := store.SaveTransactions(cmd.Context(), transactions[start:end]); err != nil {
					return fmt.Errorf("failed to save transactions: %w", err)
				}
				_ = bar.Add(end - start)
			}
			fmt.Printf("\nImported %d transaction(s)\n", len(transactions))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user the transactions belong to")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "parse and validate without saving")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func importReportCmd() *cobra.Command {
	var userID, status string

	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Import an expense report with its line items",
		Long: `Import one expense report from a pipe-delimited export.

Expected columns: Date|Description|Vendor|Amount|GL Code|Department. Every
row becomes a line of a single new report. Approve the report afterwards to
feed its lines to the pattern learner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportStatus := model.ReportStatus(strings.ToUpper(status))
			switch reportStatus {
			case model.ReportDraft, model.ReportGenerated, model.ReportSubmitted, model.ReportApproved:
			default:
				return fmt.Errorf("invalid report status %q", status)
			}

			rows, err := readImportFile(args[0])
			if err != nil {
				return err
			}

			reportID := uuid.NewString()
			lines := make([]model.ReportLine, 0, len(rows))
			for i, row := range rows {
				if len(row) < 6 {
					return fmt.Errorf("line %d: expected 6 columns, got %d", i+1, len(row))
				}
				date, amount, err := parseDateAmount(row[0], row[3], i+1)
				if err != nil {
					return err
				}

				lines = append(lines, model.ReportLine{
					ID:          uuid.NewString(),
					ReportID:    reportID,
					Date:        date,
					Description: strings.TrimSpace(row[1]),
					Vendor:      strings.TrimSpace(row[2]),
					Amount:      amount,
					GLCode:      strings.TrimSpace(row[4]),
					Department:  strings.TrimSpace(row[5]),
				})
			}

			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveReport(cmd.Context(), &model.ExpenseReport{
				ID:     reportID,
				UserID: userID,
				Status: reportStatus,
			}); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}

			bar := importBar(len(lines), "Importing report lines...")
			if err := store.SaveReportLines(cmd.Context(), lines); err != nil {
				return fmt.Errorf("failed to save report lines: %w", err)
			}
			_ = bar.Add(len(lines))

			fmt.Printf("\nImported report %s with %d line(s)\n", reportID, len(lines))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user the report belongs to")
	cmd.Flags().StringVarP(&status, "status", "s", string(model.ReportSubmitted), "initial report status")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// readImportFile parses a pipe-delimited export, dropping a leading header
// row when one is present.
func readImportFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '|'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "date") {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s contains no data rows", path)
	}
	return rows, nil
}

func parseDateAmount(dateText, amountText string, line int) (time.Time, float64, error) {
	date, err := time.Parse(importDateLayout, strings.TrimSpace(dateText))
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("line %d: invalid date %q: %w", line, dateText, err)
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(amountText), 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("line %d: invalid amount %q: %w", line, amountText, err)
	}
	return date, amount, nil
}

func importBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
	)
}
