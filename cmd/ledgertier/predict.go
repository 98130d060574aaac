package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/predict"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Generate and resolve classification predictions",
	}

	cmd.AddCommand(predictGenerateCmd())
	cmd.AddCommand(predictListCmd())
	cmd.AddCommand(predictConfirmCmd())
	cmd.AddCommand(predictRejectCmd())
	cmd.AddCommand(predictIgnoreCmd())
	cmd.AddCommand(predictBulkCmd())
	cmd.AddCommand(predictMarkCmd())

	return cmd
}

func predictGenerateCmd() *cobra.Command {
	var userID string
	var transactionIDs []string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate predictions for unprocessed transactions",
		Long: `Generate predictions by matching transactions against the user's learned
vendor patterns. Transactions that already carry a prediction are skipped, so
the command is safe to re-run. With no --transaction flags it considers all of
the user's transactions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			created, err := newGenerator(store).Generate(cmd.Context(), userID, transactionIDs)
			if err != nil {
				return err
			}

			fmt.Printf("Created %d prediction(s)\n", created)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose transactions to process")
	cmd.Flags().StringSliceVarP(&transactionIDs, "transaction", "t", nil, "specific transaction IDs (repeatable)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func predictListCmd() *cobra.Command {
	var userID string
	var showAll bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending predictions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			pending, err := store.GetPendingPredictions(cmd.Context(), userID)
			if err != nil {
				return err
			}

			shown := 0
			for i := range pending {
				p := &pending[i]
				if !showAll && !predict.Surfaceable(p) {
					continue
				}
				fmt.Printf("%s  txn=%s  pattern=%d  %s\n",
					p.ID, p.TransactionID, p.PatternID, strings.ToLower(string(p.ConfidenceLevel)))
				shown++
			}
			if shown == 0 {
				fmt.Println("No pending predictions.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose predictions to list")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "include low-confidence predictions")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func predictConfirmCmd() *cobra.Command {
	return feedbackCmd("confirm", "Confirm a prediction and reinforce its pattern", predict.ActionConfirm)
}

func predictRejectCmd() *cobra.Command {
	return feedbackCmd("reject", "Reject a prediction and weaken its pattern", predict.ActionReject)
}

func predictIgnoreCmd() *cobra.Command {
	return feedbackCmd("ignore", "Dismiss a prediction without touching its pattern", predict.ActionIgnore)
}

// feedbackCmd builds the single-ID confirm/reject/ignore subcommands, which
// differ only in the action they apply.
func feedbackCmd(use, short string, action predict.BulkAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <prediction-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			fb := newFeedback(store)
			switch action {
			case predict.ActionConfirm:
				err = fb.Confirm(cmd.Context(), args[0])
			case predict.ActionReject:
				err = fb.Reject(cmd.Context(), args[0])
			default:
				err = fb.Ignore(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("Prediction %s: %sed\n", args[0], strings.TrimSuffix(use, "e"))
			return nil
		},
	}
}

func predictBulkCmd() *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "bulk <prediction-id>...",
		Short: "Apply one action to many predictions",
		Long: `Apply confirm, reject, or ignore to a batch of predictions. Each item is
processed independently; failures are reported per item and never abort the
rest of the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := newFeedback(store).Bulk(cmd.Context(), predict.BulkAction(action), args)
			if common.IsValidation(err) {
				return fmt.Errorf("%w (valid actions: confirm, reject, ignore)", err)
			}
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Printf("%s: FAILED: %v\n", r.PredictionID, r.Err)
				}
			}
			fmt.Printf("%d succeeded, %d failed\n", len(results)-failed, failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "confirm", "action to apply (confirm, reject, ignore)")

	return cmd
}

func predictMarkCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "mark <transaction-id> <business|personal>",
		Short: "Manually classify a transaction",
		Long: `Manually classify a transaction that has no prediction. The classification
feeds the pattern learner like any other signal and a resolved, manual-override
prediction is recorded so the transaction is never predicted again.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			class := model.Classification(strings.ToUpper(args[1]))
			if !class.Valid() || class == model.ClassificationUnknown {
				return fmt.Errorf("classification must be business or personal, got %q", args[1])
			}

			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := newFeedback(store).MarkManual(cmd.Context(), userID, args[0], class); err != nil {
				return err
			}
			fmt.Printf("Marked %s as %s\n", args[0], strings.ToLower(string(class)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user making the classification")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
