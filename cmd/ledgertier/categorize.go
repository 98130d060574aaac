package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Suggest and confirm GL coding for transactions",
	}

	cmd.AddCommand(categorizeSuggestCmd())
	cmd.AddCommand(categorizeConfirmCmd())
	cmd.AddCommand(categorizeSkipCmd())

	return cmd
}

func categorizeSuggestCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "suggest <transaction-id>",
		Short: "Suggest a GL code and department for a transaction",
		Long: `Suggest a GL code and department for a transaction.

The suggestion resolves through three tiers in order: the vendor alias index,
embedding similarity against verified expenses, then the inference provider.
The tier that answered and its confidence are printed with the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			categorizer, err := newCategorizer(store)
			if err != nil {
				return err
			}

			result, err := categorizer.Suggest(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}

			fmt.Printf("GL code: %s  department: %s\n", result.GLCode, result.Department)
			fmt.Printf("  tier: %d  confidence: %.2f\n", result.Tier, result.Confidence)
			if result.EmbeddingID != "" {
				fmt.Printf("  embedding: %s (confirm to keep it)\n", result.EmbeddingID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID the suggestion is for")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func categorizeConfirmCmd() *cobra.Command {
	var userID, embeddingID string

	cmd := &cobra.Command{
		Use:   "confirm <transaction-id>",
		Short: "Confirm a suggestion as correct",
		Long: `Confirm a suggestion. The transaction's embedding (if one was captured)
is marked verified so it participates in future similarity lookups, and the
vendor pattern is reinforced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			categorizer, err := newCategorizer(store)
			if err != nil {
				return err
			}

			if err := categorizer.Confirm(cmd.Context(), userID, args[0], embeddingID); err != nil {
				return err
			}
			fmt.Println("Confirmed.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID confirming the suggestion")
	cmd.Flags().StringVar(&embeddingID, "embedding", "", "embedding ID captured with the suggestion")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func categorizeSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <transaction-id>",
		Short: "Dismiss a suggestion without feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			categorizer, err := newCategorizer(store)
			if err != nil {
				return err
			}

			categorizer.Skip(cmd.Context(), args[0])
			fmt.Println("Skipped.")
			return nil
		},
	}
}
