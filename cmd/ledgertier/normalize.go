package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func normalizeCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "normalize <description>",
		Short: "Normalize a raw statement description",
		Long: `Normalize a raw bank statement description into a clean vendor form.

Known descriptions resolve from the normalization cache; unknown ones fall
through to the inference provider and the result is cached for next time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			normalizer, err := newNormalizer(store)
			if err != nil {
				return err
			}

			result, err := normalizer.Normalize(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", result.NormalizedText)
			fmt.Printf("  tier: %d  confidence: %.2f  cached: %v\n", result.Tier, result.Confidence, result.CacheHit)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID the lookup is attributed to")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
