package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func embeddingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Maintain the expense similarity index",
	}

	cmd.AddCommand(embeddingsPurgeCmd())
	cmd.AddCommand(embeddingsVerifyCmd())

	return cmd
}

func embeddingsPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired unverified embeddings",
		Long: `Remove unverified embeddings past their retention window. Verified
embeddings are permanent and never purged. Re-running is a no-op once the
expired rows are gone, so the command is safe to schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			purged, err := newIndex(store).PurgeExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("Purged %d embedding(s)\n", purged)
			return nil
		},
	}
}

func embeddingsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <embedding-id>",
		Short: "Promote an embedding into the verified pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := newIndex(store).MarkVerified(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Embedding %s verified\n", args[0])
			return nil
		},
	}
}
