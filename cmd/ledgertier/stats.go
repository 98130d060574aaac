package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgertier/ledgertier/internal/report"
)

func statsCmd() *cobra.Command {
	var lookbackDays int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show tier usage and cache statistics",
		Long: `Show how lookups resolved over the lookback window: per-tier attempt
counts, confidence, and latency, plus normalization cache totals and the
inference share (the fraction of attempts that reached the paid tier).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := report.NewService(store)
			lookback := time.Duration(lookbackDays) * 24 * time.Hour
			usage, err := svc.UsageSince(cmd.Context(), lookback, viper.GetInt("aliases.promotion_min_count"))
			if err != nil {
				return err
			}

			fmt.Printf("Usage since %s\n\n", usage.Since.Format("2006-01-02"))

			if len(usage.Tiers) == 0 {
				fmt.Println("No tier activity in the window.")
			} else {
				fmt.Printf("%-12s  %-4s  %7s  %7s  %10s  %10s\n",
					"OPERATION", "TIER", "COUNT", "HITS", "AVG CONF", "AVG MS")
				for _, t := range usage.Tiers {
					fmt.Printf("%-12s  %-4d  %7d  %7d  %10.2f  %10.1f\n",
						t.OperationType, t.Tier, t.Count, t.CacheHits, t.AvgConfidence, t.AvgLatencyMs)
				}
				fmt.Printf("\nInference share: %.1f%%\n", usage.InferenceShare()*100)
			}

			if usage.Cache != nil {
				fmt.Printf("\nNormalization cache: %d entries, %d total hits",
					usage.Cache.Entries, usage.Cache.TotalHits)
				if !usage.Cache.LastAccessed.IsZero() {
					fmt.Printf(", last hit %s", usage.Cache.LastAccessed.Format(time.RFC3339))
				}
				fmt.Println()
			}

			if len(usage.AliasCandidates) > 0 {
				fmt.Println("\nAlias promotion candidates:")
				for _, c := range usage.AliasCandidates {
					fmt.Printf("  %5d  %s\n", c.Count, c.Vendor)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&lookbackDays, "days", 30, "lookback window in days")

	return cmd
}
