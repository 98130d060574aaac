package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/pattern"
)

func aliasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Manage the vendor alias index",
		Long: `Manage the vendor alias index, the fast path for GL coding.

Aliases map raw vendor text to a canonical name and category. Curated aliases
are entered directly; promoted aliases come from vendors that kept reaching
the inference tier.`,
	}

	cmd.AddCommand(aliasesListCmd())
	cmd.AddCommand(aliasesAddCmd())
	cmd.AddCommand(aliasesDeleteCmd())
	cmd.AddCommand(aliasesCandidatesCmd())
	cmd.AddCommand(aliasesPromoteCmd())
	cmd.AddCommand(aliasesSeedCmd())

	return cmd
}

func aliasesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all vendor aliases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			aliases, err := store.GetAllAliases(cmd.Context())
			if err != nil {
				return err
			}
			if len(aliases) == 0 {
				fmt.Println("No aliases defined.")
				return nil
			}

			fmt.Printf("%-30s  %-30s  %-15s  %-8s  %s\n",
				"CANONICAL", "PATTERN", "CATEGORY", "SOURCE", "MATCHES")
			for _, a := range aliases {
				fmt.Printf("%-30s  %-30s  %-15s  %-8s  %d\n",
					truncate(a.CanonicalName, 30), truncate(a.MatchPattern, 30),
					a.Category, a.Source, a.MatchCount)
			}
			return nil
		},
	}
}

func aliasesAddCmd() *cobra.Command {
	var matchPattern, category string

	cmd := &cobra.Command{
		Use:   "add <canonical-name>",
		Short: "Add or update a curated alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			alias := &model.VendorAlias{
				CanonicalName: args[0],
				MatchPattern:  matchPattern,
				Category:      category,
				Source:        model.AliasSourceCurated,
			}
			if alias.MatchPattern == "" {
				alias.MatchPattern = args[0]
			}

			if err := store.SaveAlias(cmd.Context(), alias); err != nil {
				return err
			}
			fmt.Printf("Alias %q saved\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&matchPattern, "pattern", "p", "", "text to match against vendor descriptions (default: the canonical name)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "GL category the alias resolves to")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func aliasesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <canonical-name>",
		Short: "Delete a vendor alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteAlias(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Alias %q deleted\n", args[0])
			return nil
		},
	}
}

func aliasesCandidatesCmd() *cobra.Command {
	var lookbackDays, minCount int

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Show vendors that keep falling through to inference",
		Long: `Show vendors that repeatedly reached the inference tier over the lookback
window. Each is a candidate for promotion into the alias index so future
lookups resolve at Tier 1.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if minCount <= 0 {
				minCount = viper.GetInt("aliases.promotion_min_count")
			}
			since := time.Now().AddDate(0, 0, -lookbackDays)
			candidates, err := store.GetTopInferenceVendors(cmd.Context(), minCount, since)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Println("No promotion candidates.")
				return nil
			}

			for _, c := range candidates {
				fmt.Printf("%5d  %s\n", c.Count, c.Vendor)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&lookbackDays, "days", 30, "lookback window in days")
	cmd.Flags().IntVar(&minCount, "min-count", 0, "minimum inference hits to qualify (default from config)")

	return cmd
}

func aliasesPromoteCmd() *cobra.Command {
	var canonicalName, category string

	cmd := &cobra.Command{
		Use:   "promote <vendor-text>",
		Short: "Promote an inference-tier vendor into the alias index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			name := canonicalName
			if name == "" {
				name = args[0]
			}
			if category == "" {
				detected, ok := pattern.DetectCategory(args[0], viper.GetFloat64("learning.fuzzy_floor"))
				if !ok {
					return fmt.Errorf("could not infer a category for %q; pass --category", args[0])
				}
				category = detected
				fmt.Printf("Detected category %q\n", category)
			}

			alias := &model.VendorAlias{
				CanonicalName: name,
				MatchPattern:  args[0],
				Category:      category,
				Source:        model.AliasSourcePromoted,
			}
			if err := store.SaveAlias(cmd.Context(), alias); err != nil {
				return err
			}
			fmt.Printf("Promoted %q as alias %q\n", args[0], name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&canonicalName, "name", "n", "", "canonical name (default: the vendor text)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "GL category the alias resolves to (default: detected from the curated catalog)")

	return cmd
}

func aliasesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the curated vendor catalog into the alias index",
		Long: `Install the curated catalog of common travel, subscription, and retail
vendors as aliases. Existing aliases with the same canonical name are
updated; match counts are preserved.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			seeded := 0
			for _, alias := range pattern.CuratedAliases() {
				if err := store.SaveAlias(cmd.Context(), &alias); err != nil {
					return fmt.Errorf("failed to seed alias %q: %w", alias.CanonicalName, err)
				}
				seeded++
			}
			fmt.Printf("Seeded %d curated aliases\n", seeded)
			return nil
		},
	}
}
