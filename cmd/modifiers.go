package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/registry"
)

var modifiersBrand string

var modifiersCmd = &cobra.Command{
	Use:   "modifiers",
	Short: "Manage the option modifier registry",
}

var modifiersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered option modifiers for a brand",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		mods, err := st.ListModifiers(ctx, modifiersBrand)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mods)
	},
}

var modifiersPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote recurring externally resolved modifiers into the registry",
	Long:  "Scans passed records for option modifiers that were resolved externally, and registers the ones seen often enough at high enough confidence so future runs resolve them locally.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		promoter := registry.NewPromoter(st, registry.NewStoreRegistry(st), registry.PromotionPolicy{
			MinConfidence: cfg.Promotion.MinConfidence,
			MinSightings:  cfg.Promotion.MinSightings,
		})

		candidates, err := promoter.Run(ctx)
		if err != nil {
			return err
		}

		promoted := 0
		for _, c := range candidates {
			if c.Promoted {
				promoted++
			}
		}
		zap.L().Info("promotion pass complete",
			zap.Int("candidates", len(candidates)),
			zap.Int("promoted", promoted),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	},
}

func init() {
	modifiersListCmd.Flags().StringVar(&modifiersBrand, "brand", "", "brand to list (required)")
	_ = modifiersListCmd.MarkFlagRequired("brand")
	modifiersCmd.AddCommand(modifiersListCmd)
	modifiersCmd.AddCommand(modifiersPromoteCmd)
	rootCmd.AddCommand(modifiersCmd)
}
