package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

var (
	catalogFixture   string
	catalogModifiers string
	familiesBrand    string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the base model catalog",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load base model and modifier fixtures into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		fixture := catalogFixture
		if fixture == "" {
			fixture = cfg.Catalog.FixturePath
		}
		templates, err := catalog.LoadCatalogFile(fixture)
		if err != nil {
			return err
		}

		entries := make([]store.TemplateEntry, 0, len(templates))
		for i := range templates {
			entries = append(entries, store.TemplateEntry{
				Key:      catalog.TemplateKey(&templates[i]),
				Template: templates[i],
			})
		}
		imported, err := st.ImportTemplates(ctx, entries)
		if err != nil {
			return err
		}
		zap.L().Info("catalog loaded",
			zap.String("fixture", fixture),
			zap.Int64("templates", imported),
		)

		modPath := catalogModifiers
		if modPath == "" {
			modPath = cfg.Catalog.ModifiersPath
		}
		if modPath != "" {
			mods, err := catalog.LoadModifiersFile(modPath)
			if err != nil {
				return err
			}
			count, err := st.ImportModifiers(ctx, mods)
			if err != nil {
				return err
			}
			zap.L().Info("modifiers loaded",
				zap.String("fixture", modPath),
				zap.Int64("modifiers", count),
			)
		}

		return nil
	},
}

var catalogFamiliesCmd = &cobra.Command{
	Use:   "families",
	Short: "List model families known for a brand",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		families, err := st.ListFamilies(ctx, familiesBrand)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(families)
	},
}

func init() {
	catalogLoadCmd.Flags().StringVar(&catalogFixture, "fixture", "", "base model fixture path (default from config)")
	catalogLoadCmd.Flags().StringVar(&catalogModifiers, "modifiers", "", "modifier fixture path (default from config)")
	catalogFamiliesCmd.Flags().StringVar(&familiesBrand, "brand", "", "brand to list (required)")
	_ = catalogFamiliesCmd.MarkFlagRequired("brand")
	catalogCmd.AddCommand(catalogLoadCmd)
	catalogCmd.AddCommand(catalogFamiliesCmd)
	rootCmd.AddCommand(catalogCmd)
}
