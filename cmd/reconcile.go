package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

var (
	recBrand    string
	recYear     int
	recCode     string
	recName     string
	recPackage  string
	recEngine   string
	recTrack    string
	recStarter  string
	recDisplay  string
	recOptions  string
	recColor    string
	recPrice    string
	recCurrency string
	recMarket   string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a single price list row",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		price, err := decimal.NewFromString(recPrice)
		if err != nil {
			return eris.Wrapf(err, "parse price %q", recPrice)
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		row := model.PriceListRow{
			Brand:           recBrand,
			ModelYear:       recYear,
			ModelCode:       recCode,
			ModelName:       recName,
			Package:         recPackage,
			EngineToken:     recEngine,
			TrackToken:      recTrack,
			StarterToken:    recStarter,
			DisplayToken:    recDisplay,
			OptionModifiers: recOptions,
			Color:           recColor,
			Price:           price,
			Currency:        recCurrency,
			Market:          recMarket,
		}

		rec, err := env.Engine.Reconcile(ctx, row)
		if err != nil {
			return eris.Wrap(err, "reconcile row")
		}

		if err := routeRecord(ctx, env, rec); err != nil {
			return err
		}

		zap.L().Info("row reconciled",
			zap.String("model_code", row.ModelCode),
			zap.String("status", string(rec.ValidationStatus)),
			zap.Float64("confidence", rec.Confidence()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&recBrand, "brand", "", "distributor brand (required)")
	reconcileCmd.Flags().IntVar(&recYear, "year", 0, "model year (required)")
	reconcileCmd.Flags().StringVar(&recCode, "code", "", "model code, e.g. LTTA (required)")
	reconcileCmd.Flags().StringVar(&recName, "name", "", "model name (required)")
	reconcileCmd.Flags().StringVar(&recPackage, "package", "", "package or trim level")
	reconcileCmd.Flags().StringVar(&recEngine, "engine", "", "engine variant token")
	reconcileCmd.Flags().StringVar(&recTrack, "track", "", "track variant token")
	reconcileCmd.Flags().StringVar(&recStarter, "starter", "", "starter variant token")
	reconcileCmd.Flags().StringVar(&recDisplay, "display", "", "display variant token")
	reconcileCmd.Flags().StringVar(&recOptions, "options", "", "comma-separated option modifiers")
	reconcileCmd.Flags().StringVar(&recColor, "color", "", "color")
	reconcileCmd.Flags().StringVar(&recPrice, "price", "", "list price (required)")
	reconcileCmd.Flags().StringVar(&recCurrency, "currency", "SEK", "price currency")
	reconcileCmd.Flags().StringVar(&recMarket, "market", "SE", "market code")
	_ = reconcileCmd.MarkFlagRequired("brand")
	_ = reconcileCmd.MarkFlagRequired("year")
	_ = reconcileCmd.MarkFlagRequired("code")
	_ = reconcileCmd.MarkFlagRequired("name")
	_ = reconcileCmd.MarkFlagRequired("price")
	rootCmd.AddCommand(reconcileCmd)
}
