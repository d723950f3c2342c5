package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/engine"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/pricelist"
)

var (
	batchFile        string
	batchSheet       string
	batchSheetIndex  int
	batchDelimiter   string
	batchBrand       string
	batchYear        int
	batchMarket      string
	batchCurrency    string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Reconcile a distributor price list file",
	Long:  "Reads an XLSX or CSV price list, reconciles every row against the catalog, persists the records, and routes failed or low-confidence rows to the review queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := pricelist.Options{
			SheetName:  batchSheet,
			SheetIndex: batchSheetIndex,
			Brand:      batchBrand,
			ModelYear:  batchYear,
			Market:     batchMarket,
			Currency:   batchCurrency,
		}
		if batchDelimiter != "" {
			opts.Delimiter = []rune(batchDelimiter)[0]
		}

		res, err := pricelist.ReadFile(batchFile, opts)
		if err != nil {
			return err
		}
		for _, issue := range res.Issues {
			zap.L().Warn("row not ingested",
				zap.String("file", batchFile),
				zap.Int("line", issue.Line),
				zap.Error(issue.Err),
			)
		}
		if len(res.Rows) == 0 {
			return eris.Errorf("no usable rows in %s", batchFile)
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.MaxConcurrentRows
		}

		records, rowErrs, err := env.Engine.ReconcileBatch(ctx, res.Rows, concurrency)
		if err != nil {
			return eris.Wrap(err, "reconcile batch")
		}
		for _, re := range rowErrs {
			zap.L().Warn("row rejected",
				zap.Int("index", re.Index),
				zap.String("model_code", re.Row.ModelCode),
				zap.Error(re.Err),
			)
		}

		for _, rec := range records {
			if err := routeRecord(ctx, env, rec); err != nil {
				return err
			}
		}

		counts := engine.Summarize(records)
		zap.L().Info("batch complete",
			zap.String("file", batchFile),
			zap.Int("rows", len(res.Rows)),
			zap.Int("passed", counts[model.StatusPassed]),
			zap.Int("requires_review", counts[model.StatusRequiresReview]),
			zap.Int("failed", counts[model.StatusFailed]),
		)

		out := struct {
			File           string `json:"file"`
			Rows           int    `json:"rows"`
			IngestIssues   int    `json:"ingest_issues"`
			RejectedRows   int    `json:"rejected_rows"`
			Passed         int    `json:"passed"`
			RequiresReview int    `json:"requires_review"`
			Failed         int    `json:"failed"`
		}{
			File:           batchFile,
			Rows:           len(res.Rows),
			IngestIssues:   len(res.Issues),
			RejectedRows:   len(rowErrs),
			Passed:         counts[model.StatusPassed],
			RequiresReview: counts[model.StatusRequiresReview],
			Failed:         counts[model.StatusFailed],
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "price list file, .xlsx or .csv (required)")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	batchCmd.Flags().IntVar(&batchSheetIndex, "sheet-index", 0, "XLSX sheet index")
	batchCmd.Flags().StringVar(&batchDelimiter, "delimiter", "", "CSV delimiter (default: comma)")
	batchCmd.Flags().StringVar(&batchBrand, "brand", "", "brand stamped onto rows without a brand column")
	batchCmd.Flags().IntVar(&batchYear, "year", 0, "model year stamped onto rows without a year column")
	batchCmd.Flags().StringVar(&batchMarket, "market", "", "market code stamped onto rows without a market column")
	batchCmd.Flags().StringVar(&batchCurrency, "currency", "", "currency stamped onto rows without a currency column")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max rows reconciled in parallel (default from config)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
