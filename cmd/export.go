package main

import (
	"bytes"
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/resilience"
	"github.com/borealmotors/reconcile-cli/internal/store"
	"github.com/borealmotors/reconcile-cli/pkg/avito"
)

var (
	exportOut           string
	exportBrand         string
	exportMarket        string
	exportYear          int
	exportIncludeReview bool
	exportUpload        bool
)

// exportPageSize bounds each store read while collecting records.
const exportPageSize = 500

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build the Avito feed from passed records",
	Long:  "Collects passed records (optionally requires-review too), renders them as an Avito Autoload XML feed, and writes it to a file, stdout, or the configured FTP endpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		records, err := collectExportRecords(ctx, st, store.RecordFilter{
			Brand:     exportBrand,
			Market:    exportMarket,
			ModelYear: exportYear,
		}, exportIncludeReview)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.New("no exportable records in store")
		}

		builder := avito.NewBuilder(avito.BuilderConfig{
			Company:       cfg.Avito.Company,
			Phone:         cfg.Avito.Phone,
			Address:       cfg.Avito.Address,
			IncludeReview: exportIncludeReview,
		})
		feed, skipped := builder.Build(records)

		var buf bytes.Buffer
		if err := feed.Encode(&buf); err != nil {
			return err
		}

		zap.L().Info("feed ready",
			zap.Int("ads", len(feed.Ads)),
			zap.Int("skipped", skipped),
		)

		if exportOut != "" {
			if err := os.WriteFile(exportOut, buf.Bytes(), 0o644); err != nil {
				return eris.Wrapf(err, "write feed %s", exportOut)
			}
		} else if !exportUpload {
			if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
				return eris.Wrap(err, "write feed to stdout")
			}
		}

		if !exportUpload {
			return nil
		}

		uploader := avito.NewUploader(avito.UploadConfig{
			Host:       cfg.Avito.FTPHost,
			User:       cfg.Avito.FTPUser,
			Password:   cfg.Avito.FTPPass,
			RemotePath: cfg.Avito.RemotePath,
		})
		data := buf.Bytes()
		return resilience.Do(ctx, resilience.RetryConfig{
			MaxAttempts: 3,
			ShouldRetry: func(err error) bool { return true },
			OnRetry:     resilience.RetryLogger("avito", "upload"),
		}, func(ctx context.Context) error {
			return uploader.Upload(ctx, bytes.NewReader(data))
		})
	},
}

// collectExportRecords pages through the store gathering passed records,
// plus requires-review ones when asked. Status, limit and offset on the
// filter are owned by the pager.
func collectExportRecords(ctx context.Context, st store.Store, filter store.RecordFilter, includeReview bool) ([]*model.FinalProductRecord, error) {
	statuses := []model.ValidationStatus{model.StatusPassed}
	if includeReview {
		statuses = append(statuses, model.StatusRequiresReview)
	}

	var out []*model.FinalProductRecord
	for _, status := range statuses {
		for offset := 0; ; offset += exportPageSize {
			filter.Status = status
			filter.Limit = exportPageSize
			filter.Offset = offset
			page, err := st.ListRecords(ctx, filter)
			if err != nil {
				return nil, err
			}
			for i := range page {
				out = append(out, &page[i])
			}
			if len(page) < exportPageSize {
				break
			}
		}
	}
	return out, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write the feed to this file instead of stdout")
	exportCmd.Flags().StringVar(&exportBrand, "brand", "", "export only this brand")
	exportCmd.Flags().StringVar(&exportMarket, "market", "", "export only this market")
	exportCmd.Flags().IntVar(&exportYear, "year", 0, "export only this model year")
	exportCmd.Flags().BoolVar(&exportIncludeReview, "include-review", false, "also export records awaiting review")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload the feed to the configured FTP endpoint")
	rootCmd.AddCommand(exportCmd)
}
