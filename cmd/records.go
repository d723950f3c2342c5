package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

var (
	recordsStatus string
	recordsBrand  string
	recordsMarket string
	recordsYear   int
	recordsLimit  int
	recordsOffset int
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect reconciled product records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reconciled records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListRecords(ctx, store.RecordFilter{
			Status:    model.ValidationStatus(recordsStatus),
			Brand:     recordsBrand,
			Market:    recordsMarket,
			ModelYear: recordsYear,
			Limit:     recordsLimit,
			Offset:    recordsOffset,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one record with its full audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	recordsListCmd.Flags().StringVar(&recordsStatus, "status", "", "filter by validation status (passed, failed, requires_review)")
	recordsListCmd.Flags().StringVar(&recordsBrand, "brand", "", "filter by brand")
	recordsListCmd.Flags().StringVar(&recordsMarket, "market", "", "filter by market code")
	recordsListCmd.Flags().IntVar(&recordsYear, "year", 0, "filter by model year")
	recordsListCmd.Flags().IntVar(&recordsLimit, "limit", 100, "max records returned")
	recordsListCmd.Flags().IntVar(&recordsOffset, "offset", 0, "records to skip")
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	rootCmd.AddCommand(recordsCmd)
}
