package pricelist

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReadCSV loads price-list rows from a CSV stream.
func ReadCSV(r io.Reader, opts Options) (*Result, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1 // distributor exports pad rows unevenly

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "pricelist: read csv")
		}
		rows = append(rows, record)
	}
	return parseRows(rows, opts)
}

// ReadCSVFile loads price-list rows from a CSV file on disk.
func ReadCSVFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "pricelist: open csv")
	}
	defer f.Close()

	res, err := ReadCSV(f, opts)
	if err != nil {
		return nil, err
	}

	zap.L().Info("pricelist: csv loaded",
		zap.String("path", path),
		zap.Int("rows", len(res.Rows)),
		zap.Int("issues", len(res.Issues)),
	)
	return res, nil
}
