package pricelist

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "pricelist.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func lynxSheet() [][]string {
	return [][]string{
		{"Lynx MY2026 Dealer Price List", "", "Sweden"},
		{},
		{"Code", "Model", "Package", "Engine", "Track", "Starter", "Display", "Options", "Color", "Price", "Currency", "Market"},
		{"LTTA", "Rave", "RE", "600R E-TEC", "Cobra 3300", "Manual", "7.2 in. digital", "", "Viper Red", "189 900,00", "SEK", "SE"},
		{"LTTB", "Rave", "RE", "850 E-TEC", "Cobra 3500", "Electric", "10.25 in. touchscreen", "Black edition, Studded track", "Black", "214 900,00", "SEK", "SE"},
		{"LTTX", "Rave", "RE", "600R E-TEC", "Cobra 3300", "Manual", "", "", "", "on request", "SEK", "SE"},
	}
}

func TestReadXLSX_PriceList(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"MY2026": lynxSheet()})

	res, err := ReadXLSX(path, Options{Brand: "Lynx", ModelYear: 2026})
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, 6, res.Issues[0].Line)

	row := res.Rows[0]
	assert.Equal(t, "Lynx", row.Brand)
	assert.Equal(t, 2026, row.ModelYear)
	assert.Equal(t, "LTTA", row.ModelCode)
	assert.Equal(t, "Rave", row.ModelName)
	assert.Equal(t, "RE", row.Package)
	assert.Equal(t, "600R E-TEC", row.EngineToken)
	assert.Equal(t, "Cobra 3300", row.TrackToken)
	assert.Equal(t, "Manual", row.StarterToken)
	assert.Equal(t, "7.2 in. digital", row.DisplayToken)
	assert.Equal(t, "Viper Red", row.Color)
	assert.Empty(t, row.OptionModifiers)
	assert.True(t, decimal.RequireFromString("189900").Equal(row.Price))
	assert.Equal(t, "SEK", row.Currency)
	assert.Equal(t, "SE", row.Market)
	assert.Contains(t, row.RawText, "LTTA | Rave | RE")

	assert.Equal(t, []string{"Black edition", "Studded track"}, res.Rows[1].ModifierTokens())
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Cover": {{"nothing here"}},
		"Prices": {
			{"Code", "Model", "Price"},
			{"LTTA", "Rave RE", "189900"},
		},
	})

	res, err := ReadXLSX(path, Options{SheetName: "Prices", Brand: "Lynx", ModelYear: 2026})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "LTTA", res.Rows[0].ModelCode)
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadXLSX(path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadXLSX(path, Options{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "absent.xlsx"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open xlsx")
}

func TestReadFile_DispatchesByExtension(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"MY2026": lynxSheet()})

	res, err := ReadFile(path, Options{Brand: "Lynx", ModelYear: 2026})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)

	_, err = ReadFile("list.pdf", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
