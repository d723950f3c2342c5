// Package pricelist loads distributor price-list files (XLSX, CSV) into
// model.PriceListRow values for the engine. Column positions are not
// fixed: the first row that names a price column and a model code or
// name column is taken as the header, and everything above it (title
// banners, season labels) is ignored.
package pricelist

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// Options configures ingestion of one price-list file.
type Options struct {
	SheetName  string // XLSX only; overrides SheetIndex
	SheetIndex int    // XLSX only; default 0
	Delimiter  rune   // CSV only; default ','

	// Defaults stamped onto every row when the sheet carries no column
	// for them. A row-level cell always wins.
	Brand     string
	ModelYear int
	Market    string
	Currency  string
}

// Issue records a row that could not be ingested.
type Issue struct {
	Line int // 1-based row number in the source file
	Err  error
}

// Result is the outcome of loading one file. Rows that failed to parse
// or validate land in Issues and do not abort the file.
type Result struct {
	Rows   []model.PriceListRow
	Issues []Issue
}

// ReadFile dispatches on the file extension.
func ReadFile(path string, opts Options) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, opts)
	case ".csv":
		return ReadCSVFile(path, opts)
	default:
		return nil, eris.Errorf("pricelist: unsupported file type %q", filepath.Ext(path))
	}
}

type column int

const (
	colUnknown column = iota
	colBrand
	colModelYear
	colModelCode
	colModelName
	colPackage
	colEngine
	colTrack
	colStarter
	colDisplay
	colColor
	colModifiers
	colPrice
	colCurrency
	colMarket
)

// headerAliases maps normalized header cells to row fields. Distributor
// sheets disagree on naming, so each field accepts the spellings seen
// across BRP, Lynx and Ski-Doo lists.
var headerAliases = map[string]column{
	"brand": colBrand,
	"make":  colBrand,

	"model year": colModelYear,
	"year":       colModelYear,
	"my":         colModelYear,

	"model code": colModelCode,
	"code":       colModelCode,
	"sku":        colModelCode,
	"article":    colModelCode,

	"model name": colModelName,
	"model":      colModelName,
	"name":       colModelName,

	"package": colPackage,
	"pkg":     colPackage,
	"trim":    colPackage,

	"engine":        colEngine,
	"engine option": colEngine,
	"motor":         colEngine,

	"track":        colTrack,
	"track option": colTrack,

	"starter": colStarter,
	"start":   colStarter,

	"display":        colDisplay,
	"display option": colDisplay,
	"gauge":          colDisplay,

	"color":  colColor,
	"colour": colColor,

	"options":          colModifiers,
	"option modifiers": colModifiers,
	"modifiers":        colModifiers,
	"spring options":   colModifiers,

	"price":      colPrice,
	"msrp":       colPrice,
	"list price": colPrice,
	"rrp":        colPrice,

	"currency": colCurrency,
	"ccy":      colCurrency,

	"market":  colMarket,
	"country": colMarket,
}

var headerCleaner = strings.NewReplacer("_", " ", "-", " ", ".", " ")

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(headerCleaner.Replace(s)), " ")
}

// columnMap maps cell index to the row field it feeds.
type columnMap map[int]column

func mapHeader(cells []string) columnMap {
	m := make(columnMap)
	seen := make(map[column]bool)
	for i, c := range cells {
		col, ok := headerAliases[normalizeHeader(c)]
		if !ok || seen[col] {
			continue
		}
		m[i] = col
		seen[col] = true
	}
	return m
}

// usable reports whether the mapped columns are enough to build rows:
// a price plus something identifying the model.
func (m columnMap) usable() bool {
	var hasPrice, hasIdent bool
	for _, col := range m {
		switch col {
		case colPrice:
			hasPrice = true
		case colModelCode, colModelName:
			hasIdent = true
		}
	}
	return hasPrice && hasIdent
}

// headerScanLimit bounds how deep into a sheet the header may sit.
const headerScanLimit = 10

func parseRows(rows [][]string, opts Options) (*Result, error) {
	headerIdx := -1
	var cm columnMap
	scan := len(rows)
	if scan > headerScanLimit {
		scan = headerScanLimit
	}
	for i := 0; i < scan; i++ {
		if m := mapHeader(rows[i]); m.usable() {
			headerIdx, cm = i, m
			break
		}
	}
	if headerIdx < 0 {
		return nil, eris.New("pricelist: no usable header row (need a price column and a model code or name column)")
	}

	res := &Result{}
	for i := headerIdx + 1; i < len(rows); i++ {
		line := i + 1
		if blankRow(rows[i]) {
			continue
		}
		row, err := buildRow(cm, rows[i], opts)
		if err == nil {
			err = row.Validate()
		}
		if err != nil {
			res.Issues = append(res.Issues, Issue{Line: line, Err: err})
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func buildRow(cm columnMap, cells []string, opts Options) (model.PriceListRow, error) {
	row := model.PriceListRow{
		Brand:     opts.Brand,
		ModelYear: opts.ModelYear,
		Market:    strings.ToUpper(opts.Market),
		Currency:  strings.ToUpper(opts.Currency),
		RawText:   rawText(cells),
	}

	for idx, raw := range cells {
		col, ok := cm[idx]
		if !ok {
			continue
		}
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		switch col {
		case colBrand:
			row.Brand = val
		case colModelYear:
			year, err := parseYear(val)
			if err != nil {
				return row, err
			}
			row.ModelYear = year
		case colModelCode:
			row.ModelCode = val
		case colModelName:
			row.ModelName = val
		case colPackage:
			row.Package = val
		case colEngine:
			row.EngineToken = val
		case colTrack:
			row.TrackToken = val
		case colStarter:
			row.StarterToken = val
		case colDisplay:
			row.DisplayToken = val
		case colColor:
			row.Color = val
		case colModifiers:
			row.OptionModifiers = val
		case colPrice:
			price, err := ParsePrice(val)
			if err != nil {
				return row, err
			}
			row.Price = price
		case colCurrency:
			row.Currency = strings.ToUpper(val)
		case colMarket:
			row.Market = strings.ToUpper(val)
		}
	}
	return row, nil
}

func rawText(cells []string) string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if t := strings.TrimSpace(c); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " | ")
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// spaceStripper removes the grouping characters price cells carry:
// plain and non-breaking spaces plus the apostrophe some Swiss-style
// exports use.
var spaceStripper = strings.NewReplacer(" ", "", " ", "", " ", "", "'", "")

// ParsePrice parses a price cell in the formats Nordic and Russian
// price lists use: "189 900,00", "189,900.50", "1.234.567", "6990",
// with an optional currency marker around the number. A separator
// followed by exactly one or two digits is the decimal mark; any other
// separator is grouping.
func ParsePrice(s string) (decimal.Decimal, error) {
	cleaned := spaceStripper.Replace(strings.TrimSpace(s))
	cleaned = strings.TrimFunc(cleaned, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ',' && r != '-' && r != '+'
	})
	if cleaned == "" {
		return decimal.Zero, eris.Errorf("pricelist: empty price %q", s)
	}

	comma := strings.LastIndex(cleaned, ",")
	dot := strings.LastIndex(cleaned, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case comma >= 0:
		if decimalSeparator(cleaned, ","):
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case dot >= 0:
		if !decimalSeparator(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "pricelist: parse price %q", s)
	}
	return price, nil
}

func decimalSeparator(s, sep string) bool {
	if strings.Count(s, sep) != 1 {
		return false
	}
	trailing := len(s) - strings.Index(s, sep) - 1
	return trailing >= 1 && trailing <= 2
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	// "MY2026" style
	trimmed := strings.TrimLeftFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if y, err := strconv.Atoi(trimmed); err == nil {
		return y, nil
	}
	return 0, eris.Errorf("pricelist: model year %q", s)
}
