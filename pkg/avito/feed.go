// Package avito renders reconciled product records into the Avito
// Autoload XML feed and uploads it to the marketplace FTP drop.
package avito

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// Autoload category constants for snowmobiles.
const (
	formatVersion = 3
	feedTarget    = "Avito.ru"
	category      = "Мотоциклы и мототехника"
	vehicleType   = "Снегоходы"
	condNew       = "Новое"
	availInStock  = "В наличии"
)

// Feed is the root element of an Autoload XML document.
type Feed struct {
	XMLName       xml.Name `xml:"Ads"`
	FormatVersion int      `xml:"formatVersion,attr"`
	Target        string   `xml:"target,attr"`
	Ads           []Ad     `xml:"Ad"`
}

// Ad is one listing. Field order follows the Autoload template; empty
// optional elements are omitted.
type Ad struct {
	ID             string `xml:"Id"`
	Title          string `xml:"Title"`
	Description    string `xml:"Description"`
	Price          string `xml:"Price"`
	Category       string `xml:"Category"`
	VehicleType    string `xml:"VehicleType"`
	Make           string `xml:"Make"`
	Model          string `xml:"Model"`
	Year           int    `xml:"Year"`
	Kilometrage    int    `xml:"Kilometrage"`
	Condition      string `xml:"Condition"`
	Availability   string `xml:"Availability"`
	EngineCapacity int    `xml:"EngineCapacity,omitempty"`
	EngineType     string `xml:"EngineType,omitempty"`
	Address        string `xml:"Address,omitempty"`
	ContactPhone   string `xml:"ContactPhone,omitempty"`
	CompanyName    string `xml:"CompanyName,omitempty"`
}

// BuilderConfig carries the seller constants repeated on every ad and
// the export gate.
type BuilderConfig struct {
	Company string
	Phone   string
	Address string

	// IncludeReview also exports requires_review records. Failed
	// records are never exportable.
	IncludeReview bool
}

// Builder renders FinalProductRecords into feed ads.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder creates a feed builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build renders the exportable subset of records into a feed and
// returns it with the number of records skipped by the export gate.
func (b *Builder) Build(records []*model.FinalProductRecord) (*Feed, int) {
	feed := &Feed{
		FormatVersion: formatVersion,
		Target:        feedTarget,
	}

	skipped := 0
	for _, rec := range records {
		if !b.exportable(rec) {
			skipped++
			continue
		}
		feed.Ads = append(feed.Ads, b.buildAd(rec))
	}

	zap.L().Info("avito: feed built",
		zap.Int("ads", len(feed.Ads)),
		zap.Int("skipped", skipped),
	)
	return feed, skipped
}

func (b *Builder) exportable(rec *model.FinalProductRecord) bool {
	switch rec.ValidationStatus {
	case model.StatusPassed:
		return true
	case model.StatusRequiresReview:
		return b.cfg.IncludeReview
	default:
		return false
	}
}

func (b *Builder) buildAd(rec *model.FinalProductRecord) Ad {
	ad := Ad{
		ID:           rec.ID,
		Title:        adTitle(rec),
		Description:  adDescription(rec),
		Price:        rec.Row.Price.StringFixed(0),
		Category:     category,
		VehicleType:  vehicleType,
		Make:         rec.Brand,
		Model:        adModel(rec),
		Year:         rec.ModelYear,
		Condition:    condNew,
		Availability: availInStock,
		Address:      b.cfg.Address,
		ContactPhone: b.cfg.Phone,
		CompanyName:  b.cfg.Company,
	}

	if v, ok := rec.Spec.GetPath("engine.displacement_cc"); ok {
		if cc, ok := model.NumericValue(v); ok {
			ad.EngineCapacity = int(math.Round(cc))
		}
	}
	if v, ok := rec.Spec.GetPath("engine.type"); ok {
		if s, ok := v.(string); ok {
			ad.EngineType = s
		}
	}
	return ad
}

func adModel(rec *model.FinalProductRecord) string {
	name := rec.ModelFamily
	if name == "" {
		name = rec.Row.ModelName
	}
	if pkg := strings.TrimSpace(rec.Row.Package); pkg != "" {
		name += " " + pkg
	}
	return name
}

func adTitle(rec *model.FinalProductRecord) string {
	return fmt.Sprintf("Снегоход %s %s %d", rec.Brand, adModel(rec), rec.ModelYear)
}

// specLine describes one description bullet pulled from the spec tree.
type specLine struct {
	path  string
	label string
	unit  string
}

var descriptionLines = []specLine{
	{"engine.type", "Двигатель", ""},
	{"engine.displacement_cc", "Объём двигателя", " куб. см"},
	{"track.length_mm", "Длина гусеницы", " мм"},
	{"track.width_mm", "Ширина гусеницы", " мм"},
	{"starter.type", "Запуск", ""},
	{"display.type", "Приборная панель", ""},
	{"dry_weight_kg", "Сухая масса", " кг"},
	{"color", "Цвет", ""},
}

func adDescription(rec *model.FinalProductRecord) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s, модельный год %d.", rec.Brand, adModel(rec), rec.ModelYear))

	for _, dl := range descriptionLines {
		v, ok := rec.Spec.GetPath(dl.path)
		if !ok {
			continue
		}
		if s := formatSpecValue(v); s != "" {
			lines = append(lines, fmt.Sprintf("%s: %s%s.", dl.label, s, dl.unit))
		}
	}

	if len(rec.Modifiers) > 0 {
		tokens := make([]string, 0, len(rec.Modifiers))
		for _, m := range rec.Modifiers {
			tokens = append(tokens, m.Token)
		}
		lines = append(lines, "Опции: "+strings.Join(tokens, ", ")+".")
	}

	return strings.Join(lines, "\n")
}

func formatSpecValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		if f, ok := model.NumericValue(v); ok {
			if f == math.Trunc(f) {
				return fmt.Sprintf("%.0f", f)
			}
			return fmt.Sprintf("%.1f", f)
		}
		return fmt.Sprintf("%v", v)
	}
}

// Encode writes the feed as UTF-8 XML with the standard declaration.
func (f *Feed) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return eris.Wrap(err, "avito: write xml header")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return eris.Wrap(err, "avito: encode feed")
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return eris.Wrap(err, "avito: write trailing newline")
	}
	return nil
}
