package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// Review card property names. The target database must carry columns
// with these exact names; PublishCard writes against them.
const (
	propTitle      = "Name"
	propRecordID   = "Record ID"
	propStatus     = "Status"
	propValidation = "Validation"
	propConfidence = "Confidence"
	propBrand      = "Brand"
	propModelYear  = "Model Year"
	propPrice      = "Price"
	propReason     = "Failure Reason"
	propAxes       = "Unresolved Axes"
)

// statusOpen is the state every new card starts in. Reviewers move cards
// through the workflow by hand; the CLI never advances Status itself.
const statusOpen = "Open"

// PublishCard cards a record into the review database. When a card for
// the record already exists (matched on Record ID) its properties are
// refreshed instead, so re-running a batch never duplicates cards.
// Returns the card's page ID and whether a new card was created.
func PublishCard(ctx context.Context, c Client, dbID string, rec *model.FinalProductRecord) (string, bool, error) {
	existing, err := FindCardByRecordID(ctx, c, dbID, rec.ID)
	if err != nil {
		return "", false, err
	}

	props := cardProperties(rec)

	if existing != nil {
		if _, err := c.UpdatePage(ctx, string(existing.ID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return "", false, eris.Wrapf(err, "notion: refresh review card %s", rec.ID)
		}
		zap.L().Debug("notion: review card refreshed",
			zap.String("record_id", rec.ID),
			zap.String("page_id", string(existing.ID)))
		return string(existing.ID), false, nil
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
		Children:   cardChildren(rec),
	}
	page, err := c.CreatePage(ctx, req)
	if err != nil {
		return "", false, eris.Wrapf(err, "notion: create review card %s", rec.ID)
	}
	zap.L().Info("notion: review card created",
		zap.String("record_id", rec.ID),
		zap.String("model_code", rec.Row.ModelCode),
		zap.String("status", string(rec.ValidationStatus)))
	return string(page.ID), true, nil
}

// cardTitle builds the page title, e.g. "Lynx Rave RE 2026 (LTTA)".
func cardTitle(rec *model.FinalProductRecord) string {
	name := rec.ModelFamily
	if name == "" {
		name = rec.Row.ModelName
	}
	title := strings.TrimSpace(fmt.Sprintf("%s %s %d", rec.Brand, name, rec.ModelYear))
	if rec.Row.ModelCode != "" {
		title += fmt.Sprintf(" (%s)", rec.Row.ModelCode)
	}
	return title
}

func cardProperties(rec *model.FinalProductRecord) notionapi.Properties {
	props := notionapi.Properties{
		propTitle: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(cardTitle(rec)),
		},
		propRecordID: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(rec.ID),
		},
		propStatus: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: statusOpen},
		},
		propValidation: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(rec.ValidationStatus)},
		},
		propConfidence: notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: rec.Scores.Final,
		},
		propBrand: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: rec.Brand},
		},
		propModelYear: notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(rec.ModelYear),
		},
		propPrice: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(strings.TrimSpace(rec.Row.Price.StringFixed(2) + " " + rec.Row.Currency)),
		},
	}

	if rec.FailureReason != "" {
		props[propReason] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(rec.FailureReason),
		}
	}

	if len(rec.UnresolvedAxes) > 0 {
		opts := make([]notionapi.Option, 0, len(rec.UnresolvedAxes))
		for _, axis := range rec.UnresolvedAxes {
			opts = append(opts, notionapi.Option{Name: string(axis)})
		}
		props[propAxes] = notionapi.MultiSelectProperty{
			Type:        notionapi.PropertyTypeMultiSelect,
			MultiSelect: opts,
		}
	}

	return props
}

// cardChildren renders the page body: the raw source row, any hard
// violations, and the audit trail as a bulleted list so reviewers can
// see which stage knocked the record down.
func cardChildren(rec *model.FinalProductRecord) []notionapi.Block {
	blocks := []notionapi.Block{
		paragraph("Source row: " + rec.Row.Text()),
	}

	if len(rec.HardViolations) > 0 {
		blocks = append(blocks, paragraph("Hard violations: "+strings.Join(rec.HardViolations, "; ")))
	}

	if len(rec.AuditTrail) == 0 {
		return blocks
	}

	blocks = append(blocks, notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeHeading2,
		},
		Heading2: notionapi.Heading{RichText: richText("Audit trail")},
	})
	for _, entry := range rec.AuditTrail {
		line := fmt.Sprintf("%s: %s (%.2f)", entry.Stage, entry.Decision, entry.ConfidenceContribution)
		blocks = append(blocks, notionapi.BulletedListItemBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeBulletedListItem,
			},
			BulletedListItem: notionapi.ListItem{RichText: richText(line)},
		})
	}

	return blocks
}

func paragraph(text string) notionapi.ParagraphBlock {
	return notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeParagraph,
		},
		Paragraph: notionapi.Paragraph{RichText: richText(text)},
	}
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}
