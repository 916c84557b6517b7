package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"boqledger/collections"
)

// BOQItem is one contract line item. Quantity fields are never edited in
// place; revisions carry every change.
type BOQItem struct {
	ID                       string  `json:"id"`
	SectionNumber            string  `json:"section_number"`
	Description              string  `json:"description"`
	Unit                     string  `json:"unit"`
	Price                    float64 `json:"price"`
	OriginalContractQuantity float64 `json:"original_contract_quantity"`
}

// ItemRow is one already-parsed row of a BOQ catalog import.
type ItemRow struct {
	SectionNumber            string  `json:"section_number"`
	Description              string  `json:"description"`
	Unit                     string  `json:"unit"`
	Price                    float64 `json:"price"`
	OriginalContractQuantity float64 `json:"original_contract_quantity"`
}

// Validate checks a single import row.
func (r ItemRow) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SectionNumber, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Price, validation.Min(0.0)),
		validation.Field(&r.OriginalContractQuantity, validation.Min(0.0)),
	)
}

// ItemImportReport mirrors the populator report for catalog imports.
type ItemImportReport struct {
	TotalRows int             `json:"total_rows"`
	Imported  int             `json:"imported"`
	Errors    []ReportMessage `json:"errors"`
}

// Catalog is the read side of the BOQ item store plus the write-once import.
type Catalog struct {
	app core.App
}

func NewCatalog(app core.App) *Catalog {
	return &Catalog{app: app}
}

// GetItem loads a BOQ item by record id.
func (c *Catalog) GetItem(id string) (*BOQItem, error) {
	return getItem(c.app, id)
}

// GetItemBySectionNumber resolves the unique business key.
func (c *Catalog) GetItemBySectionNumber(code string) (*BOQItem, error) {
	return getItemBySectionNumber(c.app, code)
}

// ListItems returns every catalog item ordered by section number.
func (c *Catalog) ListItems() ([]BOQItem, error) {
	var records []*core.Record
	err := c.app.RecordQuery(collections.BOQItems).
		OrderBy("section_number ASC").
		All(&records)
	if err != nil {
		return nil, fmt.Errorf("list boq items: %w", err)
	}

	items := make([]BOQItem, 0, len(records))
	for _, r := range records {
		items = append(items, itemFromRecord(r))
	}
	return items, nil
}

// ImportItems creates catalog items from parsed rows. Rows whose section
// number already exists are skipped, never updated, so original quantities
// stay write-once.
func (c *Catalog) ImportItems(rows []ItemRow) (*ItemImportReport, error) {
	report := &ItemImportReport{TotalRows: len(rows), Errors: []ReportMessage{}}

	col, err := c.app.FindCollectionByNameOrId(collections.BOQItems)
	if err != nil {
		return nil, fmt.Errorf("boq_items collection not found: %w", err)
	}

	err = c.app.RunInTransaction(func(txApp core.App) error {
		seen := make(map[string]bool, len(rows))
		for i, row := range rows {
			row.SectionNumber = strings.TrimSpace(row.SectionNumber)
			if err := row.Validate(); err != nil {
				report.Errors = append(report.Errors, errorMessage(
					fmt.Sprintf("row %d", i+1), row.SectionNumber, err.Error()))
				continue
			}

			if seen[row.SectionNumber] {
				report.Errors = append(report.Errors, skippedMessage(
					fmt.Sprintf("row %d", i+1), row.SectionNumber, "section number repeated in import"))
				continue
			}
			seen[row.SectionNumber] = true

			if _, err := getItemBySectionNumber(txApp, row.SectionNumber); err == nil {
				report.Errors = append(report.Errors, skippedMessage(
					fmt.Sprintf("row %d", i+1), row.SectionNumber, "section number already in catalog"))
				continue
			} else if !errors.Is(err, ErrItemNotFound) {
				return err
			}

			r := core.NewRecord(col)
			r.Set("section_number", row.SectionNumber)
			r.Set("description", strings.TrimSpace(row.Description))
			r.Set("unit", strings.TrimSpace(row.Unit))
			r.Set("price", row.Price)
			r.Set("original_contract_quantity", row.OriginalContractQuantity)
			if err := txApp.Save(r); err != nil {
				return fmt.Errorf("save item %s: %w", row.SectionNumber, err)
			}
			report.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.app.Logger().Info("boq catalog import",
		"rows", report.TotalRows,
		"imported", report.Imported,
		"messages", len(report.Errors),
	)
	return report, nil
}

func getItem(app core.App, id string) (*BOQItem, error) {
	r, err := app.FindRecordById(collections.BOQItems, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError("GetItem", id, ErrItemNotFound)
		}
		return nil, fmt.Errorf("find boq item %s: %w", id, err)
	}
	item := itemFromRecord(r)
	return &item, nil
}

func getItemBySectionNumber(app core.App, code string) (*BOQItem, error) {
	r, err := app.FindFirstRecordByFilter(
		collections.BOQItems,
		"section_number = {:code}",
		dbx.Params{"code": strings.TrimSpace(code)},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError("GetItemBySectionNumber", code, ErrItemNotFound)
		}
		return nil, fmt.Errorf("find boq item by section %s: %w", code, err)
	}
	item := itemFromRecord(r)
	return &item, nil
}

func itemFromRecord(r *core.Record) BOQItem {
	return BOQItem{
		ID:                       r.Id,
		SectionNumber:            r.GetString("section_number"),
		Description:              r.GetString("description"),
		Unit:                     r.GetString("unit"),
		Price:                    r.GetFloat("price"),
		OriginalContractQuantity: r.GetFloat("original_contract_quantity"),
	}
}
