package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"boqledger/collections"
)

// SectionQuantity is one BOQ section referenced by a calculation sheet.
type SectionQuantity struct {
	SectionNumber     string       `json:"section_number"`
	EstimatedQuantity QuantityText `json:"estimated_quantity"`
}

func (s SectionQuantity) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SectionNumber, validation.Required),
	)
}

// CalculationSheet is the already-parsed content of one calculation-sheet
// file. Spreadsheet parsing happens upstream.
type CalculationSheet struct {
	FileName    string            `json:"file_name"`
	SheetNo     string            `json:"sheet_no"`
	DrawingNo   string            `json:"drawing_no"`
	Description string            `json:"description"`
	Sections    []SectionQuantity `json:"sections"`
}

func (c CalculationSheet) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SheetNo, validation.Required),
		validation.Field(&c.Sections, validation.Required),
	)
}

// Report message kinds.
const (
	MessageError   = "error"
	MessageSkipped = "skipped"
)

// ReportMessage is one line of an import report. Kind and the Text prefix
// always agree, so callers may branch on either.
type ReportMessage struct {
	Kind          string `json:"kind"`
	File          string `json:"file"`
	SectionNumber string `json:"section_number,omitempty"`
	Text          string `json:"message"`
}

func errorMessage(file, section, msg string) ReportMessage {
	return ReportMessage{
		Kind:          MessageError,
		File:          file,
		SectionNumber: section,
		Text:          "Error: " + msg,
	}
}

func skippedMessage(file, section, msg string) ReportMessage {
	return ReportMessage{
		Kind:          MessageSkipped,
		File:          file,
		SectionNumber: section,
		Text:          "Skipped: duplicate (" + msg + ")",
	}
}

// PopulateReport summarizes one populator run.
type PopulateReport struct {
	FilesProcessed  int             `json:"files_processed"`
	SheetsImported  int             `json:"sheets_imported"`
	EntriesImported int             `json:"entries_imported"`
	Errors          []ReportMessage `json:"errors"`
}

// Skipped counts the duplicate notices in the report.
func (r *PopulateReport) Skipped() int {
	n := 0
	for _, m := range r.Errors {
		if m.Kind == MessageSkipped {
			n++
		}
	}
	return n
}

// Failed counts the hard errors in the report.
func (r *PopulateReport) Failed() int {
	return len(r.Errors) - r.Skipped()
}

// Populator turns parsed calculation sheets into computed concentration
// entries.
type Populator struct {
	agg *Aggregator
}

func NewPopulator(agg *Aggregator) *Populator {
	return &Populator{agg: agg}
}

// Populate imports every section pair of every calculation sheet. A bad pair
// or file is recorded in the report and the batch continues. Re-importing
// the same input adds nothing and reports only duplicate notices.
func (p *Populator) Populate(ctx context.Context, sheets []CalculationSheet) (*PopulateReport, error) {
	report := &PopulateReport{Errors: []ReportMessage{}}
	logger := p.agg.app.Logger()

	for _, cs := range sheets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.FilesProcessed++

		file := cs.FileName
		if file == "" {
			file = cs.SheetNo
		}

		cs.SheetNo = strings.TrimSpace(cs.SheetNo)
		if err := cs.Validate(); err != nil {
			report.Errors = append(report.Errors, errorMessage(file, "", err.Error()))
			continue
		}

		imported := 0
		for _, sec := range cs.Sections {
			sec.SectionNumber = strings.TrimSpace(sec.SectionNumber)
			created, msg := p.importSection(cs, sec, file)
			if msg != nil {
				report.Errors = append(report.Errors, *msg)
				continue
			}
			if created {
				imported++
			}
		}

		if imported > 0 {
			report.SheetsImported++
			report.EntriesImported += imported
		}
	}

	logger.Info("calculation sheets populated",
		"files", report.FilesProcessed,
		"sheets", report.SheetsImported,
		"entries", report.EntriesImported,
		"skipped", report.Skipped(),
		"failed", report.Failed(),
	)
	return report, nil
}

// importSection handles one (section, quantity) pair. It returns a report
// message instead of an error for every per-pair failure.
func (p *Populator) importSection(cs CalculationSheet, sec SectionQuantity, file string) (bool, *ReportMessage) {
	if err := sec.Validate(); err != nil {
		m := errorMessage(file, sec.SectionNumber, err.Error())
		return false, &m
	}
	qty, err := ParseQuantity("estimated_quantity", string(sec.EstimatedQuantity))
	if err != nil {
		m := errorMessage(file, sec.SectionNumber, err.Error())
		return false, &m
	}

	item, err := getItemBySectionNumber(p.agg.app, sec.SectionNumber)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			err = newError("Populate", sec.SectionNumber, ErrUnknownSectionNumber)
		}
		m := errorMessage(file, sec.SectionNumber, err.Error())
		return false, &m
	}

	sheet, err := p.agg.GetOrCreateSheet(item.ID)
	if err != nil {
		m := errorMessage(file, sec.SectionNumber, err.Error())
		return false, &m
	}

	unlock := p.agg.sheets.Lock(sheet.ID)
	defer unlock()

	created := false
	err = p.agg.app.RunInTransaction(func(txApp core.App) error {
		dup, err := computedEntryExists(txApp, sheet.ID, cs.SheetNo, sec.SectionNumber)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
		_, err = insertEntry(txApp, sheet.ID, EntryFields{
			Description:        cs.Description,
			CalculationSheetNo: cs.SheetNo,
			DrawingNo:          cs.DrawingNo,
			EstimatedQuantity:  qty,
		}, sec.SectionNumber, false)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		m := errorMessage(file, sec.SectionNumber, err.Error())
		return false, &m
	}
	if !created {
		m := skippedMessage(file, sec.SectionNumber,
			fmt.Sprintf("calculation sheet %s already imported for section %s", cs.SheetNo, sec.SectionNumber))
		return false, &m
	}
	return true, nil
}

func computedEntryExists(app core.App, sheetID, sheetNo, section string) (bool, error) {
	_, err := app.FindFirstRecordByFilter(
		collections.ConcentrationEntries,
		"sheet = {:sheet} && calculation_sheet_no = {:no} && section_number = {:section} && is_manual = false",
		dbx.Params{"sheet": sheetID, "no": sheetNo, "section": section},
	)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("dedup lookup: %w", err)
}
