package services

import (
	"fmt"
	"strings"
)

// Format is the artifact type of an export.
type Format string

const (
	FormatDocument    Format = "document"    // PDF
	FormatSpreadsheet Format = "spreadsheet" // XLSX
)

// ParseFormat accepts "document"/"pdf" and "spreadsheet"/"xlsx".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "document", "pdf":
		return FormatDocument, nil
	case "spreadsheet", "xlsx":
		return FormatSpreadsheet, nil
	}
	return "", fieldError("ParseFormat", s, "format", ErrUnsupportedFormat)
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == FormatSpreadsheet {
		return "xlsx"
	}
	return "pdf"
}

// ContentType returns the MIME type of a single artifact in this format.
func (f Format) ContentType() string {
	if f == FormatSpreadsheet {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// Column identifies one entry column in an export.
type Column string

const (
	ColDescription        Column = "description"
	ColCalculationSheetNo Column = "calculation_sheet_no"
	ColDrawingNo          Column = "drawing_no"
	ColEstimated          Column = "estimated_quantity"
	ColSubmitted          Column = "quantity_submitted"
	ColInternal           Column = "internal_quantity"
	ColApproved           Column = "approved_by_project_manager"
	ColNotes              Column = "notes"
)

// AllColumns is every exportable column in display order.
var AllColumns = []Column{
	ColDescription,
	ColCalculationSheetNo,
	ColDrawingNo,
	ColEstimated,
	ColSubmitted,
	ColInternal,
	ColApproved,
	ColNotes,
}

var columnLabels = map[Column]string{
	ColDescription:        "Description",
	ColCalculationSheetNo: "Calc. Sheet No.",
	ColDrawingNo:          "Drawing No.",
	ColEstimated:          "Estimated Qty",
	ColSubmitted:          "Submitted Qty",
	ColInternal:           "Internal Qty",
	ColApproved:           "Approved by PM",
	ColNotes:              "Notes",
}

// Label is the header text for the column.
func (c Column) Label() string { return columnLabels[c] }

// Numeric reports whether the column holds a quantity and gets a total.
func (c Column) Numeric() bool {
	switch c {
	case ColEstimated, ColSubmitted, ColInternal, ColApproved:
		return true
	}
	return false
}

func (c Column) text(e EntryView) string {
	switch c {
	case ColDescription:
		return e.Description
	case ColCalculationSheetNo:
		return e.CalculationSheetNo
	case ColDrawingNo:
		return e.DrawingNo
	case ColNotes:
		return e.Notes
	}
	return ""
}

func (c Column) quantity(e EntryView) float64 {
	switch c {
	case ColEstimated:
		return e.EstimatedQuantity
	case ColSubmitted:
		return e.QuantitySubmitted
	case ColInternal:
		return e.InternalQuantity
	case ColApproved:
		return e.ApprovedByProjectManager
	}
	return 0
}

func (c Column) total(t Totals) float64 {
	switch c {
	case ColEstimated:
		return t.Estimated
	case ColSubmitted:
		return t.Submitted
	case ColInternal:
		return t.Internal
	case ColApproved:
		return t.Approved
	}
	return 0
}

// ColumnSelection is the set of visible columns for one export call, kept in
// display order. It lives only as long as the request.
type ColumnSelection []Column

// ParseColumnSelection turns requested ids into a selection. A nil slice
// selects every column; an empty slice or an unknown id is rejected.
func ParseColumnSelection(ids []string) (ColumnSelection, error) {
	if ids == nil {
		return append(ColumnSelection(nil), AllColumns...), nil
	}
	if len(ids) == 0 {
		return nil, fieldError("ParseColumnSelection", "", "columns", ErrInvalidColumn)
	}

	want := make(map[Column]bool, len(ids))
	for _, id := range ids {
		c := Column(strings.TrimSpace(id))
		if _, ok := columnLabels[c]; !ok {
			return nil, fieldError("ParseColumnSelection", id, "columns", ErrInvalidColumn)
		}
		want[c] = true
	}

	sel := make(ColumnSelection, 0, len(want))
	for _, c := range AllColumns {
		if want[c] {
			sel = append(sel, c)
		}
	}
	return sel, nil
}

// Has reports whether c is visible.
func (s ColumnSelection) Has(c Column) bool {
	for _, x := range s {
		if x == c {
			return true
		}
	}
	return false
}

// SheetExportData holds everything needed to render one concentration sheet.
type SheetExportData struct {
	Title       string
	TabName     string
	GeneratedAt string

	Item               BOQItem
	ContractQuantity   float64
	HasContractUpdates bool
	RevisionIndex      int

	Info               ProjectInfo
	InfoVersion        int
	CurrentInfoVersion int

	Columns ColumnSelection
	Rows    []EntryView
	Totals  Totals

	Numbers *NumberFormatter
}

// InfoStale reports whether the sheet's project-info copy lags the
// canonical record.
func (d SheetExportData) InfoStale() bool {
	return d.InfoVersion < d.CurrentInfoVersion
}

// StaleNotice is the banner printed on exports with a stale copy.
func (d SheetExportData) StaleNotice() string {
	if !d.InfoStale() {
		return ""
	}
	return fmt.Sprintf("Project info copy is out of date (sheet v%d, current v%d). Run project-info sync to refresh.",
		d.InfoVersion, d.CurrentInfoVersion)
}

// ContractLine summarizes the item's effective contract quantity.
func (d SheetExportData) ContractLine() string {
	line := fmt.Sprintf("Contract quantity: %s %s", d.Numbers.Quantity(d.ContractQuantity), d.Item.Unit)
	if d.HasContractUpdates {
		line += fmt.Sprintf(" (revision %d, original %s)",
			d.RevisionIndex, d.Numbers.Quantity(d.Item.OriginalContractQuantity))
	}
	return line
}

// ItemLine is the "section - description" heading of the sheet.
func (d SheetExportData) ItemLine() string {
	if d.Item.Description == "" {
		return d.Item.SectionNumber
	}
	return d.Item.SectionNumber + " - " + d.Item.Description
}

func newSheetExportData(snap *sheetSnapshot, cols ColumnSelection, currentInfoVersion int, nf *NumberFormatter, generatedAt string) SheetExportData {
	return SheetExportData{
		Title:              "Concentration Sheet " + snap.Item.SectionNumber,
		TabName:            snap.Item.SectionNumber,
		GeneratedAt:        generatedAt,
		Item:               snap.Item,
		ContractQuantity:   snap.Latest.Value,
		HasContractUpdates: snap.Latest.HasUpdates,
		RevisionIndex:      snap.Latest.SourceRevisionIndex,
		Info:               snap.Sheet.Info,
		InfoVersion:        snap.Sheet.InfoVersion,
		CurrentInfoVersion: currentInfoVersion,
		Columns:            cols,
		Rows:               snap.Entries,
		Totals:             snap.Totals,
		Numbers:            nf,
	}
}
