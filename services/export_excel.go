package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// workbookStyles are created once per file and shared by every tab.
type workbookStyles struct {
	title, subtitle, warning int
	header, cell, number     int
	totalLabel, totalNumber  int
}

func newWorkbookStyles(f *excelize.File) (*workbookStyles, error) {
	var s workbookStyles
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	}); err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	if s.subtitle, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 11},
	}); err != nil {
		return nil, fmt.Errorf("create subtitle style: %w", err)
	}

	if s.warning, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 10, Color: "#9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	}); err != nil {
		return nil, fmt.Errorf("create warning style: %w", err)
	}

	// Column header: bold, white text, charcoal background, centered.
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: thinBorders(),
	}); err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if s.cell, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    thinBorders(),
	}); err != nil {
		return nil, fmt.Errorf("create cell style: %w", err)
	}

	numFmt := "#,##0.##"
	if s.number, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 10},
		Border:       thinBorders(),
		CustomNumFmt: &numFmt,
	}); err != nil {
		return nil, fmt.Errorf("create number style: %w", err)
	}

	if s.totalLabel, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F0F0F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorders(),
	}); err != nil {
		return nil, fmt.Errorf("create total label style: %w", err)
	}

	if s.totalNumber, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Size: 11},
		Fill:         excelize.Fill{Type: "pattern", Color: []string{"#F0F0F0"}, Pattern: 1},
		Border:       thinBorders(),
		CustomNumFmt: &numFmt,
	}); err != nil {
		return nil, fmt.Errorf("create total number style: %w", err)
	}

	return &s, nil
}

// GenerateExcel renders a single concentration sheet as a one-tab workbook.
func GenerateExcel(data SheetExportData) ([]byte, error) {
	return GenerateWorkbook([]SheetExportData{data})
}

// GenerateWorkbook renders one tab per concentration sheet. Hidden columns
// are left out of the tab entirely.
func GenerateWorkbook(sheets []SheetExportData) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, newError("GenerateWorkbook", "", ErrNoSheetsSelected)
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newWorkbookStyles(f)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(sheets))
	defaultSheet := f.GetSheetName(0)
	for i, data := range sheets {
		name := uniqueTabName(data.TabName, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("set sheet name: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", name, err)
		}
		if err := writeSheetTab(f, name, data, styles); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheetTab(f *excelize.File, sheet string, data SheetExportData, st *workbookStyles) error {
	nCols := len(data.Columns) + 1 // leading "#" column
	lastCol, _ := excelize.ColumnNumberToName(nCols)

	if err := f.SetColWidth(sheet, "A", "A", 6); err != nil {
		return fmt.Errorf("set col width A: %w", err)
	}
	for i, c := range data.Columns {
		name, _ := excelize.ColumnNumberToName(i + 2)
		if err := f.SetColWidth(sheet, name, name, columnWidth(c)); err != nil {
			return fmt.Errorf("set col width %s: %w", name, err)
		}
	}

	// Header block. Merges span only the visible columns.
	headerLines := []struct {
		text  string
		style int
	}{
		{data.Title, st.title},
		{data.ItemLine(), st.subtitle},
		{data.ContractLine(), st.subtitle},
		{"Project: " + data.Info.ProjectName, st.subtitle},
		{"Contract No: " + data.Info.ContractNo, st.subtitle},
		{"Contractor in charge: " + data.Info.ContractorInCharge, st.subtitle},
		{"Developer: " + data.Info.DeveloperName, st.subtitle},
		{"Generated: " + data.GeneratedAt, st.subtitle},
	}
	if notice := data.StaleNotice(); notice != "" {
		headerLines = append(headerLines, struct {
			text  string
			style int
		}{notice, st.warning})
	}

	row := 1
	for _, l := range headerLines {
		r := fmt.Sprint(row)
		if nCols > 1 {
			if err := f.MergeCell(sheet, "A"+r, lastCol+r); err != nil {
				return fmt.Errorf("merge header row %d: %w", row, err)
			}
		}
		f.SetCellValue(sheet, "A"+r, sanitizeExcelCell(l.text))
		f.SetCellStyle(sheet, "A"+r, lastCol+r, l.style)
		row++
	}
	row++

	// Column headers.
	r := fmt.Sprint(row)
	f.SetCellValue(sheet, "A"+r, "#")
	for i, c := range data.Columns {
		name, _ := excelize.ColumnNumberToName(i + 2)
		f.SetCellValue(sheet, name+r, c.Label())
	}
	f.SetCellStyle(sheet, "A"+r, lastCol+r, st.header)
	row++

	// Entries.
	for n, e := range data.Rows {
		r := fmt.Sprint(row)
		f.SetCellValue(sheet, "A"+r, n+1)
		f.SetCellStyle(sheet, "A"+r, "A"+r, st.cell)
		for i, c := range data.Columns {
			name, _ := excelize.ColumnNumberToName(i + 2)
			if c.Numeric() {
				f.SetCellValue(sheet, name+r, c.quantity(e))
				f.SetCellStyle(sheet, name+r, name+r, st.number)
				continue
			}
			f.SetCellValue(sheet, name+r, sanitizeExcelCell(c.text(e)))
			f.SetCellStyle(sheet, name+r, name+r, st.cell)
		}
		row++
	}

	// Totals row across every entry, manual and computed.
	r = fmt.Sprint(row)
	f.SetCellValue(sheet, "A"+r, "Totals")
	f.SetCellStyle(sheet, "A"+r, "A"+r, st.totalLabel)
	for i, c := range data.Columns {
		name, _ := excelize.ColumnNumberToName(i + 2)
		if c.Numeric() {
			f.SetCellValue(sheet, name+r, c.total(data.Totals))
			f.SetCellStyle(sheet, name+r, name+r, st.totalNumber)
			continue
		}
		f.SetCellStyle(sheet, name+r, name+r, st.totalLabel)
	}

	return nil
}

func columnWidth(c Column) float64 {
	switch c {
	case ColDescription:
		return 40
	case ColNotes:
		return 30
	case ColCalculationSheetNo, ColDrawingNo:
		return 16
	}
	return 14
}

// uniqueTabName makes a valid worksheet name (max 31 chars, no []:*?/\)
// that has not been used yet in this workbook.
func uniqueTabName(base string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(base))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	name = truncateRunes(name, 31)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(name, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote. Excel interprets cells starting with =, +, -,
// @, \t or \r as formulas, which can be abused for code execution or data theft.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns a slice of excelize.Border for thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
