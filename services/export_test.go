package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/pocketbase/pocketbase"
	"github.com/xuri/excelize/v2"

	"boqledger/testhelpers"
)

// seedSheets creates one populated sheet per section number and returns the
// sheet ids in the same order.
func seedSheets(t *testing.T, app *pocketbase.PocketBase, eng *Engine, sections ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(sections))
	for _, sec := range sections {
		item := testhelpers.CreateTestItem(t, app, sec, 100)
		sheet, err := eng.Sheets.GetOrCreateSheet(item.Id)
		if err != nil {
			t.Fatalf("GetOrCreateSheet(%s) error = %v", sec, err)
		}
		if _, err := eng.Sheets.CreateEntry(sheet.ID, EntryFields{
			Description: "Manual " + sec, DrawingNo: "S-" + sec, EstimatedQuantity: 10,
		}); err != nil {
			t.Fatalf("CreateEntry(%s) error = %v", sec, err)
		}
		testhelpers.CreateTestEntry(t, app, sheet.ID, 2, "D-"+sec, 5, false)
		ids = append(ids, sheet.ID)
	}
	return ids
}

func TestExportOne_SpreadsheetWithoutDrawingColumn(t *testing.T) {
	app, eng := newTestEngine(t)
	ids := seedSheets(t, app, eng, "01.01.0010")

	cols, _ := ParseColumnSelection([]string{"description", "estimated_quantity", "notes"})
	art, err := eng.Exporter.ExportOne(context.Background(), ids[0], cols, FormatSpreadsheet, "")
	if err != nil {
		t.Fatalf("ExportOne() error = %v", err)
	}
	if art.FileName != "concentration-01.01.0010.xlsx" {
		t.Errorf("file name = %q", art.FileName)
	}
	if art.Sheets != 1 || len(art.StaleSheets) != 0 {
		t.Errorf("artifact = %+v", art)
	}

	b, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	f, err := excelize.OpenReader(bytesReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(f.GetSheetName(0))
	h := headerRow(t, rows)
	if strings.Join(rows[h], "|") != "#|Description|Estimated Qty|Notes" {
		t.Errorf("header = %v", rows[h])
	}
	for _, r := range rows {
		for _, c := range r {
			if strings.HasPrefix(c, "S-01") || strings.HasPrefix(c, "D-01") {
				t.Errorf("drawing number %q leaked into export", c)
			}
		}
	}
}

func TestExportOne_Document(t *testing.T) {
	app, eng := newTestEngine(t)
	ids := seedSheets(t, app, eng, "01.01.0010")

	art, err := eng.Exporter.ExportOne(context.Background(), ids[0], nil, FormatDocument, "de")
	if err != nil {
		t.Fatalf("ExportOne() error = %v", err)
	}
	if art.ContentType != "application/pdf" || filepath.Ext(art.Path) != ".pdf" {
		t.Errorf("artifact = %+v", art)
	}
	b, _ := os.ReadFile(art.Path)
	if len(b) < 5 || string(b[:5]) != "%PDF-" {
		t.Error("artifact is not a PDF")
	}

	job, err := eng.Exporter.GetJob(art.JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.Status != JobSucceeded || job.Locale != "de" || job.SheetCount != 1 || job.ArtifactPath != art.Path {
		t.Errorf("job = %+v", job)
	}
}

func TestExportOne_MissingSheet(t *testing.T) {
	app, eng := newTestEngine(t)

	_, err := eng.Exporter.ExportOne(context.Background(), "nosheet1234567", nil, FormatDocument, "")
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("ExportOne() error = %v, want ErrSheetNotFound", err)
	}

	jobs, _ := app.FindAllRecords("export_jobs")
	if len(jobs) != 1 || jobs[0].GetString("status") != JobFailed || jobs[0].GetString("reason") == "" {
		t.Errorf("expected one failed job with a reason, got %d jobs", len(jobs))
	}
}

func TestExportMany_WorkbookTabs(t *testing.T) {
	app, eng := newTestEngine(t)
	seedSheets(t, app, eng, "02.03.0010", "01.01.0010", "01.01.0020")

	art, err := eng.Exporter.ExportMany(context.Background(), nil, true, nil, FormatSpreadsheet, "")
	if err != nil {
		t.Fatalf("ExportMany() error = %v", err)
	}
	if art.FileName != "concentration-sheets.xlsx" || art.Sheets != 3 {
		t.Errorf("artifact = %+v", art)
	}

	b, _ := os.ReadFile(art.Path)
	f, err := excelize.OpenReader(bytesReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	want := []string{"01.01.0010", "01.01.0020", "02.03.0010"}
	if got := f.GetSheetList(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("tabs = %v, want %v", got, want)
	}
}

func TestExportMany_DocumentArchive(t *testing.T) {
	app, eng := newTestEngine(t)
	ids := seedSheets(t, app, eng, "01.01.0010", "01.01.0020")

	art, err := eng.Exporter.ExportMany(context.Background(),
		[]string{ids[0], "nosheet1234567", ids[1], ids[0]}, false, nil, FormatDocument, "")
	if err != nil {
		t.Fatalf("ExportMany() error = %v", err)
	}
	if art.ContentType != "application/zip" || art.Sheets != 2 {
		t.Errorf("artifact = %+v", art)
	}
	if len(art.Skipped) != 1 || art.Skipped[0] != "nosheet1234567" {
		t.Errorf("skipped = %v", art.Skipped)
	}

	zr, err := zip.OpenReader(art.Path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	sort.Strings(names)
	want := []string{"concentration-01.01.0010.pdf", "concentration-01.01.0020.pdf"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Errorf("archive entries = %v, want %v", names, want)
	}
}

func TestExportMany_DocumentArchiveCollidingNames(t *testing.T) {
	app, eng := newTestEngine(t)
	seedSheets(t, app, eng, "1.1/a", "1.1 a")

	art, err := eng.Exporter.ExportMany(context.Background(), nil, true, nil, FormatDocument, "")
	if err != nil {
		t.Fatalf("ExportMany() error = %v", err)
	}

	zr, err := zip.OpenReader(art.Path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	want := []string{"concentration-1.1_a.pdf", "concentration-1.1_a-2.pdf"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Errorf("archive entries = %v, want %v", names, want)
	}
}

func TestUniqueEntryNames(t *testing.T) {
	entries := []archiveEntry{
		{Name: "concentration-1.1_a.pdf"},
		{Name: "concentration-1.1_a.pdf"},
		{Name: "Concentration-1.1_A.pdf"},
		{Name: "concentration-1.1_a-2.pdf"},
		{Name: "concentration-2.pdf"},
	}
	uniqueEntryNames(entries)

	want := []string{
		"concentration-1.1_a.pdf",
		"concentration-1.1_a-2.pdf",
		"Concentration-1.1_A-3.pdf",
		"concentration-1.1_a-2-2.pdf",
		"concentration-2.pdf",
	}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, e.Name, want[i])
		}
	}
}

func TestExportMany_NoSheetsSelected(t *testing.T) {
	_, eng := newTestEngine(t)

	tests := []struct {
		name string
		ids  []string
		all  bool
	}{
		{"empty list", nil, false},
		{"all on empty catalog", nil, true},
		{"only missing sheets", []string{"nosheet1234567"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Exporter.ExportMany(context.Background(), tt.ids, tt.all, nil, FormatSpreadsheet, "")
			if !errors.Is(err, ErrNoSheetsSelected) {
				t.Errorf("ExportMany() error = %v, want ErrNoSheetsSelected", err)
			}
		})
	}
}

func TestExport_StaleProjectInfoFlagged(t *testing.T) {
	app, eng := newTestEngine(t)
	ids := seedSheets(t, app, eng, "01.01.0010")

	if _, err := eng.ProjectInfo.Update(ProjectInfo{ProjectName: "Renamed"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	art, err := eng.Exporter.ExportOne(context.Background(), ids[0], nil, FormatSpreadsheet, "")
	if err != nil {
		t.Fatalf("ExportOne() error = %v", err)
	}
	if len(art.StaleSheets) != 1 || art.StaleSheets[0] != ids[0] {
		t.Errorf("stale sheets = %v, want [%s]", art.StaleSheets, ids[0])
	}

	if _, err := eng.ProjectInfo.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	art, _ = eng.Exporter.ExportOne(context.Background(), ids[0], nil, FormatSpreadsheet, "")
	if len(art.StaleSheets) != 0 {
		t.Errorf("stale sheets after sync = %v, want none", art.StaleSheets)
	}
}

func TestExport_Cancelled(t *testing.T) {
	app, eng := newTestEngine(t)
	ids := seedSheets(t, app, eng, "01.01.0010")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Exporter.ExportOne(ctx, ids[0], nil, FormatDocument, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("ExportOne() error = %v, want context.Canceled", err)
	}

	matches, _ := filepath.Glob(filepath.Join(eng.Exporter.opts.Dir, "*"))
	if len(matches) != 0 {
		t.Errorf("cancelled export left files behind: %v", matches)
	}
}

func TestExport_GetJobNotFound(t *testing.T) {
	_, eng := newTestEngine(t)
	if _, err := eng.Exporter.GetJob("nojob123456789"); !errors.Is(err, ErrExportJobNotFound) {
		t.Errorf("GetJob() error = %v, want ErrExportJobNotFound", err)
	}
}

func TestParseColumnSelection(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		want    int
		wantErr bool
	}{
		{"nil selects all", nil, len(AllColumns), false},
		{"subset", []string{"notes", "description"}, 2, false},
		{"duplicates collapse", []string{"notes", "notes"}, 1, false},
		{"empty rejected", []string{}, 0, true},
		{"unknown rejected", []string{"price"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColumnSelection(tt.ids)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidColumn) {
					t.Errorf("error = %v, want ErrInvalidColumn", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d columns, want %d", len(got), tt.want)
			}
		})
	}

	// Display order follows AllColumns, not request order.
	sel, _ := ParseColumnSelection([]string{"notes", "description"})
	if sel[0] != ColDescription || sel[1] != ColNotes {
		t.Errorf("selection order = %v", sel)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"document", FormatDocument, false},
		{"PDF", FormatDocument, false},
		{"spreadsheet", FormatSpreadsheet, false},
		{" xlsx ", FormatSpreadsheet, false},
		{"csv", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnsupportedFormat", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"concentration-01.01.0010", "concentration-01.01.0010"},
		{"a b/c", "a_b_c"},
		{"../etc", "etc"},
		{"", "export"},
	}
	for _, tt := range tests {
		if got := safeFileName(tt.in); got != tt.want {
			t.Errorf("safeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
