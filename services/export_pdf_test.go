package services

import (
	"testing"
)

func TestGeneratePDF_AllColumns(t *testing.T) {
	result, err := GeneratePDF(sampleExportData("01.01.0010", AllColumns))
	if err != nil {
		t.Fatalf("GeneratePDF() error = %v", err)
	}
	if len(result) < 5 {
		t.Fatal("GeneratePDF() returned empty bytes")
	}
	// PDF files start with %PDF
	if string(result[:5]) != "%PDF-" {
		t.Errorf("result does not start with PDF header, got %q", string(result[:5]))
	}
}

func TestGeneratePDF_NoEntries(t *testing.T) {
	data := sampleExportData("01.01.0010", AllColumns)
	data.Rows = nil
	data.Totals = Totals{}

	result, err := GeneratePDF(data)
	if err != nil {
		t.Fatalf("GeneratePDF() error = %v", err)
	}
	if len(result) == 0 {
		t.Fatal("GeneratePDF() returned empty bytes for sheet without entries")
	}
}

func TestGeneratePDF_ColumnSubsets(t *testing.T) {
	tests := []struct {
		name string
		cols []string
	}{
		{"single text column", []string{"description"}},
		{"single numeric column", []string{"approved_by_project_manager"}},
		{"no drawing", []string{"description", "calculation_sheet_no", "estimated_quantity", "quantity_submitted", "internal_quantity", "approved_by_project_manager", "notes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := ParseColumnSelection(tt.cols)
			if err != nil {
				t.Fatalf("ParseColumnSelection() error = %v", err)
			}
			data := sampleExportData("01.01.0010", cols)
			data.CurrentInfoVersion = 2 // stale banner path
			if _, err := GeneratePDF(data); err != nil {
				t.Fatalf("GeneratePDF() error = %v", err)
			}
		})
	}
}
