package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadCalculationSheets(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"sheet_no":"CS-01","sections":[{"section_number":"01","estimated_quantity":1}]}]`, 1, false},
		{"wrapped", `{"calculation_sheets":[{"sheet_no":"CS-01"},{"sheet_no":"CS-02"}]}`, 2, false},
		{"malformed", `{"calculation_sheets":`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sheets.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := readCalculationSheets(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readCalculationSheets() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d sheets, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := readCalculationSheets(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
