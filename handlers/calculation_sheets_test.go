package handlers

import (
	"net/http"
	"strings"
	"testing"

	"boqledger/services"
	"boqledger/testhelpers"
)

const populateBody = `{"calculation_sheets":[
	{"file_name":"cs-01.xlsx","sheet_no":"CS-01","drawing_no":"S-101","description":"Footings",
	 "sections":[{"section_number":"01.01.0010","estimated_quantity":12},{"section_number":"99.99.9999","estimated_quantity":1}]}
]}`

func TestHandlePopulate_ReportAndRerun(t *testing.T) {
	app, eng := newTestEngine(t)
	testhelpers.CreateTestItem(t, app, "01.01.0010", 100)

	rec := call(t, app, HandlePopulate(eng), http.MethodPost, "/api/boq/calculation-sheets", populateBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report services.PopulateReport
	decode(t, rec, &report)
	if report.FilesProcessed != 1 || report.EntriesImported != 1 || len(report.Errors) != 1 {
		t.Errorf("report = %+v", report)
	}
	if !strings.HasPrefix(report.Errors[0].Text, "Error: ") {
		t.Errorf("message = %q", report.Errors[0].Text)
	}

	rec = call(t, app, HandlePopulate(eng), http.MethodPost, "/api/boq/calculation-sheets", populateBody)
	decode(t, rec, &report)
	if report.EntriesImported != 0 || report.Skipped() != 1 {
		t.Errorf("re-run report = %+v", report)
	}
	if n := testhelpers.CountRecords(t, app, "concentration_entries"); n != 1 {
		t.Errorf("expected 1 entry after re-run, got %d", n)
	}
}

func TestHandlePopulate_EmptyRequest(t *testing.T) {
	app, eng := newTestEngine(t)
	rec := call(t, app, HandlePopulate(eng), http.MethodPost, "/", `{"calculation_sheets":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePopulate_BadQuantityReportedPerSection(t *testing.T) {
	app, eng := newTestEngine(t)
	testhelpers.CreateTestItem(t, app, "01.01.0010", 100)
	testhelpers.CreateTestItem(t, app, "02.03.0010", 50)

	body := `{"calculation_sheets":[{"sheet_no":"CS-05","sections":[
		{"section_number":"01.01.0010","estimated_quantity":"twelve"},
		{"section_number":"01.01.0010","estimated_quantity":1e400},
		{"section_number":"02.03.0010","estimated_quantity":"3.5"}
	]}]}`
	rec := call(t, app, HandlePopulate(eng), http.MethodPost, "/api/boq/calculation-sheets", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report services.PopulateReport
	decode(t, rec, &report)
	if report.EntriesImported != 1 || report.Failed() != 2 {
		t.Errorf("report = %+v, want 1 imported and 2 errors", report)
	}
	for _, m := range report.Errors {
		if !strings.HasPrefix(m.Text, "Error: ") || !strings.Contains(m.Text, "invalid quantity") {
			t.Errorf("message = %q", m.Text)
		}
	}
}
