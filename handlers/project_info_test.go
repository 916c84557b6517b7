package handlers

import (
	"net/http"
	"strings"
	"testing"

	"boqledger/services"
	"boqledger/testhelpers"
)

func TestHandleProjectInfo_UpdateThenSync(t *testing.T) {
	app, eng := newTestEngine(t)
	item := testhelpers.CreateTestItem(t, app, "01.01.0010", 100)
	sheet, _ := eng.Sheets.GetOrCreateSheet(item.Id)

	rec := call(t, app, HandleProjectInfoUpdate(eng), http.MethodPut, "/api/boq/project-info",
		`{"project_name":"Harbor Towers","contractor_in_charge":"Main Contractor Ltd.","contract_no":"C-77","developer_name":"Harbor Developments"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var info services.VersionedProjectInfo
	decode(t, rec, &info)
	if info.Version != 2 || info.ProjectName != "Harbor Towers" {
		t.Errorf("info = %+v", info)
	}

	var got services.VersionedProjectInfo
	decode(t, call(t, app, HandleProjectInfoGet(eng), http.MethodGet, "/", ""), &got)
	if got.ContractNo != "C-77" {
		t.Errorf("get = %+v", got)
	}

	var synced struct {
		SheetsUpdated int `json:"sheets_updated"`
	}
	decode(t, call(t, app, HandleProjectInfoSync(eng), http.MethodPost, "/", ""), &synced)
	if synced.SheetsUpdated != 1 {
		t.Errorf("sheets_updated = %d, want 1", synced.SheetsUpdated)
	}
	s, _ := eng.Sheets.GetSheet(sheet.ID)
	if s.Info.ProjectName != "Harbor Towers" || s.InfoVersion != 2 {
		t.Errorf("sheet after sync = %+v", s)
	}
}

func TestHandleProjectInfoUpdate_TooLong(t *testing.T) {
	app, eng := newTestEngine(t)

	rec := call(t, app, HandleProjectInfoUpdate(eng), http.MethodPut, "/",
		`{"project_name":"`+strings.Repeat("x", 300)+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
