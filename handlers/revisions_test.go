package handlers

import (
	"net/http"
	"testing"

	"boqledger/services"
	"boqledger/testhelpers"
)

func TestHandleRevisionOpen_Increments(t *testing.T) {
	app, eng := newTestEngine(t)

	for want := 1; want <= 3; want++ {
		rec := call(t, app, HandleRevisionOpen(eng), http.MethodPost, "/api/boq/revisions", `{"note":"round"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		var rev services.Revision
		decode(t, rec, &rev)
		if rev.Index != want {
			t.Errorf("index = %d, want %d", rev.Index, want)
		}
	}

	// An empty body is accepted.
	rec := call(t, app, HandleRevisionOpen(eng), http.MethodPost, "/api/boq/revisions", "")
	if rec.Code != http.StatusCreated {
		t.Errorf("empty body: expected 201, got %d", rec.Code)
	}

	var list struct {
		Revisions []services.Revision `json:"revisions"`
	}
	decode(t, call(t, app, HandleRevisionList(eng), http.MethodGet, "/", ""), &list)
	if len(list.Revisions) != 4 {
		t.Errorf("listed %d revisions, want 4", len(list.Revisions))
	}
}

func TestHandleOverrideSet(t *testing.T) {
	app, eng := newTestEngine(t)
	item := testhelpers.CreateTestItem(t, app, "01.01.0010", 100)
	rev, _ := eng.Ledger.OpenRevision("")

	body := `{"item_id":"` + item.Id + `","new_quantity":130,"note":"site survey"}`
	rec := call(t, app, HandleOverrideSet(eng), http.MethodPost, "/", body, "id", rev.ID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ov services.Override
	decode(t, rec, &ov)
	if ov.NewQuantity != 130 || ov.RevisionIndex != 1 {
		t.Errorf("override = %+v", ov)
	}

	rec = call(t, app, HandleOverrideSet(eng), http.MethodPost, "/", body, "id", rev.ID)
	if rec.Code != http.StatusConflict || errorKind(t, rec) != string(services.KindConflict) {
		t.Errorf("duplicate: expected typed 409, got %d %s", rec.Code, rec.Body.String())
	}

	rec = call(t, app, HandleOverrideUpdate(eng), http.MethodPatch, "/", `{"new_quantity":"140.25"}`,
		"id", rev.ID, "itemId", item.Id)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	lq, _ := eng.Ledger.LatestQuantity(item.Id)
	if lq.Value != 140.25 {
		t.Errorf("latest = %v, want 140.25", lq.Value)
	}
}

func TestHandleOverrideSet_BadInput(t *testing.T) {
	app, eng := newTestEngine(t)
	item := testhelpers.CreateTestItem(t, app, "01.01.0010", 100)
	rev, _ := eng.Ledger.OpenRevision("")

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing item", `{"new_quantity":1}`, http.StatusBadRequest},
		{"missing quantity", `{"item_id":"` + item.Id + `"}`, http.StatusBadRequest},
		{"negative quantity", `{"item_id":"` + item.Id + `","new_quantity":-4}`, http.StatusBadRequest},
		{"unknown item", `{"item_id":"noitem12345678","new_quantity":4}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, app, HandleOverrideSet(eng), http.MethodPost, "/", tt.body, "id", rev.ID)
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleRevisionDelete_RestoresOriginal(t *testing.T) {
	app, eng := newTestEngine(t)
	item := testhelpers.CreateTestItem(t, app, "01.01.0010", 100)
	rev, _ := eng.Ledger.OpenRevision("")
	eng.Ledger.SetOverride(rev.ID, item.Id, 150, "")

	rec := call(t, app, HandleRevisionDelete(eng), http.MethodDelete, "/", "", "id", rev.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res services.RevisionDeletion
	decode(t, rec, &res)
	if len(res.Recomputed) != 1 || res.Recomputed[0].Value != 100 {
		t.Errorf("deletion = %+v", res)
	}

	rec = call(t, app, HandleRevisionDelete(eng), http.MethodDelete, "/", "", "id", rev.ID)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}
