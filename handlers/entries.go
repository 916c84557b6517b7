package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// EntryRequest is the JSON body for creating or patching an entry. Pointer
// fields distinguish "absent" from "zero" for patches.
type EntryRequest struct {
	Description              *string      `json:"description"`
	CalculationSheetNo       *string      `json:"calculation_sheet_no"`
	DrawingNo                *string      `json:"drawing_no"`
	EstimatedQuantity        *json.Number `json:"estimated_quantity"`
	QuantitySubmitted        *json.Number `json:"quantity_submitted"`
	InternalQuantity         *json.Number `json:"internal_quantity"`
	ApprovedByProjectManager *json.Number `json:"approved_by_project_manager"`
	Notes                    *string      `json:"notes"`
}

func (r EntryRequest) patch() (services.EntryPatch, error) {
	p := services.EntryPatch{
		Description:        r.Description,
		CalculationSheetNo: r.CalculationSheetNo,
		DrawingNo:          r.DrawingNo,
		Notes:              r.Notes,
	}
	var err error
	if p.EstimatedQuantity, err = optionalQuantity("estimated_quantity", r.EstimatedQuantity); err != nil {
		return p, err
	}
	if p.QuantitySubmitted, err = optionalQuantity("quantity_submitted", r.QuantitySubmitted); err != nil {
		return p, err
	}
	if p.InternalQuantity, err = optionalQuantity("internal_quantity", r.InternalQuantity); err != nil {
		return p, err
	}
	if p.ApprovedByProjectManager, err = optionalQuantity("approved_by_project_manager", r.ApprovedByProjectManager); err != nil {
		return p, err
	}
	return p, nil
}

func (r EntryRequest) fields() (services.EntryFields, error) {
	p, err := r.patch()
	if err != nil {
		return services.EntryFields{}, err
	}
	str := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	num := func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	}
	return services.EntryFields{
		Description:              str(p.Description),
		CalculationSheetNo:       str(p.CalculationSheetNo),
		DrawingNo:                str(p.DrawingNo),
		EstimatedQuantity:        num(p.EstimatedQuantity),
		QuantitySubmitted:        num(p.QuantitySubmitted),
		InternalQuantity:         num(p.InternalQuantity),
		ApprovedByProjectManager: num(p.ApprovedByProjectManager),
		Notes:                    str(p.Notes),
	}, nil
}

// HandleEntryList handles GET /api/boq/sheets/{id}/entries.
func HandleEntryList(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		entries, err := eng.Sheets.ListEntries(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"entries": entries})
	}
}

// HandleEntryCreate handles POST /api/boq/sheets/{id}/entries. New entries
// are always manual.
func HandleEntryCreate(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req EntryRequest
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "CreateEntry", "invalid request body")
		}
		fields, err := req.fields()
		if err != nil {
			return ErrorJSON(e, err)
		}

		entry, err := eng.Sheets.CreateEntry(e.Request.PathValue("id"), fields)
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusCreated, entry)
	}
}

// HandleEntryUpdate handles PATCH /api/boq/entries/{id}.
func HandleEntryUpdate(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req EntryRequest
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "UpdateEntry", "invalid request body")
		}
		patch, err := req.patch()
		if err != nil {
			return ErrorJSON(e, err)
		}
		if len(patch.Present()) == 0 {
			return badRequest(e, "UpdateEntry", "no fields to update")
		}

		entry, err := eng.Sheets.UpdateEntry(e.Request.PathValue("id"), patch)
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, entry)
	}
}

// HandleEntryDelete handles DELETE /api/boq/entries/{id}.
func HandleEntryDelete(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if err := eng.Sheets.DeleteEntry(e.Request.PathValue("id")); err != nil {
			return ErrorJSON(e, err)
		}
		SetToast(e, "success", "Entry deleted")
		return e.NoContent(http.StatusNoContent)
	}
}

// HandleSheetTotals handles GET /api/boq/sheets/{id}/totals and returns the
// totals row reconciled against the item's latest contract quantity.
func HandleSheetTotals(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		rec, err := eng.Sheets.Reconcile(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, rec)
	}
}
