package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// HandleRevisionList handles GET /api/boq/revisions.
func HandleRevisionList(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		revs, err := eng.Ledger.ListRevisions()
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"revisions": revs})
	}
}

// HandleRevisionOpen handles POST /api/boq/revisions. Body: {"note": "..."}
// (optional).
func HandleRevisionOpen(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req struct {
			Note string `json:"note"`
		}
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "OpenRevision", "invalid request body")
		}

		rev, err := eng.Ledger.OpenRevision(req.Note)
		if err != nil {
			return ErrorJSON(e, err)
		}
		SetToast(e, "success", fmt.Sprintf("Revision %d opened", rev.Index))
		return e.JSON(http.StatusCreated, rev)
	}
}

// HandleRevisionDelete handles DELETE /api/boq/revisions/{id}.
func HandleRevisionDelete(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		res, err := eng.Ledger.DeleteRevision(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		SetToast(e, "success", fmt.Sprintf("Revision %d deleted", res.RevisionIndex))
		return e.JSON(http.StatusOK, res)
	}
}

// OverrideRequest is the JSON body for setting or updating an override.
type OverrideRequest struct {
	ItemID      string       `json:"item_id"`
	NewQuantity *json.Number `json:"new_quantity"`
	Note        string       `json:"note"`
}

// HandleOverrideSet handles POST /api/boq/revisions/{id}/overrides.
func HandleOverrideSet(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req OverrideRequest
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "SetOverride", "invalid request body")
		}
		if req.ItemID == "" {
			return badRequest(e, "SetOverride", "missing item_id")
		}
		if req.NewQuantity == nil {
			return badRequest(e, "SetOverride", "missing new_quantity")
		}
		qty, err := quantity("new_quantity", req.NewQuantity)
		if err != nil {
			return ErrorJSON(e, err)
		}

		o, err := eng.Ledger.SetOverride(e.Request.PathValue("id"), req.ItemID, qty, req.Note)
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusCreated, o)
	}
}

// HandleOverrideUpdate handles PATCH /api/boq/revisions/{id}/overrides/{itemId}.
func HandleOverrideUpdate(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req OverrideRequest
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "UpdateOverride", "invalid request body")
		}
		if req.NewQuantity == nil {
			return badRequest(e, "UpdateOverride", "missing new_quantity")
		}
		qty, err := quantity("new_quantity", req.NewQuantity)
		if err != nil {
			return ErrorJSON(e, err)
		}

		o, err := eng.Ledger.UpdateOverride(e.Request.PathValue("id"), e.Request.PathValue("itemId"), qty, req.Note)
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, o)
	}
}
