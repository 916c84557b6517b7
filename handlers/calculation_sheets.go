package handlers

import (
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// PopulateRequest is the JSON body of POST /api/boq/calculation-sheets.
type PopulateRequest struct {
	CalculationSheets []services.CalculationSheet `json:"calculation_sheets"`
}

// HandlePopulate handles POST /api/boq/calculation-sheets. Per-file and
// per-section problems are returned in the report, never as a failed
// request.
func HandlePopulate(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req PopulateRequest
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "Populate", "invalid request body")
		}
		if len(req.CalculationSheets) == 0 {
			return badRequest(e, "Populate", "no calculation sheets provided")
		}

		report, err := eng.Populator.Populate(e.Request.Context(), req.CalculationSheets)
		if err != nil {
			return ErrorJSON(e, err)
		}

		SetToast(e, "success", fmt.Sprintf("Imported %d entries from %d files (%d skipped, %d errors)",
			report.EntriesImported, report.FilesProcessed, report.Skipped(), report.Failed()))
		return e.JSON(http.StatusOK, report)
	}
}
