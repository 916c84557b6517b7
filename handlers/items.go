package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// HandleItemList handles GET /api/boq/items.
// Items carry their latest contract quantity from the revision ledger.
func HandleItemList(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		items, err := eng.Ledger.ListItemsWithLatestQuantity()
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"items": items})
	}
}

// HandleItemGet handles GET /api/boq/items/{id}.
func HandleItemGet(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		item, err := eng.Catalog.GetItem(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, item)
	}
}

// HandleItemBySection handles GET /api/boq/sections/{code}.
func HandleItemBySection(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		code := e.Request.PathValue("code")
		if code == "" {
			return badRequest(e, "GetItemBySectionNumber", "missing section number")
		}
		item, err := eng.Catalog.GetItemBySectionNumber(code)
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, item)
	}
}

// HandleItemQuantity handles GET /api/boq/items/{id}/quantity.
func HandleItemQuantity(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		lq, err := eng.Ledger.LatestQuantity(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, lq)
	}
}

// HandleItemSheet handles POST /api/boq/items/{id}/sheet and returns the
// item's concentration sheet, creating it on first use.
func HandleItemSheet(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		sheet, err := eng.Sheets.GetOrCreateSheet(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, sheet)
	}
}

// ItemImportRequest is the JSON body of POST /api/boq/items/import.
type ItemImportRequest struct {
	Items []struct {
		SectionNumber            string       `json:"section_number"`
		Description              string       `json:"description"`
		Unit                     string       `json:"unit"`
		Price                    *json.Number `json:"price"`
		OriginalContractQuantity *json.Number `json:"original_contract_quantity"`
	} `json:"items"`
}

// HandleItemImport handles POST /api/boq/items/import.
func HandleItemImport(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req ItemImportRequest
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "ImportItems", "invalid request body")
		}
		if len(req.Items) == 0 {
			return badRequest(e, "ImportItems", "no items provided")
		}

		rows := make([]services.ItemRow, 0, len(req.Items))
		for i, it := range req.Items {
			price, err := quantity("price", it.Price)
			if err != nil {
				return ErrorJSON(e, fmt.Errorf("row %d: %w", i+1, err))
			}
			qty, err := quantity("original_contract_quantity", it.OriginalContractQuantity)
			if err != nil {
				return ErrorJSON(e, fmt.Errorf("row %d: %w", i+1, err))
			}
			rows = append(rows, services.ItemRow{
				SectionNumber:            it.SectionNumber,
				Description:              it.Description,
				Unit:                     it.Unit,
				Price:                    price,
				OriginalContractQuantity: qty,
			})
		}

		report, err := eng.Catalog.ImportItems(rows)
		if err != nil {
			return ErrorJSON(e, err)
		}
		SetToast(e, "success", fmt.Sprintf("Imported %d of %d items", report.Imported, report.TotalRows))
		return e.JSON(http.StatusOK, report)
	}
}
