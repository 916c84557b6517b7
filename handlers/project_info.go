package handlers

import (
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// HandleProjectInfoGet handles GET /api/boq/project-info.
func HandleProjectInfoGet(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		info, err := eng.ProjectInfo.Get()
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, info)
	}
}

// HandleProjectInfoUpdate handles PUT /api/boq/project-info. Sheets keep
// their copy until POST /api/boq/project-info/sync.
func HandleProjectInfoUpdate(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req services.ProjectInfo
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "UpdateProjectInfo", "invalid request body")
		}

		info, err := eng.ProjectInfo.Update(req)
		if err != nil {
			return ErrorJSON(e, err)
		}
		SetToast(e, "success", "Project info saved. Sync to update sheets.")
		return e.JSON(http.StatusOK, info)
	}
}

// HandleProjectInfoSync handles POST /api/boq/project-info/sync.
func HandleProjectInfoSync(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		n, err := eng.ProjectInfo.Sync()
		if err != nil {
			return ErrorJSON(e, err)
		}
		SetToast(e, "success", fmt.Sprintf("Project info copied to %d sheet(s)", n))
		return e.JSON(http.StatusOK, map[string]any{"sheets_updated": n})
	}
}
