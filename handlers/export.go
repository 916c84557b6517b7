package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// ExportRequest is the JSON body of POST /api/boq/exports. Columns absent
// means every column; a single sheet id without "all" renders one sheet.
type ExportRequest struct {
	SheetIDs []string `json:"sheet_ids"`
	All      bool     `json:"all"`
	Columns  []string `json:"columns"`
	Format   string   `json:"format"`
	Locale   string   `json:"locale"`
}

// sanitizeFilename removes characters that are unsafe for filenames.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, `"`, "")
	return s
}

// HandleExportCreate handles POST /api/boq/exports. The artifact is
// rendered synchronously; the response carries the job id for download.
func HandleExportCreate(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var req ExportRequest
		if err := bindJSON(e, &req); err != nil {
			return badRequest(e, "Export", "invalid request body")
		}

		format, err := services.ParseFormat(req.Format)
		if err != nil {
			return ErrorJSON(e, err)
		}
		cols, err := services.ParseColumnSelection(req.Columns)
		if err != nil {
			return ErrorJSON(e, err)
		}

		ctx := e.Request.Context()
		var art *services.Artifact
		if !req.All && len(req.SheetIDs) == 1 {
			art, err = eng.Exporter.ExportOne(ctx, req.SheetIDs[0], cols, format, req.Locale)
		} else {
			art, err = eng.Exporter.ExportMany(ctx, req.SheetIDs, req.All, cols, format, req.Locale)
		}
		if err != nil {
			return ErrorJSON(e, err)
		}

		if len(art.StaleSheets) > 0 {
			SetToast(e, "warning", fmt.Sprintf("%d sheet(s) exported with out-of-date project info", len(art.StaleSheets)))
		} else {
			SetToast(e, "success", "Export ready")
		}
		return e.JSON(http.StatusCreated, map[string]any{
			"job_id":       art.JobID,
			"file_name":    art.FileName,
			"content_type": art.ContentType,
			"sheets":       art.Sheets,
			"stale_sheets": art.StaleSheets,
			"skipped":      art.Skipped,
			"download_url": "/api/boq/exports/" + art.JobID + "/download",
		})
	}
}

// HandleExportStatus handles GET /api/boq/exports/{id}.
func HandleExportStatus(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		job, err := eng.Exporter.GetJob(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		return e.JSON(http.StatusOK, job)
	}
}

// HandleExportDownload handles GET /api/boq/exports/{id}/download.
func HandleExportDownload(eng *services.Engine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		job, err := eng.Exporter.GetJob(e.Request.PathValue("id"))
		if err != nil {
			return ErrorJSON(e, err)
		}
		if job.Status != services.JobSucceeded || job.ArtifactPath == "" {
			return e.JSON(http.StatusConflict, errorBody{
				Error: fmt.Sprintf("export is %s", job.Status),
				Kind:  string(services.KindExport),
				ID:    job.ID,
			})
		}

		data, err := os.ReadFile(job.ArtifactPath)
		if err != nil {
			e.App.Logger().Error("export download: read artifact", "job", job.ID, "error", err)
			return e.JSON(http.StatusGone, errorBody{
				Error: "export artifact is no longer available",
				Kind:  string(services.KindExport),
				ID:    job.ID,
			})
		}

		e.Response.Header().Set("Content-Type", job.ContentType())
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sanitizeFilename(job.FileName)))
		e.Response.WriteHeader(http.StatusOK)
		e.Response.Write(data)
		return nil
	}
}
