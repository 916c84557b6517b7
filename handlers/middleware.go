package handlers

import (
	"mime"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// RequireJSON rejects request bodies that are not declared as JSON. Requests
// without a body pass through so that bodiless POSTs (sync, sheet creation)
// keep working.
func RequireJSON(e *core.RequestEvent) error {
	switch e.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return e.Next()
	}
	if e.Request.ContentLength == 0 {
		return e.Next()
	}

	mt, _, err := mime.ParseMediaType(e.Request.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		e.App.Logger().Debug("rejected non-JSON body",
			"method", e.Request.Method,
			"path", e.Request.URL.Path,
			"content_type", e.Request.Header.Get("Content-Type"),
		)
		SetToast(e, "error", "Request body must be JSON")
		return e.JSON(http.StatusUnsupportedMediaType, errorBody{
			Error: "request body must be application/json",
			Kind:  string(services.KindValidation),
		})
	}
	return e.Next()
}
