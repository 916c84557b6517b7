package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// SetToast sets the HX-Trigger response header so an HTMX front end can show
// a toast for the JSON response. If an HX-Trigger header already exists, the
// toast payload is merged into the existing JSON object.
func SetToast(e *core.RequestEvent, toastType string, message string) {
	toast := map[string]string{
		"message": message,
		"type":    toastType,
	}

	merged := map[string]any{}
	if existing := e.Response.Header().Get("HX-Trigger"); existing != "" {
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			merged = map[string]any{}
		}
	}
	merged["showToast"] = toast

	data, err := json.Marshal(merged)
	if err != nil {
		return
	}
	e.Response.Header().Set("HX-Trigger", string(data))
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Op    string `json:"op,omitempty"`
	ID    string `json:"id,omitempty"`
	Field string `json:"field,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindExport:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// ErrorJSON writes err as a typed JSON error and fires an error toast.
func ErrorJSON(e *core.RequestEvent, err error) error {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: string(services.KindOf(err))}

	var se *services.Error
	if errors.As(err, &se) {
		body.Op = se.Op
		body.ID = se.ID
		body.Field = se.Field
	}

	if status >= http.StatusInternalServerError {
		e.App.Logger().Error("request failed",
			"method", e.Request.Method,
			"path", e.Request.URL.Path,
			"error", err,
		)
		body.Error = "Something went wrong. Please try again."
	}

	SetToast(e, "error", body.Error)
	return e.JSON(status, body)
}

// badRequest reports a malformed request body or parameter.
func badRequest(e *core.RequestEvent, op, msg string) error {
	return ErrorJSON(e, &services.Error{Op: op, Err: fmt.Errorf("%w: %s", services.ErrInvalidInput, msg)})
}
