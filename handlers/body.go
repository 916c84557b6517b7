package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
)

// bindJSON decodes the request body into dst. An empty body leaves dst
// untouched.
func bindJSON(e *core.RequestEvent, dst any) error {
	if e.Request.Body == nil || e.Request.Body == http.NoBody || e.Request.ContentLength == 0 {
		return nil
	}
	return e.BindBody(dst)
}

// quantity strictly parses a JSON number field. Absent values become zero;
// anything present must be a non-negative decimal.
func quantity(field string, n *json.Number) (float64, error) {
	if n == nil {
		return 0, nil
	}
	return services.ParseQuantity(field, n.String())
}

// optionalQuantity is quantity for patch bodies where absence matters.
func optionalQuantity(field string, n *json.Number) (*float64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := services.ParseQuantity(field, n.String())
	if err != nil {
		return nil, err
	}
	return &v, nil
}
