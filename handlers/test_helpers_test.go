package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"boqledger/services"
	"boqledger/testhelpers"
)

// newTestRequestEvent creates a RequestEvent suitable for handler tests.
func newTestRequestEvent(app core.App, req *http.Request, rec *httptest.ResponseRecorder) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e
}

// newTestEngine returns a fresh app and an Engine exporting into a temp dir.
func newTestEngine(t *testing.T) (*pocketbase.PocketBase, *services.Engine) {
	t.Helper()
	app := testhelpers.NewTestApp(t)
	eng := services.NewEngine(app, services.ExportOptions{Dir: t.TempDir(), DefaultLocale: "en", Workers: 2})
	return app, eng
}

// call runs handler against a request with an optional JSON body and path
// values given as name, value pairs.
func call(t *testing.T, app core.App, handler func(*core.RequestEvent) error, method, target, body string, pathValues ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}

	rec := httptest.NewRecorder()
	if err := handler(newTestRequestEvent(app, req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

// decode unmarshals the recorder body into dst.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, rec.Body.String())
	}
}

// errorKind returns the "kind" of an error response.
func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	return body.Kind
}
