package services

import (
	"bytes"
	"testing"

	"github.com/pocketbase/pocketbase"

	"boqledger/testhelpers"
)

// bytesReader wraps a byte slice in a bytes.Reader for use with excelize.OpenReader.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// newTestEngine returns a fresh app and an Engine writing exports to a
// temporary directory.
func newTestEngine(t *testing.T) (*pocketbase.PocketBase, *Engine) {
	t.Helper()
	app := testhelpers.NewTestApp(t)
	eng := NewEngine(app, ExportOptions{Dir: t.TempDir(), DefaultLocale: "en", Workers: 2})
	return app, eng
}

func ptr[T any](v T) *T { return &v }
