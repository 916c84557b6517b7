// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"boqledger/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app, runs collections.Setup to create all tables and
// binds the record hooks. The temporary directory is cleaned up
// automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	collections.Setup(app)
	collections.BindHooks(app)
	if err := collections.MigrateDefaultProjectInfo(app); err != nil {
		t.Fatalf("failed to create project info: %v", err)
	}

	return app
}

// CreateTestItem creates a BOQ catalog item and returns it.
func CreateTestItem(t *testing.T, app core.App, sectionNumber string, originalQty float64) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId(collections.BOQItems)
	if err != nil {
		t.Fatalf("failed to find boq_items collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("section_number", sectionNumber)
	record.Set("description", "Item "+sectionNumber)
	record.Set("unit", "m3")
	record.Set("price", 100)
	record.Set("original_contract_quantity", originalQty)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test item: %v", err)
	}

	return record
}

// CreateTestRevision creates a contract revision with the given index.
func CreateTestRevision(t *testing.T, app core.App, index int) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId(collections.ContractRevisions)
	if err != nil {
		t.Fatalf("failed to find contract_revisions collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("revision_index", index)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test revision: %v", err)
	}

	return record
}

// CreateTestSheet creates a concentration sheet for itemID with the given
// project-info version stamp.
func CreateTestSheet(t *testing.T, app core.App, itemID string, infoVersion int) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId(collections.ConcentrationSheets)
	if err != nil {
		t.Fatalf("failed to find concentration_sheets collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("boq_item", itemID)
	record.Set("project_name", "Test Project")
	record.Set("info_version", infoVersion)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test sheet: %v", err)
	}

	return record
}

// CreateTestEntry creates a concentration entry directly, bypassing the
// manual/computed rules. Use it to set up computed entries in tests.
func CreateTestEntry(t *testing.T, app core.App, sheetID string, position int, drawingNo string, estimated float64, manual bool) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId(collections.ConcentrationEntries)
	if err != nil {
		t.Fatalf("failed to find concentration_entries collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("sheet", sheetID)
	record.Set("position", position)
	record.Set("description", "Entry")
	record.Set("calculation_sheet_no", "CS-TEST")
	record.Set("drawing_no", drawingNo)
	record.Set("estimated_quantity", estimated)
	record.Set("is_manual", manual)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test entry: %v", err)
	}

	return record
}

// CountRecords returns the number of records in a collection.
func CountRecords(t *testing.T, app core.App, collection string) int {
	t.Helper()

	n, err := app.CountRecords(collection)
	if err != nil {
		t.Fatalf("failed to count %s: %v", collection, err)
	}
	return int(n)
}
