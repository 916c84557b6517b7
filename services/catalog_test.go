package services

import (
	"errors"
	"testing"

	"boqledger/testhelpers"
)

func TestCatalog_GetItemBySectionNumber(t *testing.T) {
	app, eng := newTestEngine(t)
	rec := testhelpers.CreateTestItem(t, app, "01.01.0010", 1250)

	item, err := eng.Catalog.GetItemBySectionNumber(" 01.01.0010 ")
	if err != nil {
		t.Fatalf("GetItemBySectionNumber() error = %v", err)
	}
	if item.ID != rec.Id {
		t.Errorf("item id = %q, want %q", item.ID, rec.Id)
	}
	if item.OriginalContractQuantity != 1250 {
		t.Errorf("original quantity = %v, want 1250", item.OriginalContractQuantity)
	}

	if _, err := eng.Catalog.GetItemBySectionNumber("99.99.9999"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("unknown section error = %v, want ErrItemNotFound", err)
	}
	if _, err := eng.Catalog.GetItem("doesnotexist123"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("unknown id error = %v, want ErrItemNotFound", err)
	}
}

func TestCatalog_ListItemsOrdered(t *testing.T) {
	app, eng := newTestEngine(t)
	testhelpers.CreateTestItem(t, app, "02.03.0010", 1)
	testhelpers.CreateTestItem(t, app, "01.01.0020", 1)
	testhelpers.CreateTestItem(t, app, "01.01.0010", 1)

	items, err := eng.Catalog.ListItems()
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	want := []string{"01.01.0010", "01.01.0020", "02.03.0010"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].SectionNumber != w {
			t.Errorf("items[%d] = %q, want %q", i, items[i].SectionNumber, w)
		}
	}
}

func TestCatalog_ImportItems(t *testing.T) {
	app, eng := newTestEngine(t)
	testhelpers.CreateTestItem(t, app, "01.01.0010", 100)

	report, err := eng.Catalog.ImportItems([]ItemRow{
		{SectionNumber: "01.01.0010", Description: "already there", OriginalContractQuantity: 999},
		{SectionNumber: "01.01.0020", Description: "Backfill", Unit: "m3", Price: 62, OriginalContractQuantity: 840},
		{SectionNumber: "01.01.0020", Description: "repeat", OriginalContractQuantity: 1},
		{SectionNumber: "", Description: "no section", OriginalContractQuantity: 1},
		{SectionNumber: "01.01.0030", Description: "negative", OriginalContractQuantity: -5},
	})
	if err != nil {
		t.Fatalf("ImportItems() error = %v", err)
	}

	if report.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5", report.TotalRows)
	}
	if report.Imported != 1 {
		t.Errorf("Imported = %d, want 1", report.Imported)
	}

	var skipped, failed int
	for _, m := range report.Errors {
		switch m.Kind {
		case MessageSkipped:
			skipped++
		case MessageError:
			failed++
		}
	}
	if skipped != 2 || failed != 2 {
		t.Errorf("skipped=%d failed=%d, want 2 and 2 (%+v)", skipped, failed, report.Errors)
	}

	// The existing item keeps its write-once quantity.
	item, _ := eng.Catalog.GetItemBySectionNumber("01.01.0010")
	if item.OriginalContractQuantity != 100 {
		t.Errorf("existing item quantity = %v, want 100", item.OriginalContractQuantity)
	}
}
