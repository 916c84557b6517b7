package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"boqledger/collections"
)

// ProjectInfo is the project metadata printed on every concentration sheet.
type ProjectInfo struct {
	ProjectName        string `json:"project_name"`
	ContractorInCharge string `json:"contractor_in_charge"`
	ContractNo         string `json:"contract_no"`
	DeveloperName      string `json:"developer_name"`
}

// Sheet is the per-item concentration sheet with its own project-info copy.
type Sheet struct {
	ID          string      `json:"id"`
	ItemID      string      `json:"boq_item_id"`
	Info        ProjectInfo `json:"project_info"`
	InfoVersion int         `json:"info_version"`
	InfoSynced  time.Time   `json:"info_synced,omitempty"`
}

// EntryFields are the user-facing columns of a concentration entry.
type EntryFields struct {
	Description              string  `json:"description"`
	CalculationSheetNo       string  `json:"calculation_sheet_no"`
	DrawingNo                string  `json:"drawing_no"`
	EstimatedQuantity        float64 `json:"estimated_quantity"`
	QuantitySubmitted        float64 `json:"quantity_submitted"`
	InternalQuantity         float64 `json:"internal_quantity"`
	ApprovedByProjectManager float64 `json:"approved_by_project_manager"`
	Notes                    string  `json:"notes"`
}

func (f EntryFields) validate(op, id string) error {
	for _, q := range []struct {
		name string
		v    float64
	}{
		{"estimated_quantity", f.EstimatedQuantity},
		{"quantity_submitted", f.QuantitySubmitted},
		{"internal_quantity", f.InternalQuantity},
		{"approved_by_project_manager", f.ApprovedByProjectManager},
	} {
		if err := checkQuantity(op, id, q.name, q.v); err != nil {
			return err
		}
	}
	return nil
}

// EntryView is the read projection shared by manual and computed entries.
type EntryView struct {
	ID       string `json:"id"`
	SheetID  string `json:"sheet_id"`
	Position int    `json:"position"`
	EntryFields
	SectionNumber string `json:"section_number,omitempty"`
	IsManual      bool   `json:"is_manual"`
}

// Entry is either a *ManualEntry or a *ComputedEntry. The variant decides
// which patches and deletions are allowed.
type Entry interface {
	View() EntryView
	applyPatch(p EntryPatch) error
	checkDeletable() error
}

// ManualEntry is authored by a user and fully editable.
type ManualEntry struct{ view EntryView }

// ComputedEntry was produced by the populator; only its notes are editable.
type ComputedEntry struct{ view EntryView }

func (m *ManualEntry) View() EntryView   { return m.view }
func (c *ComputedEntry) View() EntryView { return c.view }

func (m *ManualEntry) applyPatch(p EntryPatch) error {
	f := &m.view.EntryFields
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.CalculationSheetNo != nil {
		f.CalculationSheetNo = *p.CalculationSheetNo
	}
	if p.DrawingNo != nil {
		f.DrawingNo = *p.DrawingNo
	}
	if p.EstimatedQuantity != nil {
		f.EstimatedQuantity = *p.EstimatedQuantity
	}
	if p.QuantitySubmitted != nil {
		f.QuantitySubmitted = *p.QuantitySubmitted
	}
	if p.InternalQuantity != nil {
		f.InternalQuantity = *p.InternalQuantity
	}
	if p.ApprovedByProjectManager != nil {
		f.ApprovedByProjectManager = *p.ApprovedByProjectManager
	}
	if p.Notes != nil {
		f.Notes = *p.Notes
	}
	return f.validate("UpdateEntry", m.view.ID)
}

func (c *ComputedEntry) applyPatch(p EntryPatch) error {
	for _, name := range p.Present() {
		if name != "notes" {
			return fieldError("UpdateEntry", c.view.ID, name, ErrReadOnlyField)
		}
	}
	if p.Notes != nil {
		c.view.Notes = *p.Notes
	}
	return nil
}

func (m *ManualEntry) checkDeletable() error { return nil }

func (c *ComputedEntry) checkDeletable() error {
	return newError("DeleteEntry", c.view.ID, ErrReadOnlyEntry)
}

// EntryPatch is a partial update; nil fields are absent.
type EntryPatch struct {
	Description              *string  `json:"description,omitempty"`
	CalculationSheetNo       *string  `json:"calculation_sheet_no,omitempty"`
	DrawingNo                *string  `json:"drawing_no,omitempty"`
	EstimatedQuantity        *float64 `json:"estimated_quantity,omitempty"`
	QuantitySubmitted        *float64 `json:"quantity_submitted,omitempty"`
	InternalQuantity         *float64 `json:"internal_quantity,omitempty"`
	ApprovedByProjectManager *float64 `json:"approved_by_project_manager,omitempty"`
	Notes                    *string  `json:"notes,omitempty"`
}

// Present lists the column names set in the patch.
func (p EntryPatch) Present() []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(p.Description != nil, "description")
	add(p.CalculationSheetNo != nil, "calculation_sheet_no")
	add(p.DrawingNo != nil, "drawing_no")
	add(p.EstimatedQuantity != nil, "estimated_quantity")
	add(p.QuantitySubmitted != nil, "quantity_submitted")
	add(p.InternalQuantity != nil, "internal_quantity")
	add(p.ApprovedByProjectManager != nil, "approved_by_project_manager")
	add(p.Notes != nil, "notes")
	return names
}

// Totals is the "Totals" row of a concentration sheet.
type Totals struct {
	Estimated float64 `json:"estimated"`
	Submitted float64 `json:"submitted"`
	Internal  float64 `json:"internal"`
	Approved  float64 `json:"approved"`
}

// Reconciliation compares a sheet's totals with the item's current
// contract quantity.
type Reconciliation struct {
	SheetID          string  `json:"sheet_id"`
	ItemID           string  `json:"boq_item_id"`
	ContractQuantity float64 `json:"contract_quantity"`
	OriginalQuantity float64 `json:"original_quantity"`
	HasUpdates       bool    `json:"has_contract_updates"`
	Totals           Totals  `json:"totals"`
	RemainingQty     float64 `json:"remaining_quantity"` // contract - approved
}

// Aggregator owns concentration entries. Mutations of one sheet are
// serialized by its lock; reads of that sheet take the read lock so they
// never observe a half-applied mutation.
type Aggregator struct {
	app    core.App
	ledger *Ledger
	sheets *keyedLocks
	items  *keyedLocks // guards sheet creation per item
}

func NewAggregator(app core.App, ledger *Ledger) *Aggregator {
	return &Aggregator{
		app:    app,
		ledger: ledger,
		sheets: newKeyedLocks(),
		items:  newKeyedLocks(),
	}
}

// GetOrCreateSheet returns the item's sheet, creating it with the current
// project-info copy on first use.
func (a *Aggregator) GetOrCreateSheet(itemID string) (*Sheet, error) {
	unlock := a.items.Lock(itemID)
	defer unlock()

	if _, err := getItem(a.app, itemID); err != nil {
		return nil, err
	}

	r, err := a.app.FindFirstRecordByFilter(
		collections.ConcentrationSheets,
		"boq_item = {:item}",
		dbx.Params{"item": itemID},
	)
	if err == nil {
		s := sheetFromRecord(r)
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find sheet of %s: %w", itemID, err)
	}

	col, err := a.app.FindCollectionByNameOrId(collections.ConcentrationSheets)
	if err != nil {
		return nil, fmt.Errorf("concentration_sheets collection not found: %w", err)
	}

	info, err := currentProjectInfo(a.app)
	if err != nil {
		return nil, err
	}

	r = core.NewRecord(col)
	r.Set("boq_item", itemID)
	setProjectInfo(r, info.ProjectInfo)
	r.Set("info_version", info.Version)
	r.Set("info_synced", types.NowDateTime())
	if err := a.app.Save(r); err != nil {
		return nil, fmt.Errorf("create sheet for %s: %w", itemID, err)
	}

	a.app.Logger().Info("concentration sheet created", "sheet", r.Id, "item", itemID)
	s := sheetFromRecord(r)
	return &s, nil
}

// GetSheet loads a sheet by id.
func (a *Aggregator) GetSheet(sheetID string) (*Sheet, error) {
	r, err := findSheet(a.app, sheetID)
	if err != nil {
		return nil, err
	}
	s := sheetFromRecord(r)
	return &s, nil
}

// ListSheets returns every sheet.
func (a *Aggregator) ListSheets() ([]Sheet, error) {
	records, err := a.app.FindAllRecords(collections.ConcentrationSheets)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	out := make([]Sheet, 0, len(records))
	for _, r := range records {
		out = append(out, sheetFromRecord(r))
	}
	return out, nil
}

// CreateEntry appends a manual entry to the sheet.
func (a *Aggregator) CreateEntry(sheetID string, fields EntryFields) (*EntryView, error) {
	if err := fields.validate("CreateEntry", sheetID); err != nil {
		return nil, err
	}

	unlock := a.sheets.Lock(sheetID)
	defer unlock()

	var view EntryView
	err := a.app.RunInTransaction(func(txApp core.App) error {
		if _, err := findSheet(txApp, sheetID); err != nil {
			return err
		}
		r, err := insertEntry(txApp, sheetID, fields, "", true)
		if err != nil {
			return err
		}
		view = entryFromRecord(r).View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.app.Logger().Info("manual entry created", "sheet", sheetID, "entry", view.ID)
	return &view, nil
}

// UpdateEntry applies a partial update. Computed entries accept only notes.
func (a *Aggregator) UpdateEntry(entryID string, patch EntryPatch) (*EntryView, error) {
	r, err := findEntry(a.app, entryID)
	if err != nil {
		return nil, err
	}
	sheetID := r.GetString("sheet")

	unlock := a.sheets.Lock(sheetID)
	defer unlock()

	var view EntryView
	err = a.app.RunInTransaction(func(txApp core.App) error {
		r, err := findEntry(txApp, entryID)
		if err != nil {
			return err
		}
		e := entryFromRecord(r)
		if err := e.applyPatch(patch); err != nil {
			return err
		}
		view = e.View()
		setEntryFields(r, view.EntryFields)
		if err := txApp.Save(r); err != nil {
			return fmt.Errorf("update entry %s: %w", entryID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// DeleteEntry removes a manual entry. Computed entries are read-only.
func (a *Aggregator) DeleteEntry(entryID string) error {
	r, err := findEntry(a.app, entryID)
	if err != nil {
		return err
	}
	sheetID := r.GetString("sheet")

	unlock := a.sheets.Lock(sheetID)
	defer unlock()

	return a.app.RunInTransaction(func(txApp core.App) error {
		r, err := findEntry(txApp, entryID)
		if err != nil {
			return err
		}
		if err := entryFromRecord(r).checkDeletable(); err != nil {
			return err
		}
		if err := txApp.Delete(r); err != nil {
			return fmt.Errorf("delete entry %s: %w", entryID, err)
		}
		return nil
	})
}

// ListEntries returns the sheet's entries in insertion order.
func (a *Aggregator) ListEntries(sheetID string) ([]EntryView, error) {
	unlock := a.sheets.RLock(sheetID)
	defer unlock()

	if _, err := findSheet(a.app, sheetID); err != nil {
		return nil, err
	}
	return listEntries(a.app, sheetID)
}

// ComputeTotals sums every entry of the sheet, manual and computed alike.
func (a *Aggregator) ComputeTotals(sheetID string) (*Totals, error) {
	entries, err := a.ListEntries(sheetID)
	if err != nil {
		return nil, err
	}
	t := totalsOf(entries)
	return &t, nil
}

// Reconcile compares the sheet totals with the item's latest contract
// quantity.
func (a *Aggregator) Reconcile(sheetID string) (*Reconciliation, error) {
	snap, err := a.snapshot(sheetID)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{
		SheetID:          snap.Sheet.ID,
		ItemID:           snap.Item.ID,
		ContractQuantity: snap.Latest.Value,
		OriginalQuantity: snap.Item.OriginalContractQuantity,
		HasUpdates:       snap.Latest.HasUpdates,
		Totals:           snap.Totals,
		RemainingQty:     sumQuantities([]float64{snap.Latest.Value, -snap.Totals.Approved}),
	}, nil
}

// sheetSnapshot is a consistent read of one sheet for reconciliation and
// export.
type sheetSnapshot struct {
	Sheet   Sheet
	Item    BOQItem
	Latest  LatestQuantity
	Entries []EntryView
	Totals  Totals
}

func (a *Aggregator) snapshot(sheetID string) (*sheetSnapshot, error) {
	unlock := a.sheets.RLock(sheetID)
	defer unlock()

	r, err := findSheet(a.app, sheetID)
	if err != nil {
		return nil, err
	}
	sheet := sheetFromRecord(r)

	item, err := getItem(a.app, sheet.ItemID)
	if err != nil {
		return nil, err
	}
	latest, err := a.ledger.LatestQuantity(sheet.ItemID)
	if err != nil {
		return nil, err
	}
	entries, err := listEntries(a.app, sheetID)
	if err != nil {
		return nil, err
	}

	return &sheetSnapshot{
		Sheet:   sheet,
		Item:    *item,
		Latest:  *latest,
		Entries: entries,
		Totals:  totalsOf(entries),
	}, nil
}

func totalsOf(entries []EntryView) Totals {
	est := make([]float64, len(entries))
	sub := make([]float64, len(entries))
	in := make([]float64, len(entries))
	app := make([]float64, len(entries))
	for i, e := range entries {
		est[i] = e.EstimatedQuantity
		sub[i] = e.QuantitySubmitted
		in[i] = e.InternalQuantity
		app[i] = e.ApprovedByProjectManager
	}
	return Totals{
		Estimated: sumQuantities(est),
		Submitted: sumQuantities(sub),
		Internal:  sumQuantities(in),
		Approved:  sumQuantities(app),
	}
}

func listEntries(app core.App, sheetID string) ([]EntryView, error) {
	var records []*core.Record
	err := app.RecordQuery(collections.ConcentrationEntries).
		AndWhere(dbx.HashExp{"sheet": sheetID}).
		OrderBy("position ASC").
		All(&records)
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", sheetID, err)
	}
	out := make([]EntryView, 0, len(records))
	for _, r := range records {
		out = append(out, entryFromRecord(r).View())
	}
	return out, nil
}

// insertEntry appends an entry at the end of the sheet. Callers hold the
// sheet lock.
func insertEntry(app core.App, sheetID string, fields EntryFields, sectionNumber string, manual bool) (*core.Record, error) {
	col, err := app.FindCollectionByNameOrId(collections.ConcentrationEntries)
	if err != nil {
		return nil, fmt.Errorf("concentration_entries collection not found: %w", err)
	}

	var last []*core.Record
	err = app.RecordQuery(collections.ConcentrationEntries).
		AndWhere(dbx.HashExp{"sheet": sheetID}).
		OrderBy("position DESC").
		Limit(1).
		All(&last)
	if err != nil {
		return nil, fmt.Errorf("last position of %s: %w", sheetID, err)
	}
	position := 1
	if len(last) > 0 {
		position = last[0].GetInt("position") + 1
	}

	r := core.NewRecord(col)
	r.Set("sheet", sheetID)
	r.Set("position", position)
	r.Set("section_number", sectionNumber)
	r.Set("is_manual", manual)
	setEntryFields(r, fields)
	if err := app.Save(r); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	return r, nil
}

func findSheet(app core.App, id string) (*core.Record, error) {
	r, err := app.FindRecordById(collections.ConcentrationSheets, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError("FindSheet", id, ErrSheetNotFound)
		}
		return nil, fmt.Errorf("find sheet %s: %w", id, err)
	}
	return r, nil
}

func findEntry(app core.App, id string) (*core.Record, error) {
	r, err := app.FindRecordById(collections.ConcentrationEntries, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError("FindEntry", id, ErrEntryNotFound)
		}
		return nil, fmt.Errorf("find entry %s: %w", id, err)
	}
	return r, nil
}

func entryFromRecord(r *core.Record) Entry {
	view := EntryView{
		ID:       r.Id,
		SheetID:  r.GetString("sheet"),
		Position: r.GetInt("position"),
		EntryFields: EntryFields{
			Description:              r.GetString("description"),
			CalculationSheetNo:       r.GetString("calculation_sheet_no"),
			DrawingNo:                r.GetString("drawing_no"),
			EstimatedQuantity:        r.GetFloat("estimated_quantity"),
			QuantitySubmitted:        r.GetFloat("quantity_submitted"),
			InternalQuantity:         r.GetFloat("internal_quantity"),
			ApprovedByProjectManager: r.GetFloat("approved_by_project_manager"),
			Notes:                    r.GetString("notes"),
		},
		SectionNumber: r.GetString("section_number"),
		IsManual:      r.GetBool("is_manual"),
	}
	if view.IsManual {
		return &ManualEntry{view: view}
	}
	return &ComputedEntry{view: view}
}

func setEntryFields(r *core.Record, f EntryFields) {
	r.Set("description", f.Description)
	r.Set("calculation_sheet_no", f.CalculationSheetNo)
	r.Set("drawing_no", f.DrawingNo)
	r.Set("estimated_quantity", f.EstimatedQuantity)
	r.Set("quantity_submitted", f.QuantitySubmitted)
	r.Set("internal_quantity", f.InternalQuantity)
	r.Set("approved_by_project_manager", f.ApprovedByProjectManager)
	r.Set("notes", f.Notes)
}

func sheetFromRecord(r *core.Record) Sheet {
	return Sheet{
		ID:     r.Id,
		ItemID: r.GetString("boq_item"),
		Info: ProjectInfo{
			ProjectName:        r.GetString("project_name"),
			ContractorInCharge: r.GetString("contractor_in_charge"),
			ContractNo:         r.GetString("contract_no"),
			DeveloperName:      r.GetString("developer_name"),
		},
		InfoVersion: r.GetInt("info_version"),
		InfoSynced:  r.GetDateTime("info_synced").Time(),
	}
}

func setProjectInfo(r *core.Record, info ProjectInfo) {
	r.Set("project_name", info.ProjectName)
	r.Set("contractor_in_charge", info.ContractorInCharge)
	r.Set("contract_no", info.ContractNo)
	r.Set("developer_name", info.DeveloperName)
}
