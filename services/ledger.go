package services

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"boqledger/collections"
)

// Revision is one round of contract-quantity updates.
type Revision struct {
	ID            string    `json:"id"`
	Index         int       `json:"index"`
	Note          string    `json:"note"`
	Created       time.Time `json:"created"`
	OverrideCount int       `json:"override_count"`
}

// Override is one item's new quantity within a revision.
type Override struct {
	ID            string  `json:"id"`
	RevisionID    string  `json:"revision_id"`
	RevisionIndex int     `json:"revision_index"`
	ItemID        string  `json:"item_id"`
	NewQuantity   float64 `json:"new_quantity"`
	Note          string  `json:"note"`
}

// LatestQuantity is the effective contract quantity of an item.
// SourceRevisionIndex is 0 when no override exists.
type LatestQuantity struct {
	ItemID              string  `json:"item_id"`
	Value               float64 `json:"value"`
	HasUpdates          bool    `json:"has_updates"`
	SourceRevisionIndex int     `json:"source_revision_index,omitempty"`
}

// BOQItemWithLatestQuantity decorates a catalog item with the ledger view.
type BOQItemWithLatestQuantity struct {
	BOQItem
	LatestContractQuantity float64 `json:"latest_contract_quantity"`
	HasContractUpdates     bool    `json:"has_contract_updates"`
	LatestUpdateIndex      int     `json:"latest_update_index,omitempty"`
}

// RevisionDeletion reports what a deleted revision left behind.
type RevisionDeletion struct {
	RevisionID    string           `json:"revision_id"`
	RevisionIndex int              `json:"revision_index"`
	Recomputed    []LatestQuantity `json:"recomputed"`
}

// Ledger owns revisions and overrides.
//
// Opening revisions is serialized by opening (and backed by a unique index),
// and every override write or latest-quantity read holds the per-item lock.
// Override writes also hold their revision's read lock so that deleting a
// revision sees every override it cascades.
type Ledger struct {
	app       core.App
	opening   sync.Mutex
	items     *keyedLocks
	revisions *keyedLocks
}

func NewLedger(app core.App) *Ledger {
	return &Ledger{app: app, items: newKeyedLocks(), revisions: newKeyedLocks()}
}

// OpenRevision allocates the next revision index (max + 1, or 1).
func (l *Ledger) OpenRevision(note string) (*Revision, error) {
	l.opening.Lock()
	defer l.opening.Unlock()

	col, err := l.app.FindCollectionByNameOrId(collections.ContractRevisions)
	if err != nil {
		return nil, fmt.Errorf("contract_revisions collection not found: %w", err)
	}

	var rev Revision
	err = l.app.RunInTransaction(func(txApp core.App) error {
		next, err := nextRevisionIndex(txApp)
		if err != nil {
			return err
		}
		r, err := insertRevision(txApp, col, next, note)
		if err != nil {
			return err
		}
		rev = revisionFromRecord(r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.app.Logger().Info("revision opened", "revision", rev.ID, "index", rev.Index)
	return &rev, nil
}

// GetRevision loads a revision with its override count.
func (l *Ledger) GetRevision(id string) (*Revision, error) {
	r, err := findRevision(l.app, id)
	if err != nil {
		return nil, err
	}
	rev := revisionFromRecord(r)
	count, err := l.app.CountRecords(collections.ItemOverrides, dbx.HashExp{"revision": id})
	if err != nil {
		return nil, fmt.Errorf("count overrides of %s: %w", id, err)
	}
	rev.OverrideCount = int(count)
	return &rev, nil
}

// ListRevisions returns all revisions ordered by index.
func (l *Ledger) ListRevisions() ([]Revision, error) {
	var records []*core.Record
	if err := l.app.RecordQuery(collections.ContractRevisions).
		OrderBy("revision_index ASC").
		All(&records); err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}

	revs := make([]Revision, 0, len(records))
	for _, r := range records {
		rev := revisionFromRecord(r)
		count, err := l.app.CountRecords(collections.ItemOverrides, dbx.HashExp{"revision": r.Id})
		if err != nil {
			return nil, fmt.Errorf("count overrides of %s: %w", r.Id, err)
		}
		rev.OverrideCount = int(count)
		revs = append(revs, rev)
	}
	return revs, nil
}

// SetOverride records an item's new quantity within a revision. Use
// UpdateOverride to change an override that already exists.
func (l *Ledger) SetOverride(revisionID, itemID string, newQuantity float64, note string) (*Override, error) {
	if err := checkQuantity("SetOverride", itemID, "new_quantity", newQuantity); err != nil {
		return nil, err
	}

	unlockRev := l.revisions.RLock(revisionID)
	defer unlockRev()
	unlock := l.items.Lock(itemID)
	defer unlock()

	col, err := l.app.FindCollectionByNameOrId(collections.ItemOverrides)
	if err != nil {
		return nil, fmt.Errorf("item_overrides collection not found: %w", err)
	}

	var ov Override
	err = l.app.RunInTransaction(func(txApp core.App) error {
		rev, err := findRevision(txApp, revisionID)
		if err != nil {
			return err
		}
		if _, err := getItem(txApp, itemID); err != nil {
			return err
		}

		existing, err := findOverride(txApp, revisionID, itemID)
		if err != nil && !errors.Is(err, ErrOverrideNotFound) {
			return err
		}
		if existing != nil {
			return newError("SetOverride", itemID, ErrDuplicateOverride)
		}

		r := core.NewRecord(col)
		r.Set("revision", revisionID)
		r.Set("item", itemID)
		r.Set("revision_index", rev.GetInt("revision_index"))
		r.Set("new_quantity", newQuantity)
		r.Set("note", note)
		if err := txApp.Save(r); err != nil {
			if isUniqueViolation(err, "revision", "item") {
				return newError("SetOverride", itemID, ErrDuplicateOverride)
			}
			return fmt.Errorf("save override: %w", err)
		}
		ov = overrideFromRecord(r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.app.Logger().Info("override recorded",
		"revision", revisionID, "item", itemID, "index", ov.RevisionIndex, "quantity", newQuantity)
	return &ov, nil
}

// UpdateOverride replaces the quantity and note of an existing override.
func (l *Ledger) UpdateOverride(revisionID, itemID string, newQuantity float64, note string) (*Override, error) {
	if err := checkQuantity("UpdateOverride", itemID, "new_quantity", newQuantity); err != nil {
		return nil, err
	}

	unlockRev := l.revisions.RLock(revisionID)
	defer unlockRev()
	unlock := l.items.Lock(itemID)
	defer unlock()

	var ov Override
	err := l.app.RunInTransaction(func(txApp core.App) error {
		r, err := findOverride(txApp, revisionID, itemID)
		if err != nil {
			return err
		}
		r.Set("new_quantity", newQuantity)
		r.Set("note", note)
		if err := txApp.Save(r); err != nil {
			return fmt.Errorf("update override: %w", err)
		}
		ov = overrideFromRecord(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

// LatestQuantity returns the item's effective contract quantity: the
// override with the highest revision index, or the original quantity.
func (l *Ledger) LatestQuantity(itemID string) (*LatestQuantity, error) {
	unlock := l.items.RLock(itemID)
	defer unlock()

	return latestQuantity(l.app, itemID)
}

// ListItemsWithLatestQuantity returns the catalog decorated with each
// item's effective quantity.
func (l *Ledger) ListItemsWithLatestQuantity() ([]BOQItemWithLatestQuantity, error) {
	items, err := NewCatalog(l.app).ListItems()
	if err != nil {
		return nil, err
	}

	var overrides []*core.Record
	if err := l.app.RecordQuery(collections.ItemOverrides).
		OrderBy("revision_index DESC").
		All(&overrides); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}

	latest := make(map[string]*core.Record, len(overrides))
	for _, o := range overrides {
		if _, ok := latest[o.GetString("item")]; !ok {
			latest[o.GetString("item")] = o
		}
	}

	out := make([]BOQItemWithLatestQuantity, 0, len(items))
	for _, item := range items {
		view := BOQItemWithLatestQuantity{
			BOQItem:                item,
			LatestContractQuantity: item.OriginalContractQuantity,
		}
		if o, ok := latest[item.ID]; ok {
			view.LatestContractQuantity = o.GetFloat("new_quantity")
			view.HasContractUpdates = true
			view.LatestUpdateIndex = o.GetInt("revision_index")
		}
		out = append(out, view)
	}
	return out, nil
}

// DeleteRevision removes a revision and, by cascade, all its overrides.
// Items whose latest override lived in it fall back to the next-latest
// override or to their original quantity.
func (l *Ledger) DeleteRevision(revisionID string) (*RevisionDeletion, error) {
	unlockRev := l.revisions.Lock(revisionID)
	defer unlockRev()

	rev, err := findRevision(l.app, revisionID)
	if err != nil {
		return nil, err
	}

	var overrides []*core.Record
	if err := l.app.RecordQuery(collections.ItemOverrides).
		AndWhere(dbx.HashExp{"revision": revisionID}).
		All(&overrides); err != nil {
		return nil, fmt.Errorf("list overrides of %s: %w", revisionID, err)
	}

	itemIDs := make([]string, 0, len(overrides))
	for _, o := range overrides {
		itemIDs = append(itemIDs, o.GetString("item"))
	}
	sort.Strings(itemIDs)
	for _, id := range itemIDs {
		unlock := l.items.Lock(id)
		defer unlock()
	}

	if err := l.app.Delete(rev); err != nil {
		return nil, fmt.Errorf("delete revision %s: %w", revisionID, err)
	}

	result := &RevisionDeletion{
		RevisionID:    revisionID,
		RevisionIndex: rev.GetInt("revision_index"),
		Recomputed:    make([]LatestQuantity, 0, len(itemIDs)),
	}
	for _, id := range itemIDs {
		lq, err := latestQuantity(l.app, id)
		if err != nil {
			return nil, err
		}
		result.Recomputed = append(result.Recomputed, *lq)
	}

	l.app.Logger().Info("revision deleted",
		"revision", revisionID, "index", result.RevisionIndex, "overrides", len(itemIDs))
	return result, nil
}

// insertRevision saves a revision at index. A taken index means another
// writer opened the same revision first.
func insertRevision(app core.App, col *core.Collection, index int, note string) (*core.Record, error) {
	r := core.NewRecord(col)
	r.Set("revision_index", index)
	r.Set("note", note)
	if err := app.Save(r); err != nil {
		if isUniqueViolation(err, "revision_index") {
			return nil, newError("OpenRevision", strconv.Itoa(index), ErrConcurrentRevisionConflict)
		}
		return nil, fmt.Errorf("save revision %d: %w", index, err)
	}
	return r, nil
}

func latestQuantity(app core.App, itemID string) (*LatestQuantity, error) {
	item, err := getItem(app, itemID)
	if err != nil {
		return nil, err
	}

	var records []*core.Record
	err = app.RecordQuery(collections.ItemOverrides).
		AndWhere(dbx.HashExp{"item": itemID}).
		OrderBy("revision_index DESC").
		Limit(1).
		All(&records)
	if err != nil {
		return nil, fmt.Errorf("latest override of %s: %w", itemID, err)
	}

	if len(records) == 0 {
		return &LatestQuantity{ItemID: itemID, Value: item.OriginalContractQuantity}, nil
	}
	return &LatestQuantity{
		ItemID:              itemID,
		Value:               records[0].GetFloat("new_quantity"),
		HasUpdates:          true,
		SourceRevisionIndex: records[0].GetInt("revision_index"),
	}, nil
}

func nextRevisionIndex(app core.App) (int, error) {
	var records []*core.Record
	err := app.RecordQuery(collections.ContractRevisions).
		OrderBy("revision_index DESC").
		Limit(1).
		All(&records)
	if err != nil {
		return 0, fmt.Errorf("max revision index: %w", err)
	}
	if len(records) == 0 {
		return 1, nil
	}
	return records[0].GetInt("revision_index") + 1, nil
}

func findRevision(app core.App, id string) (*core.Record, error) {
	r, err := app.FindRecordById(collections.ContractRevisions, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError("FindRevision", id, ErrRevisionNotFound)
		}
		return nil, fmt.Errorf("find revision %s: %w", id, err)
	}
	return r, nil
}

func findOverride(app core.App, revisionID, itemID string) (*core.Record, error) {
	r, err := app.FindFirstRecordByFilter(
		collections.ItemOverrides,
		"revision = {:revision} && item = {:item}",
		dbx.Params{"revision": revisionID, "item": itemID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError("FindOverride", itemID, ErrOverrideNotFound)
		}
		return nil, fmt.Errorf("find override: %w", err)
	}
	return r, nil
}

func revisionFromRecord(r *core.Record) Revision {
	return Revision{
		ID:      r.Id,
		Index:   r.GetInt("revision_index"),
		Note:    r.GetString("note"),
		Created: r.GetDateTime("created").Time(),
	}
}

func overrideFromRecord(r *core.Record) Override {
	return Override{
		ID:            r.Id,
		RevisionID:    r.GetString("revision"),
		RevisionIndex: r.GetInt("revision_index"),
		ItemID:        r.GetString("item"),
		NewQuantity:   r.GetFloat("new_quantity"),
		Note:          r.GetString("note"),
	}
}
