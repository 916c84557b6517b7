package services

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"boqledger/collections"
)

// VersionedProjectInfo is the canonical project metadata record.
type VersionedProjectInfo struct {
	ID string `json:"id"`
	ProjectInfo
	Version int       `json:"version"`
	Updated time.Time `json:"updated"`
}

// Validate bounds the free-text metadata fields.
func (p ProjectInfo) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProjectName, validation.Length(0, 200)),
		validation.Field(&p.ContractorInCharge, validation.Length(0, 200)),
		validation.Field(&p.ContractNo, validation.Length(0, 100)),
		validation.Field(&p.DeveloperName, validation.Length(0, 200)),
	)
}

// ProjectInfoService owns the canonical project_info record and its
// propagation onto concentration sheets.
type ProjectInfoService struct {
	app    core.App
	sheets *keyedLocks
}

func NewProjectInfoService(app core.App, sheets *keyedLocks) *ProjectInfoService {
	return &ProjectInfoService{app: app, sheets: sheets}
}

// Get returns the canonical record.
func (s *ProjectInfoService) Get() (*VersionedProjectInfo, error) {
	return currentProjectInfo(s.app)
}

// Update replaces the canonical fields and bumps the version. Sheets keep
// their old copy until Sync runs.
func (s *ProjectInfoService) Update(info ProjectInfo) (*VersionedProjectInfo, error) {
	info.ProjectName = strings.TrimSpace(info.ProjectName)
	info.ContractorInCharge = strings.TrimSpace(info.ContractorInCharge)
	info.ContractNo = strings.TrimSpace(info.ContractNo)
	info.DeveloperName = strings.TrimSpace(info.DeveloperName)
	if err := info.Validate(); err != nil {
		return nil, &Error{Op: "UpdateProjectInfo", Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
	}

	var out *VersionedProjectInfo
	err := s.app.RunInTransaction(func(txApp core.App) error {
		r, err := projectInfoRecord(txApp)
		if err != nil {
			return err
		}
		setProjectInfo(r, info)
		r.Set("version", r.GetInt("version")+1)
		if err := txApp.Save(r); err != nil {
			return fmt.Errorf("save project info: %w", err)
		}
		out = projectInfoFromRecord(r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.app.Logger().Info("project info updated", "version", out.Version)
	return out, nil
}

// Sync copies the canonical fields and version onto every sheet and returns
// the number of sheets that changed.
func (s *ProjectInfoService) Sync() (int, error) {
	info, err := currentProjectInfo(s.app)
	if err != nil {
		return 0, err
	}

	sheetRecords, err := s.app.FindAllRecords(collections.ConcentrationSheets)
	if err != nil {
		return 0, fmt.Errorf("list sheets: %w", err)
	}

	updated := 0
	for _, r := range sheetRecords {
		changed, err := s.syncSheet(r.Id, info)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}

	s.app.Logger().Info("project info synced",
		"version", info.Version,
		"sheets", len(sheetRecords),
		"updated", updated,
	)
	return updated, nil
}

func (s *ProjectInfoService) syncSheet(sheetID string, info *VersionedProjectInfo) (bool, error) {
	unlock := s.sheets.Lock(sheetID)
	defer unlock()

	r, err := findSheet(s.app, sheetID)
	if err != nil {
		return false, err
	}
	if r.GetInt("info_version") == info.Version && sheetFromRecord(r).Info == info.ProjectInfo {
		return false, nil
	}

	setProjectInfo(r, info.ProjectInfo)
	r.Set("info_version", info.Version)
	r.Set("info_synced", types.NowDateTime())
	if err := s.app.Save(r); err != nil {
		return false, fmt.Errorf("sync sheet %s: %w", sheetID, err)
	}
	return true, nil
}

func currentProjectInfo(app core.App) (*VersionedProjectInfo, error) {
	r, err := projectInfoRecord(app)
	if err != nil {
		return nil, err
	}
	return projectInfoFromRecord(r), nil
}

// projectInfoRecord returns the single canonical record, creating an empty
// one at version 1 if startup migrations have not run. Lookup and creation
// share one transaction, and PocketBase runs transactions one at a time, so
// concurrent first calls cannot create two records.
func projectInfoRecord(app core.App) (*core.Record, error) {
	var rec *core.Record
	err := app.RunInTransaction(func(txApp core.App) error {
		var records []*core.Record
		err := txApp.RecordQuery(collections.ProjectInfo).
			OrderBy("id ASC").
			Limit(1).
			All(&records)
		if err != nil {
			return fmt.Errorf("find project info: %w", err)
		}
		if len(records) > 0 {
			rec = records[0]
			return nil
		}

		col, err := txApp.FindCollectionByNameOrId(collections.ProjectInfo)
		if err != nil {
			return fmt.Errorf("project_info collection not found: %w", err)
		}
		r := core.NewRecord(col)
		r.Set("version", 1)
		if err := txApp.Save(r); err != nil {
			return fmt.Errorf("create project info: %w", err)
		}
		txApp.Logger().Info("project info created lazily", "id", r.Id)
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func projectInfoFromRecord(r *core.Record) *VersionedProjectInfo {
	return &VersionedProjectInfo{
		ID: r.Id,
		ProjectInfo: ProjectInfo{
			ProjectName:        r.GetString("project_name"),
			ContractorInCharge: r.GetString("contractor_in_charge"),
			ContractNo:         r.GetString("contract_no"),
			DeveloperName:      r.GetString("developer_name"),
		},
		Version: r.GetInt("version"),
		Updated: r.GetDateTime("updated").Time(),
	}
}
