package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// MigrateDefaultProjectInfo makes sure exactly one canonical project_info
// record exists. Safe to call on every startup.
func MigrateDefaultProjectInfo(app core.App) error {
	col, err := app.FindCollectionByNameOrId(ProjectInfo)
	if err != nil {
		return fmt.Errorf("migrate: could not find project_info collection: %w", err)
	}

	existing, err := app.FindAllRecords(col)
	if err != nil {
		return fmt.Errorf("migrate: could not query project_info: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	record := core.NewRecord(col)
	record.Set("version", 1)
	if err := app.Save(record); err != nil {
		return fmt.Errorf("migrate: could not create project_info: %w", err)
	}

	log.Printf("migrate: created default project_info record (%s)\n", record.Id)
	return nil
}

// MigrateUnstampedSheets finds concentration sheets that were never given a
// project-info copy (info_version = 0) and stamps them with the current
// canonical values. Sheets that already carry a copy are left alone so that
// stale copies stay observable until an explicit sync.
func MigrateUnstampedSheets(app core.App) error {
	infoCol, err := app.FindCollectionByNameOrId(ProjectInfo)
	if err != nil {
		return fmt.Errorf("migrate: could not find project_info collection: %w", err)
	}
	infos, err := app.FindAllRecords(infoCol)
	if err != nil || len(infos) == 0 {
		return nil
	}
	info := infos[0]

	sheetsCol, err := app.FindCollectionByNameOrId(ConcentrationSheets)
	if err != nil {
		return fmt.Errorf("migrate: could not find concentration_sheets collection: %w", err)
	}

	unstamped, err := app.FindRecordsByFilter(sheetsCol, "info_version = 0", "", 0, 0, nil)
	if err != nil {
		return fmt.Errorf("migrate: could not query unstamped sheets: %w", err)
	}
	if len(unstamped) == 0 {
		return nil
	}

	log.Printf("migrate: found %d sheet(s) without project info -- stamping...\n", len(unstamped))

	for _, sheet := range unstamped {
		for _, field := range ProjectInfoFields {
			sheet.Set(field, info.GetString(field))
		}
		sheet.Set("info_version", info.GetInt("version"))
		if err := app.Save(sheet); err != nil {
			log.Printf("migrate: failed to stamp sheet %s: %v\n", sheet.Id, err)
			continue
		}
	}

	log.Println("migrate: sheet stamping complete.")
	return nil
}

// ProjectInfoFields are the project metadata columns copied onto each sheet.
var ProjectInfoFields = []string{"project_name", "contractor_in_charge", "contract_no", "developer_name"}
