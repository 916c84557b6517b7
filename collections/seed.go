package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

type itemDef struct {
	sectionNumber string
	description   string
	unit          string
	price         float64
	quantity      float64
}

var seedItems = []itemDef{
	{"01.01.0010", "Excavation for foundations in any soil", "m3", 85, 1250},
	{"01.01.0020", "Backfill with selected material, compacted", "m3", 62, 840},
	{"02.03.0010", "Reinforced concrete B-30 in foundation beams", "m3", 1450, 310},
	{"02.03.0050", "Steel reinforcement, ribbed bars", "ton", 5200, 42.5},
	{"04.01.0100", "Concrete block walls 20 cm", "m2", 190, 2100},
	{"19.02.0030", "Ceramic floor tiles 60x60, including adhesive", "m2", 235, 1780},
}

// Seed inserts a demo BOQ catalog and the canonical project info when the
// catalog is empty. It is a no-op otherwise.
func Seed(app core.App) error {
	itemsCol, err := app.FindCollectionByNameOrId(BOQItems)
	if err != nil {
		return fmt.Errorf("seed: could not find boq_items collection: %w", err)
	}
	existing, err := app.FindAllRecords(itemsCol)
	if err != nil {
		return fmt.Errorf("seed: could not query boq_items: %w", err)
	}
	if len(existing) > 0 {
		return nil // already seeded
	}

	log.Println("seed: boq_items collection is empty – inserting seed data …")

	infoCol, err := app.FindCollectionByNameOrId(ProjectInfo)
	if err != nil {
		return fmt.Errorf("seed: could not find project_info collection: %w", err)
	}

	return app.RunInTransaction(func(txApp core.App) error {
		for _, d := range seedItems {
			r := core.NewRecord(itemsCol)
			r.Set("section_number", d.sectionNumber)
			r.Set("description", d.description)
			r.Set("unit", d.unit)
			r.Set("price", d.price)
			r.Set("original_contract_quantity", d.quantity)
			if err := txApp.Save(r); err != nil {
				return fmt.Errorf("seed: item %s: %w", d.sectionNumber, err)
			}
		}

		infos, err := txApp.FindAllRecords(infoCol)
		if err != nil {
			return fmt.Errorf("seed: could not query project_info: %w", err)
		}
		info := core.NewRecord(infoCol)
		if len(infos) > 0 {
			info = infos[0]
		}
		info.Set("project_name", "Residential Towers – Phase B")
		info.Set("contractor_in_charge", "Main Contractor Ltd.")
		info.Set("contract_no", "C-2026-014")
		info.Set("developer_name", "Harbor Developments")
		info.Set("version", info.GetInt("version")+1)
		if err := txApp.Save(info); err != nil {
			return fmt.Errorf("seed: project info: %w", err)
		}

		log.Printf("seed: inserted %d BOQ items\n", len(seedItems))
		return nil
	})
}
