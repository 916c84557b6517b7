package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// Collection names shared by the services and handlers packages.
const (
	BOQItems             = "boq_items"
	ContractRevisions    = "contract_revisions"
	ItemOverrides        = "item_overrides"
	ProjectInfo          = "project_info"
	ConcentrationSheets  = "concentration_sheets"
	ConcentrationEntries = "concentration_entries"
	ExportJobs           = "export_jobs"
)

// ExportJobStatuses lists the states an export request moves through.
var ExportJobStatuses = []string{"requested", "rendering", "succeeded", "failed"}

// Setup programmatically creates/ensures the catalog, revision ledger,
// concentration and export collections exist.
func Setup(app core.App) {
	items := ensureCollection(app, BOQItems, func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "section_number", Required: true})
		c.Fields.Add(&core.TextField{Name: "description", Required: false})
		c.Fields.Add(&core.TextField{Name: "unit", Required: false})
		c.Fields.Add(&core.NumberField{Name: "price", Required: false})
		c.Fields.Add(&core.NumberField{Name: "original_contract_quantity", Required: false})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_boq_items_section_number", true, "section_number", "")
	})

	revisions := ensureCollection(app, ContractRevisions, func(c *core.Collection) {
		c.Fields.Add(&core.NumberField{Name: "revision_index", Required: true, OnlyInt: true})
		c.Fields.Add(&core.TextField{Name: "note", Required: false})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.AddIndex("idx_contract_revisions_index", true, "revision_index", "")
	})

	ensureCollection(app, ItemOverrides, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "revision",
			Required:      true,
			CollectionId:  revisions.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.RelationField{
			Name:          "item",
			Required:      true,
			CollectionId:  items.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "revision_index", Required: true, OnlyInt: true})
		c.Fields.Add(&core.NumberField{Name: "new_quantity", Required: false})
		c.Fields.Add(&core.TextField{Name: "note", Required: false})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.AddIndex("idx_item_overrides_revision_item", true, "revision, item", "")
		c.AddIndex("idx_item_overrides_item_index", false, "item, revision_index", "")
	})

	ensureCollection(app, ProjectInfo, func(c *core.Collection) {
		addProjectInfoFields(c)
		c.Fields.Add(&core.NumberField{Name: "version", Required: false, OnlyInt: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
	})

	sheets := ensureCollection(app, ConcentrationSheets, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "boq_item",
			Required:      true,
			CollectionId:  items.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		addProjectInfoFields(c)
		c.Fields.Add(&core.NumberField{Name: "info_version", Required: false, OnlyInt: true})
		c.Fields.Add(&core.DateField{Name: "info_synced", Required: false})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_concentration_sheets_item", true, "boq_item", "")
	})

	ensureCollection(app, ConcentrationEntries, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "sheet",
			Required:      true,
			CollectionId:  sheets.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "position", Required: true, OnlyInt: true})
		c.Fields.Add(&core.TextField{Name: "description", Required: false})
		c.Fields.Add(&core.TextField{Name: "calculation_sheet_no", Required: false})
		c.Fields.Add(&core.TextField{Name: "drawing_no", Required: false})
		c.Fields.Add(&core.TextField{Name: "section_number", Required: false})
		c.Fields.Add(&core.NumberField{Name: "estimated_quantity", Required: false})
		c.Fields.Add(&core.NumberField{Name: "quantity_submitted", Required: false})
		c.Fields.Add(&core.NumberField{Name: "internal_quantity", Required: false})
		c.Fields.Add(&core.NumberField{Name: "approved_by_project_manager", Required: false})
		c.Fields.Add(&core.TextField{Name: "notes", Required: false})
		c.Fields.Add(&core.BoolField{Name: "is_manual"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_concentration_entries_position", false, "sheet, position", "")
		c.AddIndex("idx_concentration_entries_source", false, "sheet, calculation_sheet_no, section_number", "")
	})

	ensureCollection(app, ExportJobs, func(c *core.Collection) {
		c.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			Values:    ExportJobStatuses,
			MaxSelect: 1,
		})
		c.Fields.Add(&core.TextField{Name: "format", Required: true})
		c.Fields.Add(&core.TextField{Name: "locale", Required: false})
		c.Fields.Add(&core.NumberField{Name: "sheet_count", Required: false, OnlyInt: true})
		c.Fields.Add(&core.TextField{Name: "artifact_path", Required: false})
		c.Fields.Add(&core.TextField{Name: "file_name", Required: false})
		c.Fields.Add(&core.TextField{Name: "reason", Required: false})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
	})
}

// addProjectInfoFields adds the project metadata columns shared by the
// canonical project_info record and every sheet's denormalized copy.
func addProjectInfoFields(c *core.Collection) {
	for _, name := range ProjectInfoFields {
		c.Fields.Add(&core.TextField{Name: name, Required: false})
	}
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app core.App, name string, addFields func(*core.Collection)) *core.Collection {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		log.Printf("Collection %q already exists, skipping creation.\n", name)
		return existing
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		log.Fatalf("Failed to create collection %q: %v", name, err)
	}

	fmt.Printf("Created collection %q (id=%s)\n", name, collection.Id)
	return collection
}
