package services

import "github.com/pocketbase/pocketbase/core"

// Engine bundles the BOQ services around one PocketBase app. Handlers and
// the CLI share a single Engine so the in-process item and sheet locks are
// common to every caller.
type Engine struct {
	Catalog     *Catalog
	Ledger      *Ledger
	Sheets      *Aggregator
	ProjectInfo *ProjectInfoService
	Populator   *Populator
	Exporter    *Exporter
}

func NewEngine(app core.App, opts ExportOptions) *Engine {
	ledger := NewLedger(app)
	agg := NewAggregator(app, ledger)
	return &Engine{
		Catalog:     NewCatalog(app),
		Ledger:      ledger,
		Sheets:      agg,
		ProjectInfo: NewProjectInfoService(app, agg.sheets),
		Populator:   NewPopulator(agg),
		Exporter:    NewExporter(app, agg, opts),
	}
}
