package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cobra"

	"boqledger/collections"
	"boqledger/config"
	"boqledger/handlers"
	"boqledger/services"
)

func main() {
	app := pocketbase.New()

	cfgPath := os.Getenv("BOQ_CONFIG")
	if cfgPath == "" {
		cfgPath = "boq.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	eng := services.NewEngine(app, services.ExportOptions{
		Dir:           cfg.ResolveExportDir(app.DataDir()),
		DefaultLocale: cfg.DefaultLocale,
		Workers:       cfg.RenderWorkers,
	})

	collections.BindHooks(app)

	// Create collections, run migrations and seed data on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		prepare(app, cfg)
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		api := se.Router.Group("/api/boq")
		api.BindFunc(handlers.RequireJSON)

		// ── Catalog ──────────────────────────────────────────────
		api.GET("/items", handlers.HandleItemList(eng))
		api.POST("/items/import", handlers.HandleItemImport(eng))
		api.GET("/items/{id}", handlers.HandleItemGet(eng))
		api.GET("/items/{id}/quantity", handlers.HandleItemQuantity(eng))
		api.POST("/items/{id}/sheet", handlers.HandleItemSheet(eng))
		api.GET("/sections/{code}", handlers.HandleItemBySection(eng))

		// ── Revision ledger ──────────────────────────────────────
		api.GET("/revisions", handlers.HandleRevisionList(eng))
		api.POST("/revisions", handlers.HandleRevisionOpen(eng))
		api.DELETE("/revisions/{id}", handlers.HandleRevisionDelete(eng))
		api.POST("/revisions/{id}/overrides", handlers.HandleOverrideSet(eng))
		api.PATCH("/revisions/{id}/overrides/{itemId}", handlers.HandleOverrideUpdate(eng))

		// ── Concentration sheets ─────────────────────────────────
		api.GET("/sheets/{id}/entries", handlers.HandleEntryList(eng))
		api.POST("/sheets/{id}/entries", handlers.HandleEntryCreate(eng))
		api.GET("/sheets/{id}/totals", handlers.HandleSheetTotals(eng))
		api.PATCH("/entries/{id}", handlers.HandleEntryUpdate(eng))
		api.DELETE("/entries/{id}", handlers.HandleEntryDelete(eng))

		// ── Calculation sheets ───────────────────────────────────
		api.POST("/calculation-sheets", handlers.HandlePopulate(eng))

		// ── Project info ─────────────────────────────────────────
		api.GET("/project-info", handlers.HandleProjectInfoGet(eng))
		api.PUT("/project-info", handlers.HandleProjectInfoUpdate(eng))
		api.POST("/project-info/sync", handlers.HandleProjectInfoSync(eng))

		// ── Exports ──────────────────────────────────────────────
		api.POST("/exports", handlers.HandleExportCreate(eng))
		api.GET("/exports/{id}", handlers.HandleExportStatus(eng))
		api.GET("/exports/{id}/download", handlers.HandleExportDownload(eng))

		return se.Next()
	})

	app.RootCmd.AddCommand(populateCommand(app, cfg, eng))

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// prepare ensures collections, migrations and optional demo data.
func prepare(app core.App, cfg *config.Config) {
	collections.Setup(app)
	if err := collections.MigrateDefaultProjectInfo(app); err != nil {
		log.Printf("Warning: project info migration failed: %v", err)
	}
	if err := collections.MigrateUnstampedSheets(app); err != nil {
		log.Printf("Warning: sheet stamping failed: %v", err)
	}
	if cfg.SeedDemo {
		if err := collections.Seed(app); err != nil {
			log.Printf("Warning: seed data failed: %v", err)
		}
	}
}

// populateCommand imports a JSON file of already-parsed calculation sheets
// without starting the HTTP server.
func populateCommand(app core.App, cfg *config.Config, eng *services.Engine) *cobra.Command {
	return &cobra.Command{
		Use:   "populate <file.json>",
		Short: "Import parsed calculation sheets into concentration sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prepare(app, cfg)

			sheets, err := readCalculationSheets(args[0])
			if err != nil {
				return err
			}

			report, err := eng.Populator.Populate(cmd.Context(), sheets)
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			if err := out.Encode(report); err != nil {
				return err
			}
			if report.Failed() > 0 {
				return fmt.Errorf("%d calculation-sheet section(s) failed to import", report.Failed())
			}
			return nil
		},
	}
}

// readCalculationSheets accepts either a bare JSON array or an object with a
// "calculation_sheets" array.
func readCalculationSheets(path string) ([]services.CalculationSheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var sheets []services.CalculationSheet
	if err := json.Unmarshal(raw, &sheets); err == nil {
		return sheets, nil
	}

	var wrapped handlers.PopulateRequest
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return wrapped.CalculationSheets, nil
}
