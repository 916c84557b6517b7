package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
)

// BindHooks registers record hooks that guard data-layer invariants
// regardless of which code path performs the write.
func BindHooks(app core.App) {
	// original_contract_quantity is write-once; revisions carry every change.
	app.OnRecordUpdate(BOQItems).BindFunc(func(e *core.RecordEvent) error {
		before := e.Record.Original().GetFloat("original_contract_quantity")
		after := e.Record.GetFloat("original_contract_quantity")
		if before != after {
			return fmt.Errorf("boq item %s: original_contract_quantity is write-once (%v -> %v)",
				e.Record.Id, before, after)
		}
		if e.Record.Original().GetString("section_number") != e.Record.GetString("section_number") {
			return fmt.Errorf("boq item %s: section_number cannot be changed", e.Record.Id)
		}
		return e.Next()
	})
}
