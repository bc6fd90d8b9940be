// Package record provides the canonical item record model shared by the
// ingestion pipeline, the tiered store, and the worksheet synchronizer.
//
// A Record is one observation of a teaching-material entry, keyed by its
// stable material_id. The column set is a superset: a handful of columns
// have fixed meaning (identity, category, volatile fields, provenance) and
// every other column from the source export is carried through opaquely.
package record

import (
	"fmt"
	"strings"
)

// KeyColumn is the natural key column. A record without it is invalid in
// every tier.
const KeyColumn = "material_id"

// VolatileColumns are the columns whose change between observations defines
// "the item has changed" for history/current purposes.
var VolatileColumns = []string{
	"classification",
	"ml_prediction",
	"manual_classification",
	"last_change",
	"status",
}

// Derived columns added during canonicalization and synchronization.
const (
	ColumnCategory       = "category"
	ColumnRetrievedOn    = "retrieved_on"
	ColumnWorkflowStatus = "workflow_status"
	ColumnWorkflowNotes  = "workflow_remarks"
	ColumnAddedToSheetOn = "added_to_sheet_on"
)

// Sentinel category values.
const (
	// CategoryUnmapped marks a department present in the export but absent
	// from the lookup table.
	CategoryUnmapped = "Unmapped"
	// CategoryNone marks a record whose department column is blank or missing.
	CategoryNone = "no_category"
)

// FixedColumns lists every column with fixed meaning, in canonical order.
// Columns outside this list travel in the record's opaque remainder.
var FixedColumns = []string{
	KeyColumn,
	ColumnCategory,
	"classification",
	"ml_prediction",
	"manual_classification",
	"last_change",
	"status",
	ColumnRetrievedOn,
	ColumnWorkflowStatus,
	ColumnWorkflowNotes,
}

// Record is a single observation of an item. Columns preserves the source
// column order; Values maps column name to cell value. All values are
// strings, matching the delimited-text exports the system ingests.
type Record struct {
	Columns []string
	Values  map[string]string
}

// New returns an empty record.
func New() Record {
	return Record{Values: make(map[string]string)}
}

// MaterialID returns the record's natural key.
func (r Record) MaterialID() string {
	return r.Values[KeyColumn]
}

// Get returns the value for a column, or "" when absent.
func (r Record) Get(column string) string {
	return r.Values[column]
}

// Has reports whether the column is present, even with an empty value.
func (r Record) Has(column string) bool {
	_, ok := r.Values[column]
	return ok
}

// Set assigns a value, appending the column to the order when new.
func (r *Record) Set(column, value string) {
	if r.Values == nil {
		r.Values = make(map[string]string)
	}
	if _, ok := r.Values[column]; !ok {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = value
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{
		Columns: make([]string, len(r.Columns)),
		Values:  make(map[string]string, len(r.Values)),
	}
	copy(out.Columns, r.Columns)
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// Validate checks that the record can enter a store tier.
func (r Record) Validate() error {
	if strings.TrimSpace(r.MaterialID()) == "" {
		return fmt.Errorf("%s is required", KeyColumn)
	}
	return nil
}

// VolatileKey returns the comparison tuple for change detection: the values
// of all volatile columns joined with an unprintable separator. Two
// observations of the same item are "identical" exactly when their keys
// match.
func (r Record) VolatileKey() string {
	parts := make([]string, len(VolatileColumns))
	for i, col := range VolatileColumns {
		parts[i] = r.Values[col]
	}
	return strings.Join(parts, "\x1f")
}

// ExtraColumns returns the record's opaque columns (everything outside
// FixedColumns) in their original order.
func (r Record) ExtraColumns() []string {
	fixed := make(map[string]bool, len(FixedColumns))
	for _, c := range FixedColumns {
		fixed[c] = true
	}
	var extra []string
	for _, c := range r.Columns {
		if !fixed[c] {
			extra = append(extra, c)
		}
	}
	return extra
}

// NormalizeColumn rewrites a raw export column name into canonical form:
// lowercase, spaces to underscores, '#' to 'count_', '*' to 'x'.
func NormalizeColumn(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "#", "count_")
	name = strings.ReplaceAll(name, "*", "x")
	return strings.ToLower(name)
}
