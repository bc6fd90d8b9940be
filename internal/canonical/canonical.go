// Package canonical normalizes raw snapshot exports into canonical item
// records: column names are rewritten into a fixed scheme, the category is
// derived from the raw department column, and provenance and workflow
// defaults are stamped on first ingestion.
package canonical

import (
	"fmt"
	"time"

	"github.com/utlib/eacli/internal/record"
)

// Workflow defaults seeded when the export does not carry its own workflow
// columns. Later ingestions never overwrite values sourced from the export.
const (
	DefaultWorkflowStatus  = "not checked"
	DefaultWorkflowRemarks = "-"
)

// rawDepartmentColumn is the (normalized) source column the category is
// derived from.
const rawDepartmentColumn = "department"

// MalformedInputError reports a raw export that cannot be canonicalized at
// all: it is structurally empty or lacks the natural key column. It aborts
// ingestion of that batch only.
type MalformedInputError struct {
	Source string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("malformed export: %s", e.Reason)
	}
	return fmt.Sprintf("malformed export %s: %s", e.Source, e.Reason)
}

// UnmappedCategoryWarning flags a department that has no entry in the
// lookup table. The record still proceeds, tagged "Unmapped"; the warning
// exists so an operator can extend the table.
type UnmappedCategoryWarning struct {
	MaterialID string
	Department string
}

func (w UnmappedCategoryWarning) String() string {
	return fmt.Sprintf("no category for department %q (material_id %s)", w.Department, w.MaterialID)
}

// Canonicalizer converts raw tables into canonical records using an
// injected, immutable category lookup.
type Canonicalizer struct {
	lookup *Lookup
}

// New returns a Canonicalizer backed by the given lookup.
func New(lookup *Lookup) *Canonicalizer {
	return &Canonicalizer{lookup: lookup}
}

// Canonicalize converts a raw table into canonical records.
//
// The transformation is deterministic and pure apart from the injected
// retrieval date:
//   - every column name is normalized (see record.NormalizeColumn);
//   - category is derived from the department column;
//   - retrieved_on is stamped with the retrieval date;
//   - workflow_status / workflow_remarks are seeded with defaults only when
//     the raw table does not carry those columns itself.
//
// Unknown departments produce warnings, never errors. A structurally empty
// table or one without a material_id column fails with MalformedInputError.
func (c *Canonicalizer) Canonicalize(raw RawTable, retrieved time.Time) ([]record.Record, []UnmappedCategoryWarning, error) {
	if len(raw.Rows) == 0 || len(raw.Header) == 0 {
		return nil, nil, &MalformedInputError{Source: raw.Source, Reason: "export contains no rows"}
	}

	header := make([]string, len(raw.Header))
	hasKey := false
	for i, col := range raw.Header {
		header[i] = record.NormalizeColumn(col)
		if header[i] == record.KeyColumn {
			hasKey = true
		}
	}
	if !hasKey {
		return nil, nil, &MalformedInputError{Source: raw.Source, Reason: fmt.Sprintf("missing %s column", record.KeyColumn)}
	}

	seedStatus := !contains(header, record.ColumnWorkflowStatus)
	seedRemarks := !contains(header, record.ColumnWorkflowNotes)
	retrievedOn := retrieved.Format("2006-01-02")

	records := make([]record.Record, 0, len(raw.Rows))
	var warnings []UnmappedCategoryWarning
	for _, row := range raw.Rows {
		rec := record.New()
		for i, col := range header {
			if i < len(row) {
				rec.Set(col, row[i])
			} else {
				rec.Set(col, "")
			}
		}

		dept := rec.Get(rawDepartmentColumn)
		category := c.lookup.Category(dept)
		if category == record.CategoryUnmapped {
			warnings = append(warnings, UnmappedCategoryWarning{
				MaterialID: rec.MaterialID(),
				Department: dept,
			})
		}
		rec.Set(record.ColumnCategory, category)
		rec.Set(record.ColumnRetrievedOn, retrievedOn)
		if seedStatus {
			rec.Set(record.ColumnWorkflowStatus, DefaultWorkflowStatus)
		}
		if seedRemarks {
			rec.Set(record.ColumnWorkflowNotes, DefaultWorkflowRemarks)
		}

		records = append(records, rec)
	}

	return records, warnings, nil
}

func contains(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
