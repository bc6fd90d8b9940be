// Package sheets implements the worksheet side of the system: loading and
// saving the human-edited CSV projections, synchronizing them additively
// from the store, writing verified backups before any destructive write,
// and reporting drift between sheet values and store values.
package sheets

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/utlib/eacli/internal/record"
)

// Sheet is one worksheet as found on disk. Existing rows are kept as raw
// string slices and written back verbatim: the synchronizer is additive
// only, and whatever a human typed into a cell must survive untouched.
type Sheet struct {
	Path   string
	Header []string
	Rows   [][]string

	keyIndex int
}

// Load reads a worksheet. A missing file is not an error: it yields an
// empty sheet that will be created on first save.
func Load(path string) (*Sheet, error) {
	s := &Sheet{Path: path, keyIndex: -1}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open worksheet: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse worksheet %s: %w", path, err)
	}
	if len(all) == 0 {
		return s, nil
	}

	s.Header = all[0]
	s.Rows = all[1:]
	s.findKey()
	return s, nil
}

func (s *Sheet) findKey() {
	s.keyIndex = -1
	for i, col := range s.Header {
		if col == record.KeyColumn {
			s.keyIndex = i
			return
		}
	}
}

// Empty reports whether the sheet has no content at all.
func (s *Sheet) Empty() bool {
	return len(s.Header) == 0 && len(s.Rows) == 0
}

// IDs returns the set of material ids present in the sheet. A sheet
// without a material_id column has no identifiable rows.
func (s *Sheet) IDs() map[string]bool {
	ids := make(map[string]bool, len(s.Rows))
	if s.keyIndex < 0 {
		return ids
	}
	for _, row := range s.Rows {
		if s.keyIndex < len(row) && row[s.keyIndex] != "" {
			ids[row[s.keyIndex]] = true
		}
	}
	return ids
}

// Row returns the raw row for an id, or nil.
func (s *Sheet) Row(materialID string) []string {
	if s.keyIndex < 0 {
		return nil
	}
	for _, row := range s.Rows {
		if s.keyIndex < len(row) && row[s.keyIndex] == materialID {
			return row
		}
	}
	return nil
}

// Cell returns the sheet value for one id and column, and whether the
// sheet carries that column at all.
func (s *Sheet) Cell(materialID, column string) (string, bool) {
	col := -1
	for i, c := range s.Header {
		if c == column {
			col = i
			break
		}
	}
	if col < 0 {
		return "", false
	}
	row := s.Row(materialID)
	if row == nil {
		return "", false
	}
	if col >= len(row) {
		return "", true
	}
	return row[col], true
}

// Append adds a record as a new row. An empty sheet adopts the record's
// column order as its header; a sheet with an existing header keeps its
// layout, and record columns missing from that header are dropped (the
// sheet owns its own column set).
func (s *Sheet) Append(rec record.Record) {
	if len(s.Header) == 0 {
		s.Header = append([]string(nil), rec.Columns...)
		s.findKey()
	}
	row := make([]string, len(s.Header))
	for i, col := range s.Header {
		row[i] = rec.Get(col)
	}
	s.Rows = append(s.Rows, row)
}

// Records converts the sheet's rows into records keyed by the header.
// Rows without a material id are skipped; the sheet's column order is
// preserved.
func (s *Sheet) Records() []record.Record {
	if s.keyIndex < 0 {
		return nil
	}
	var records []record.Record
	for _, row := range s.Rows {
		rec := record.New()
		for i, col := range s.Header {
			if i < len(row) {
				rec.Set(col, row[i])
			} else {
				rec.Set(col, "")
			}
		}
		if rec.MaterialID() == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Save persists the sheet behind the scoped destructive write: existing
// content is copied to a verified dated backup before the file is
// replaced. Returns the backup path, or "" when the file did not exist.
func (s *Sheet) Save(now time.Time) (string, error) {
	return writeWithBackup(s.Path, now, s.write)
}

// write serializes the sheet as CSV.
func (s *Sheet) write(f *os.File) error {
	w := csv.NewWriter(f)
	if err := w.Write(s.Header); err != nil {
		return err
	}
	for _, row := range s.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
