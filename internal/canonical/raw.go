package canonical

import (
	"encoding/csv"
	"fmt"
	"os"
)

// RawTable is a raw snapshot export as read from disk: a header plus rows,
// column set entirely author-defined.
type RawTable struct {
	Source string
	Header []string
	Rows   [][]string
}

// nullValues are cell values the upstream export uses for "no value".
// They are normalized to the empty string on read.
var nullValues = map[string]bool{
	"-":    true,
	"":     true,
	"NA":   true,
	"None": true,
}

// ReadRawCSV reads a delimited-text export. Cells holding one of the
// upstream null markers are read as empty. Ragged rows are tolerated;
// missing trailing cells become empty values during canonicalization.
func ReadRawCSV(path string) (RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	all, err := reader.ReadAll()
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to parse export %s: %w", path, err)
	}
	if len(all) == 0 {
		return RawTable{Source: path}, nil
	}

	table := RawTable{Source: path, Header: all[0]}
	for _, row := range all[1:] {
		clean := make([]string, len(row))
		for i, cell := range row {
			if nullValues[cell] {
				clean[i] = ""
			} else {
				clean[i] = cell
			}
		}
		table.Rows = append(table.Rows, clean)
	}
	return table, nil
}
