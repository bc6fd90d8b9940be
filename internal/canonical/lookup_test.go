package canonical

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempMapping(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write mapping file: %v", err)
	}
	return path
}

func TestLoadLookup_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "mapping.json", `{"M-CS: Computer Science": "EEMCS"}`},
		{"yaml", "mapping.yaml", "\"M-CS: Computer Science\": EEMCS\n"},
		{"toml", "mapping.toml", `"M-CS: Computer Science" = "EEMCS"` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempMapping(t, tt.file, tt.content)
			lookup, err := LoadLookup(path)
			if err != nil {
				t.Fatalf("LoadLookup() failed: %v", err)
			}
			if got := lookup.Category("M-CS: Computer Science"); got != "EEMCS" {
				t.Errorf("Category() = %q, want %q", got, "EEMCS")
			}
		})
	}
}

func TestLoadLookup_UnsupportedFormat(t *testing.T) {
	path := writeTempMapping(t, "mapping.ini", "a=b")
	if _, err := LoadLookup(path); err == nil {
		t.Error("LoadLookup() should reject unknown extensions")
	}
}

func TestLoadLookup_MissingFile(t *testing.T) {
	if _, err := LoadLookup(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadLookup() should fail for a missing file")
	}
}

func TestLookup_Sentinels(t *testing.T) {
	lookup := NewLookup(map[string]string{
		"Known Dept": "EEMCS",
		"Ghost Dept": "",
	})

	tests := []struct {
		dept string
		want string
	}{
		{"Known Dept", "EEMCS"},
		{"Unknown Dept", "Unmapped"},
		{"", "no_category"},
		{"   ", "no_category"},
		{"Ghost Dept", "no_category"},
	}
	for _, tt := range tests {
		if got := lookup.Category(tt.dept); got != tt.want {
			t.Errorf("Category(%q) = %q, want %q", tt.dept, got, tt.want)
		}
	}
}
