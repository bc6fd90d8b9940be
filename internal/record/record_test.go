package record

import (
	"testing"
)

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Material ID", "material_id"},
		{"hash", "# Students", "count__students"},
		{"star", "Scope*", "scopex"},
		{"already normal", "last_change", "last_change"},
		{"mixed", "ML Prediction", "ml_prediction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeColumn(tt.in); got != tt.want {
				t.Errorf("NormalizeColumn(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSet_PreservesColumnOrder(t *testing.T) {
	r := New()
	r.Set("material_id", "A1")
	r.Set("title", "Reader week 1")
	r.Set("status", "Done")
	r.Set("title", "Reader week 2") // update must not duplicate the column

	want := []string{"material_id", "title", "status"}
	if len(r.Columns) != len(want) {
		t.Fatalf("Columns = %v, want %v", r.Columns, want)
	}
	for i, c := range want {
		if r.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, r.Columns[i], c)
		}
	}
	if got := r.Get("title"); got != "Reader week 2" {
		t.Errorf("Get(title) = %q, want %q", got, "Reader week 2")
	}
}

func TestVolatileKey(t *testing.T) {
	a := New()
	a.Set("material_id", "A1")
	a.Set("status", "Done")
	a.Set("classification", "open access")

	b := a.Clone()
	if a.VolatileKey() != b.VolatileKey() {
		t.Error("identical records must have identical volatile keys")
	}

	b.Set("status", "Deleted")
	if a.VolatileKey() == b.VolatileKey() {
		t.Error("changed status must change the volatile key")
	}

	// Non-volatile columns must not affect the key.
	c := a.Clone()
	c.Set("title", "something else")
	if a.VolatileKey() != c.VolatileKey() {
		t.Error("non-volatile column must not change the volatile key")
	}
}

func TestValidate(t *testing.T) {
	r := New()
	if err := r.Validate(); err == nil {
		t.Error("Validate() on record without material_id should fail")
	}

	r.Set("material_id", "  ")
	if err := r.Validate(); err == nil {
		t.Error("Validate() on blank material_id should fail")
	}

	r.Set("material_id", "A1")
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestExtraColumns(t *testing.T) {
	r := New()
	r.Set("material_id", "A1")
	r.Set("title", "Reader")
	r.Set("status", "Done")
	r.Set("course_name", "Calculus")

	got := r.ExtraColumns()
	want := []string{"title", "course_name"}
	if len(got) != len(want) {
		t.Fatalf("ExtraColumns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExtraColumns()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClone_Independent(t *testing.T) {
	a := New()
	a.Set("material_id", "A1")
	b := a.Clone()
	b.Set("material_id", "B2")

	if a.MaterialID() != "A1" {
		t.Errorf("mutating the clone changed the original: %q", a.MaterialID())
	}
}
