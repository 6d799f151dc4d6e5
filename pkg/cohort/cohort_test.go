package cohort

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

var noExtras = kostra.Options{Extras: []string{}}

func TestSumOverGender_NoGender(t *testing.T) {
	in := table.New().
		MustAdd("periode", table.Text, "2024").
		MustAdd("kommuneregion", table.Text, "0301").
		MustAdd("personer", table.Int, 3)
	out, err := SumOverGender(in, noExtras)
	if err != nil {
		t.Fatalf("SumOverGender: %v", err)
	}
	if out != in {
		t.Error("table without kjonn should be returned unchanged")
	}
}

func TestSumOverGender(t *testing.T) {
	in := table.New().
		MustAdd("periode", table.Text, "2024", "2024", "2024").
		MustAdd("kommuneregion", table.Text, "1103", "0301", "0301").
		MustAdd("kjonn", table.Int, 1, 1, 2).
		MustAdd("personer", table.Int, 5, 3, 4)

	out, err := SumOverGender(in, noExtras)
	if err != nil {
		t.Fatalf("SumOverGender: %v", err)
	}
	if got := strings.Join(out.Names(), ","); got != "periode,kommuneregion,personer" {
		t.Fatalf("columns = %s", got)
	}
	want := map[string]int64{"0301": 7, "1103": 5}
	if out.Len() != len(want) {
		t.Fatalf("rows = %d, want %d", out.Len(), len(want))
	}
	for i := 0; i < out.Len(); i++ {
		r, _ := out.Text(i, "kommuneregion")
		if out.Get(i, "personer") != want[r] {
			t.Errorf("%s personer = %v, want %d", r, out.Get(i, "personer"), want[r])
		}
	}
}

func testGroups() []AgeGroup {
	return []AgeGroup{
		{Periode: "2024", From: "0", To: "000-005"},
		{Periode: "2024", From: "1", To: "000-005"},
		{Periode: "2024", From: "67", To: "067-079"},
		{Periode: "2023", From: "0", To: "000-005"},
	}
}

func TestSumToAgeGroups(t *testing.T) {
	in := table.New().
		MustAdd("periode", table.Int, 2024, 2024, 2024).
		MustAdd("kommuneregion", table.Text, "0301", "0301", "0301").
		MustAdd("alder", table.Int, 0, 1, 67).
		MustAdd("personer", table.Int, 1, 2, 3)

	res, err := SumToAgeGroups(in, testGroups(), noExtras)
	if err != nil {
		t.Fatalf("SumToAgeGroups: %v", err)
	}
	if got := strings.Join(res.GroupBy, ","); got != "periode,kommuneregion,to" {
		t.Errorf("GroupBy = %s", got)
	}
	if len(res.Renamed) != 1 || res.Renamed[0] != "alder" {
		t.Errorf("Renamed = %v", res.Renamed)
	}

	out := res.Table
	if out.Len() != 5 {
		t.Fatalf("rows = %d, want 3 originals and 2 groups", out.Len())
	}
	want := []struct {
		alder    string
		personer int64
	}{
		{"000", 1}, {"001", 2}, {"067", 3},
		{"000-005", 3}, {"067-079", 3},
	}
	for i, w := range want {
		if a, _ := out.Text(i, "alder"); a != w.alder {
			t.Errorf("row %d alder = %q, want %q", i, a, w.alder)
		}
		if out.Get(i, "personer") != w.personer {
			t.Errorf("row %d personer = %v, want %d", i, out.Get(i, "personer"), w.personer)
		}
	}
	if out.Has("to") || out.Has("from") {
		t.Errorf("hierarchy columns leaked: %v", out.Names())
	}
}

func TestSumToAgeGroups_MissingAlder(t *testing.T) {
	in := table.New().
		MustAdd("periode", table.Text, "2024").
		MustAdd("kommuneregion", table.Text, "0301").
		MustAdd("personer", table.Int, 1)
	if _, err := SumToAgeGroups(in, testGroups(), noExtras); err == nil {
		t.Error("expected error for a table without alder")
	}
}

func TestLoadAgeHierarchy_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alder.parquet")
	if err := SaveAgeHierarchy(path, testGroups()); err != nil {
		t.Fatalf("SaveAgeHierarchy: %v", err)
	}
	got, err := LoadAgeHierarchy(path)
	if err != nil {
		t.Fatalf("LoadAgeHierarchy: %v", err)
	}
	want := testGroups()
	if len(got) != len(want) {
		t.Fatalf("groups = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("group %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadAgeHierarchy_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alder.csv")
	data := "periode,from,to\n2024,0,000-005\n2024,067,067-079\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadAgeHierarchy(path)
	if err != nil {
		t.Fatalf("LoadAgeHierarchy: %v", err)
	}
	if len(got) != 2 || got[1].From != "067" || got[1].To != "067-079" {
		t.Errorf("groups = %+v", got)
	}
}

func TestLoadAgeHierarchy_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alder.csv")
	if err := os.WriteFile(path, []byte("periode,from\n2024,0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAgeHierarchy(path); err == nil {
		t.Error("expected error for missing to column")
	}
}
