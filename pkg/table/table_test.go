package table

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestWithText(t *testing.T) {
	tb := New().
		MustAdd("periode", Int, 2024, 2024).
		MustAdd("verdi", Float, 301.0, 1.5)

	got := tb.WithText("periode", "verdi", "absent")
	if k := got.Column("periode").Kind; k != Text {
		t.Fatalf("periode kind = %s, want text", k)
	}
	if s, _ := got.Text(0, "periode"); s != "2024" {
		t.Errorf("periode = %q, want 2024", s)
	}
	if s, _ := got.Text(0, "verdi"); s != "301" {
		t.Errorf("verdi = %q, want 301", s)
	}
	if tb.Column("periode").Kind != Int {
		t.Error("WithText modified the receiver")
	}
}

func TestConcat_UnionAndWiden(t *testing.T) {
	a := New().MustAdd("k", Text, "a").MustAdd("v", Int, 1)
	b := New().MustAdd("k", Text, "b").MustAdd("v", Float, 2.5).MustAdd("x", Text, "extra")

	got := Concat(a, b)
	if got.Len() != 2 {
		t.Fatalf("rows = %d, want 2", got.Len())
	}
	if names := strings.Join(got.Names(), ","); names != "k,v,x" {
		t.Errorf("names = %s, want k,v,x", names)
	}
	if k := got.Column("v").Kind; k != Float {
		t.Errorf("v kind = %s, want float", k)
	}
	if got.Get(0, "v") != 1.0 {
		t.Errorf("v[0] = %v, want 1.0", got.Get(0, "v"))
	}
	if got.Get(0, "x") != nil {
		t.Errorf("x[0] = %v, want missing", got.Get(0, "x"))
	}
}

func TestInnerJoin(t *testing.T) {
	left := New().
		MustAdd("region", Text, "0301", "1103", "9999").
		MustAdd("n", Int, 10, 20, 30)
	right := New().
		MustAdd("from", Text, "0301", "0301", "1103").
		MustAdd("to", Text, "EAK", "EKA03", "EAK")

	got, err := InnerJoin(left, right, []string{"region"}, []string{"from"})
	if err != nil {
		t.Fatalf("InnerJoin: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("rows = %d, want 3", got.Len())
	}
	want := []string{"EAK", "EKA03", "EAK"}
	for i, w := range want {
		if s, _ := got.Text(i, "to"); s != w {
			t.Errorf("to[%d] = %q, want %q", i, s, w)
		}
	}
	if names := strings.Join(got.Names(), ","); names != "region,n,from,to" {
		t.Errorf("names = %s", names)
	}
}

func TestLeftJoin_FoldsSameNamedKeys(t *testing.T) {
	left := New().
		MustAdd("periode", Text, "2024", "2024").
		MustAdd("alder", Text, "001", "099")
	right := New().
		MustAdd("periode", Text, "2024").
		MustAdd("from", Text, "001").
		MustAdd("to", Text, "000-004")

	got, err := LeftJoin(left, right, []string{"periode", "alder"}, []string{"periode", "from"})
	if err != nil {
		t.Fatalf("LeftJoin: %v", err)
	}
	if names := strings.Join(got.Names(), ","); names != "periode,alder,from,to" {
		t.Errorf("names = %s", names)
	}
	if got.Get(1, "to") != nil {
		t.Errorf("unmatched row to = %v, want missing", got.Get(1, "to"))
	}
}

func TestGroupSum(t *testing.T) {
	tb := New().
		MustAdd("to", Text, "EAK", "EKA03", "EAK", nil).
		MustAdd("n", Int, 10, 5, 20, 99).
		MustAdd("b", Float, 1.5, 2.0, nil, 1.0)

	got, err := tb.GroupSum([]string{"to"}, []string{"n", "b"})
	if err != nil {
		t.Fatalf("GroupSum: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("groups = %d, want 2", got.Len())
	}
	if s, _ := got.Text(0, "to"); s != "EAK" {
		t.Errorf("first group = %q, want EAK", s)
	}
	if got.Get(0, "n") != int64(30) {
		t.Errorf("EAK n = %v, want 30", got.Get(0, "n"))
	}
	if got.Get(0, "b") != 1.5 {
		t.Errorf("EAK b = %v, want 1.5", got.Get(0, "b"))
	}
}

func TestGroupSum_NonNumeric(t *testing.T) {
	tb := New().MustAdd("k", Text, "a").MustAdd("navn", Text, "Oslo")
	if _, err := tb.GroupSum([]string{"k"}, []string{"navn"}); err == nil {
		t.Fatal("expected error summing a text column")
	}
}

func TestRename_Collision(t *testing.T) {
	tb := New().MustAdd("a", Text, "x").MustAdd("b", Text, "y")
	if _, err := tb.Rename(map[string]string{"a": "b"}); err == nil {
		t.Fatal("expected duplicate column error")
	}
}

func TestReadCSV_InferenceKeepsLeadingZeros(t *testing.T) {
	in := "periode;kommuneregion;personer;andel\n2024;0301;100;0,5\n2024;1103;200;1\n"
	tb, err := ReadCSV(strings.NewReader(in), ReadOptions{Delimiter: ';'})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	tests := []struct {
		col  string
		want Kind
	}{
		{"periode", Int},
		{"kommuneregion", Text},
		{"personer", Int},
		{"andel", Text},
	}
	for _, tt := range tests {
		if k := tb.Column(tt.col).Kind; k != tt.want {
			t.Errorf("%s kind = %s, want %s", tt.col, k, tt.want)
		}
	}
}

func TestReadCSV_Latin1(t *testing.T) {
	// "Bærum" in ISO-8859-1.
	in := []byte("navn\nB\xe6rum\n")
	tb, err := ReadCSV(bytes.NewReader(in), ReadOptions{Encoding: "iso-8859-1"})
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if s, _ := tb.Text(0, "navn"); s != "Bærum" {
		t.Errorf("navn = %q, want Bærum", s)
	}
}

func TestWriteReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	tb := New().
		MustAdd("kommuneregion", Text, "0301", "1103").
		MustAdd("personer", Int, 10, nil)

	if err := WriteFile(path, tb); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path, ReadOptions{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("rows = %d, want 2", got.Len())
	}
	if s, _ := got.Text(0, "kommuneregion"); s != "0301" {
		t.Errorf("kommuneregion = %q, want 0301", s)
	}
	if got.Get(1, "personer") != nil {
		t.Errorf("personer[1] = %v, want missing", got.Get(1, "personer"))
	}
}
