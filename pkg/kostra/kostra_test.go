package kostra

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/kostra/pkg/table"
)

func TestParseExtras(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"  ", []string{}},
		{"kjonn", []string{"kjonn"}},
		{" kjonn , alder ,, kjonn", []string{"kjonn", "alder"}},
	}
	for _, tt := range tests {
		got := ParseExtras(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseExtras(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefineVariables(t *testing.T) {
	tb := table.New().
		MustAdd("personer", table.Int, 5).
		MustAdd("kommuneregion", table.Text, "0301").
		MustAdd("kjonn", table.Int, 1).
		MustAdd("periode", table.Int, 2024)

	out, vars := DefineVariables(tb, []string{"kjonn", "periode"})

	wantClass := []string{"periode", "kommuneregion", "kjonn"}
	if !reflect.DeepEqual(vars.Classification, wantClass) {
		t.Errorf("classification = %v, want %v", vars.Classification, wantClass)
	}
	if !reflect.DeepEqual(vars.Statistical, []string{"personer"}) {
		t.Errorf("statistical = %v, want [personer]", vars.Statistical)
	}
	if out.Column("kjonn").Kind != table.Text || out.Column("periode").Kind != table.Text {
		t.Error("classification columns not cast to text")
	}
	if tb.Column("kjonn").Kind != table.Int {
		t.Error("input table was modified")
	}
}

func TestResolveExtras(t *testing.T) {
	present := []string{Periode, Kommuneregion}

	got, _ := Options{}.ResolveExtras(present)
	if len(got) != 0 {
		t.Errorf("no extras, no prompter = %v, want empty", got)
	}

	got, _ = Options{Prompter: FixedPrompter("alder, kjonn")}.ResolveExtras(present)
	if !reflect.DeepEqual(got, []string{"alder", "kjonn"}) {
		t.Errorf("prompted = %v", got)
	}

	got, _ = Options{Extras: []string{}, Prompter: FixedPrompter("alder")}.ResolveExtras(present)
	if len(got) != 0 {
		t.Errorf("explicit empty extras must skip the prompt, got %v", got)
	}
}

func TestConsolePrompter(t *testing.T) {
	var out bytes.Buffer
	p := &ConsolePrompter{In: strings.NewReader("alder\r\n"), Out: &out}
	line, err := p.Prompt("extras?")
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if line != "alder" {
		t.Errorf("line = %q, want alder", line)
	}
	if !strings.Contains(out.String(), "extras?") {
		t.Error("message not printed")
	}
}

func TestZeroFill(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"301", 4, "0301"},
		{"0301", 4, "0301"},
		{"30101", 6, "030101"},
		{"1", 3, "001"},
		{"-5", 3, "-05"},
		{"EAK", 4, "0EAK"},
	}
	for _, tt := range tests {
		if got := ZeroFill(tt.in, tt.width); got != tt.want {
			t.Errorf("ZeroFill(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestFormatFile(t *testing.T) {
	tb := table.New().
		MustAdd("periode", table.Int, 2024, 2024).
		MustAdd("alder", table.Int, 5, 100).
		MustAdd("kommuneregion", table.Text, "301", "EAK")

	got, err := FormatFile(tb)
	if err != nil {
		t.Fatalf("FormatFile: %v", err)
	}
	checks := []struct {
		row  int
		col  string
		want string
	}{
		{0, "periode", "2024"},
		{0, "alder", "005"},
		{1, "alder", "100"},
		{0, "kommuneregion", "0301"},
		{1, "kommuneregion", "EAK"},
	}
	for _, c := range checks {
		if s, _ := got.Text(c.row, c.col); s != c.want {
			t.Errorf("%s[%d] = %q, want %q", c.col, c.row, s, c.want)
		}
	}
}

func TestFormatFile_NoRegion(t *testing.T) {
	tb := table.New().MustAdd("periode", table.Text, "2024")
	if _, err := FormatFile(tb); !errors.Is(err, ErrNoRegionColumn) {
		t.Fatalf("err = %v, want ErrNoRegionColumn", err)
	}
}

func TestCommaToDot(t *testing.T) {
	tb := table.New().
		MustAdd("andel", table.Text, "0,5", "12,25", nil).
		MustAdd("navn", table.Text, "Oslo", "Bergen", "Bodø")

	got, err := CommaToDot(tb)
	if err != nil {
		t.Fatalf("CommaToDot: %v", err)
	}
	if got.Column("andel").Kind != table.Float {
		t.Fatalf("andel kind = %s, want float", got.Column("andel").Kind)
	}
	if got.Get(1, "andel") != 12.25 {
		t.Errorf("andel[1] = %v, want 12.25", got.Get(1, "andel"))
	}
	if got.Column("navn").Kind != table.Text {
		t.Error("navn should stay text")
	}

	bad := table.New().MustAdd("x", table.Text, "1,5", "abc,d")
	if _, err := CommaToDot(bad); err == nil {
		t.Error("expected error for unparsable value")
	}
}
