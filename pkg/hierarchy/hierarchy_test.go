package hierarchy

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// fakeRegistry serves fixed code lists and correspondences; anything else
// answers like a 404 from the API.
type fakeRegistry struct {
	codes map[int][]klass.Code
	corr  map[[2]int][]klass.CorrespondenceItem
}

func (f *fakeRegistry) Codes(_ context.Context, id int, _ klass.Query) ([]klass.Code, error) {
	c, ok := f.codes[id]
	if !ok {
		return nil, &klass.StatusError{StatusCode: http.StatusNotFound, URL: "fake"}
	}
	return c, nil
}

func (f *fakeRegistry) Correspondence(_ context.Context, src, tgt int, _ klass.Query) ([]klass.CorrespondenceItem, error) {
	c, ok := f.corr[[2]int{src, tgt}]
	if !ok {
		return nil, &klass.StatusError{StatusCode: http.StatusNotFound, URL: "fake"}
	}
	return c, nil
}

func flat(codes ...string) []klass.Code {
	out := make([]klass.Code, len(codes))
	for i, c := range codes {
		out[i] = klass.Code{Code: c, Level: "1", Name: "name " + c}
	}
	return out
}

func items(pairs ...string) []klass.CorrespondenceItem {
	var out []klass.CorrespondenceItem
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, klass.CorrespondenceItem{
			SourceCode: pairs[i], TargetCode: pairs[i+1], TargetName: "name " + pairs[i+1],
		})
	}
	return out
}

func testRegistry() *fakeRegistry {
	return &fakeRegistry{
		codes: map[int][]klass.Code{
			klass.Municipalities:       flat("301", "1103", "9999"),
			klass.CountyMunicipalities: flat("0300", "1100", "9900"),
			klass.OsloBoroughs:         flat("030101", "030102", "030116", "030117", "EAB"),
		},
		corr: map[[2]int][]klass.CorrespondenceItem{
			{klass.Municipalities, klass.Counties}:                  items("0301", "03", "1103", "11", "9999", "99"),
			{klass.Municipalities, klass.KostraGroups}:              items("0301", "EKG13", "1103", "EKG14", "9999", "EKG99"),
			{klass.Municipalities, klass.CountyMunicipalities}:      items("0301", "0300", "1103", "1100", "1104", "11", "9999", "9900"),
			{klass.CountyMunicipalities, klass.CountyKostraRegions}: items("0300", "EAFKG1", "1100", "EAFKG2"),
		},
	}
}

func pairs(m Mapping) map[string]bool {
	out := make(map[string]bool, len(m))
	for _, p := range m {
		out[p.From+">"+p.To] = true
	}
	return out
}

func TestNationMapping(t *testing.T) {
	m, err := NationMapping(context.Background(), testRegistry(), "2024")
	if err != nil {
		t.Fatalf("NationMapping: %v", err)
	}
	got := pairs(m)
	for _, want := range []string{
		"0301>EKA03", "1103>EKA11",
		"0301>EKG13", "1103>EKG14",
		"0301>EAK", "1103>EAK",
		"1103>EAKUO",
	} {
		if !got[want] {
			t.Errorf("missing pair %s", want)
		}
	}
	if got["0301>EAKUO"] {
		t.Error("Oslo must not map to EAKUO")
	}
	for _, p := range m {
		if p.From == "9999" {
			t.Errorf("9999 must be excluded, got %s>%s", p.From, p.To)
		}
		if len(p.From) != 4 {
			t.Errorf("from %q not zero filled to 4", p.From)
		}
	}
	if len(m) != 7 {
		t.Errorf("pairs = %d, want 7", len(m))
	}
}

func TestNationMapping_MissingGroupsIsNotFound(t *testing.T) {
	reg := testRegistry()
	delete(reg.corr, [2]int{klass.Municipalities, klass.KostraGroups})

	_, err := NationMapping(context.Background(), reg, "2024")
	if !klass.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "131 -> 112") || !strings.Contains(err.Error(), "2024-01-01") {
		t.Errorf("error does not describe the request: %v", err)
	}
}

func TestKostraRegionMapping(t *testing.T) {
	m, err := KostraRegionMapping(context.Background(), testRegistry(), "2024")
	if err != nil {
		t.Fatalf("KostraRegionMapping: %v", err)
	}
	got := pairs(m)
	for _, want := range []string{"0300>EAFKG1", "0300>EAFK", "1100>EAFK", "1100>EAFKUO"} {
		if !got[want] {
			t.Errorf("missing pair %s", want)
		}
	}
	if got["0300>EAFKUO"] || got["9900>EAFK"] {
		t.Errorf("excluded codes mapped: %v", got)
	}
}

func TestBoroughMapping_Exclusions(t *testing.T) {
	m, err := BoroughMapping(context.Background(), testRegistry(), "2024")
	if err != nil {
		t.Fatalf("BoroughMapping: %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("pairs = %d, want 2: %v", len(m), m)
	}
	for _, p := range m {
		if p.From == "030116" || p.From == "030117" || p.From == "EAB" {
			t.Errorf("excluded code %s mapped", p.From)
		}
		if p.To != OsloCity {
			t.Errorf("to = %s, want EAB", p.To)
		}
	}
}

func TestAggregate_PresuppliedMapping(t *testing.T) {
	a := &Aggregator{
		Mapper: func(_ context.Context, agg Aggregation, year string) (Mapping, error) {
			if agg != MunicipalityToNation || year != "2024" {
				t.Errorf("mapper called with %s %s", agg, year)
			}
			return Mapping{{From: "0301", To: "EAK"}}, nil
		},
		Options: kostra.Options{Extras: []string{}},
	}
	in := table.New().
		MustAdd("periode", table.Int, 2024).
		MustAdd("kommuneregion", table.Text, "301").
		MustAdd("personer", table.Int, 10)

	out, err := a.Aggregate(context.Background(), in, Auto)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("rows = %d, want 2", out.Len())
	}
	want := []struct {
		region   string
		personer int64
	}{{"0301", 10}, {"EAK", 10}}
	for i, w := range want {
		if s, _ := out.Text(i, "kommuneregion"); s != w.region {
			t.Errorf("row %d region = %q, want %q", i, s, w.region)
		}
		if out.Get(i, "personer") != w.personer {
			t.Errorf("row %d personer = %v, want %d", i, out.Get(i, "personer"), w.personer)
		}
		if s, _ := out.Text(i, "periode"); s != "2024" {
			t.Errorf("row %d periode = %q, want 2024", i, s)
		}
	}
}

func TestAggregate_MunicipalityToNation(t *testing.T) {
	a := &Aggregator{Registry: testRegistry(), Options: kostra.Options{Extras: []string{"kjonn"}}}
	in := table.New().
		MustAdd("periode", table.Text, "2024", "2024", "2024").
		MustAdd("kommuneregion", table.Text, "0301", "1103", "1103").
		MustAdd("kjonn", table.Text, "1", "1", "2").
		MustAdd("personer", table.Int, 10, 20, 5)

	out, err := a.Aggregate(context.Background(), in, MunicipalityToNation)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	sums := make(map[string]int64)
	for i := 3; i < out.Len(); i++ {
		r, _ := out.Text(i, "kommuneregion")
		k, _ := out.Text(i, "kjonn")
		sums[r+"/"+k] = out.Get(i, "personer").(int64)
	}
	checks := map[string]int64{
		"EAK/1":   30,
		"EAK/2":   5,
		"EAKUO/1": 20,
		"EKA03/1": 10,
		"EKA11/2": 5,
		"EKG14/1": 20,
	}
	for k, want := range checks {
		if sums[k] != want {
			t.Errorf("%s = %d, want %d", k, sums[k], want)
		}
	}
	for i := 0; i < 3; i++ {
		if s, _ := out.Text(i, "kommuneregion"); s != []string{"0301", "1103", "1103"}[i] {
			t.Errorf("original row %d changed: %s", i, s)
		}
	}
}

func TestAggregate_CountyOverrideFiltersOnlyAggregatedRows(t *testing.T) {
	a := &Aggregator{Registry: testRegistry(), Options: kostra.Options{Extras: []string{}}}
	in := table.New().
		MustAdd("periode", table.Text, "2024", "2024", "2024").
		MustAdd("kommuneregion", table.Text, "0301", "1103", "1104").
		MustAdd("personer", table.Int, 10, 20, 7)

	out, err := a.Aggregate(context.Background(), in, MunicipalityToCountyMunicipality)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if out.Has("kommuneregion") || !out.Has("fylkesregion") {
		t.Fatalf("columns = %v, want kommuneregion renamed to fylkesregion", out.Names())
	}

	var regions []string
	for i := 0; i < out.Len(); i++ {
		s, _ := out.Text(i, "fylkesregion")
		regions = append(regions, s)
	}
	// 1104 maps to "0011", which does not end in 00 and is dropped; the
	// original municipality rows stay even though they do not end in 00.
	want := []string{"0301", "1103", "1104", "0300", "1100"}
	if strings.Join(regions, ",") != strings.Join(want, ",") {
		t.Errorf("regions = %v, want %v", regions, want)
	}
	if out.Get(4, "personer") != int64(20) {
		t.Errorf("1100 personer = %v, want 20", out.Get(4, "personer"))
	}
}

func TestAggregate_BoroughsAllExcluded(t *testing.T) {
	a := &Aggregator{Registry: testRegistry(), Options: kostra.Options{Extras: []string{}}}
	in := table.New().
		MustAdd("periode", table.Text, "2024", "2024").
		MustAdd("bydelsregion", table.Text, "030116", "030117").
		MustAdd("personer", table.Int, 3, 4)

	out, err := a.Aggregate(context.Background(), in, Auto)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if out.Len() != 2 {
		t.Errorf("rows = %d, want only the 2 originals", out.Len())
	}
}

func TestAggregate_Preconditions(t *testing.T) {
	a := &Aggregator{Registry: testRegistry(), Options: kostra.Options{Extras: []string{}}}
	tests := []struct {
		name string
		in   *table.Table
		agg  Aggregation
		want error
	}{
		{
			name: "two periods",
			in: table.New().
				MustAdd("periode", table.Text, "2023", "2024").
				MustAdd("kommuneregion", table.Text, "0301", "0301").
				MustAdd("n", table.Int, 1, 2),
			want: ErrTooManyPeriods,
		},
		{
			name: "no period",
			in:   table.New().MustAdd("kommuneregion", table.Text, "0301").MustAdd("n", table.Int, 1),
			want: ErrNoPeriod,
		},
		{
			name: "no region",
			in:   table.New().MustAdd("periode", table.Text, "2024").MustAdd("n", table.Int, 1),
			want: ErrNoRegionColumn,
		},
		{
			name: "two regions",
			in: table.New().
				MustAdd("periode", table.Text, "2024").
				MustAdd("kommuneregion", table.Text, "0301").
				MustAdd("fylkesregion", table.Text, "0300").
				MustAdd("n", table.Int, 1),
			want: ErrAmbiguousRegion,
		},
		{
			name: "choice does not fit region",
			in: table.New().
				MustAdd("periode", table.Text, "2024").
				MustAdd("fylkesregion", table.Text, "0300").
				MustAdd("n", table.Int, 1),
			agg:  MunicipalityToNation,
			want: ErrInconsistentAggregation,
		},
		{
			name: "out of range value",
			in: table.New().
				MustAdd("periode", table.Text, "2024").
				MustAdd("kommuneregion", table.Text, "0301").
				MustAdd("n", table.Int, 1),
			agg:  Aggregation(42),
			want: ErrUnknownAggregation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Aggregate(context.Background(), tt.in, tt.agg)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAggregate_InconsistentListsAllowed(t *testing.T) {
	a := &Aggregator{Registry: testRegistry()}
	in := table.New().
		MustAdd("periode", table.Text, "2024").
		MustAdd("bydelsregion", table.Text, "030101").
		MustAdd("n", table.Int, 1)
	_, err := a.Aggregate(context.Background(), in, MunicipalityToNation)
	if err == nil || !strings.Contains(err.Error(), "bydeler_til_EAB") {
		t.Errorf("err = %v, want the allowed value listed", err)
	}
}

func TestParseAggregation(t *testing.T) {
	tests := []struct {
		in   string
		want Aggregation
	}{
		{"", Auto},
		{"kommune_til_landet", MunicipalityToNation},
		{"kommune_til_fylkeskommune", MunicipalityToCountyMunicipality},
		{"fylkeskommune_til_kostraregion", CountyMunicipalityToKostraRegion},
		{"bydeler_til_EAB", BoroughsToCity},
	}
	for _, tt := range tests {
		got, err := ParseAggregation(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseAggregation(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}

	_, err := ParseAggregation("kommune_til_verden")
	if !errors.Is(err, ErrUnknownAggregation) {
		t.Fatalf("err = %v, want ErrUnknownAggregation", err)
	}
	if !strings.Contains(err.Error(), "kommune_til_landet") {
		t.Errorf("error does not list valid values: %v", err)
	}
}

func TestAverages(t *testing.T) {
	a := &Aggregator{
		Mapper: func(context.Context, Aggregation, string) (Mapping, error) {
			return Mapping{{From: "0301", To: "EAK"}, {From: "1103", To: "EAK"}}, nil
		},
		Options: kostra.Options{Extras: []string{}},
	}
	in := table.New().
		MustAdd("periode", table.Text, "2024", "2024").
		MustAdd("kommuneregion", table.Text, "0301", "1103").
		MustAdd("levealder", table.Int, 10, 21)

	out, report, err := a.Averages(context.Background(), in, []string{"levealder"}, AverageOptions{RestoreKinds: true})
	if err != nil {
		t.Fatalf("Averages: %v", err)
	}
	if out.Has(DefaultDenominator) {
		t.Error("denominator column left in output")
	}
	if out.Len() != 3 {
		t.Fatalf("rows = %d, want 3", out.Len())
	}
	if out.Get(2, "levealder") != int64(16) {
		t.Errorf("EAK average = %v, want 16 (15.5 rounded half up)", out.Get(2, "levealder"))
	}
	if len(report) != 1 || report[0].Original != table.Int || report[0].PostOp != table.Float || report[0].Final != table.Int {
		t.Errorf("report = %+v", report)
	}
}

func TestAverages_Decimals(t *testing.T) {
	a := &Aggregator{
		Mapper: func(context.Context, Aggregation, string) (Mapping, error) {
			return Mapping{{From: "0301", To: "EAK"}, {From: "1103", To: "EAK"}, {From: "4601", To: "EAK"}}, nil
		},
		Options: kostra.Options{Extras: []string{}},
	}
	in := table.New().
		MustAdd("periode", table.Text, "2024", "2024", "2024").
		MustAdd("kommuneregion", table.Text, "0301", "1103", "4601").
		MustAdd("andel", table.Float, 1.0, 2.0, 2.0)

	out, _, err := a.Averages(context.Background(), in, []string{"andel"}, AverageOptions{Round: true, Decimals: 2})
	if err != nil {
		t.Fatalf("Averages: %v", err)
	}
	if out.Get(3, "andel") != 1.67 {
		t.Errorf("EAK andel = %v, want 1.67", out.Get(3, "andel"))
	}
}

func TestSpreadToMunicipalities(t *testing.T) {
	a := &Aggregator{Registry: testRegistry(), Options: kostra.Options{Extras: []string{}}}
	in := table.New().
		MustAdd("periode", table.Text, "2024").
		MustAdd("fylkesregion", table.Text, "300").
		MustAdd("levealder", table.Text, "85,3")

	out, err := a.SpreadToMunicipalities(context.Background(), in)
	if err != nil {
		t.Fatalf("SpreadToMunicipalities: %v", err)
	}
	if strings.Join(out.Names(), ",") != "periode,kommuneregion,levealder" {
		t.Fatalf("columns = %v", out.Names())
	}
	// 0301 -> 0300 has data, 1103 and 1104 -> 1100/0011 have none.
	if out.Len() != 3 {
		t.Fatalf("rows = %d, want 3", out.Len())
	}
	if s, _ := out.Text(0, "kommuneregion"); s != "0301" {
		t.Errorf("first municipality = %q, want 0301", s)
	}
	if out.Get(0, "levealder") != 85.3 {
		t.Errorf("0301 levealder = %v, want 85.3", out.Get(0, "levealder"))
	}
	if out.Get(1, "levealder") != nil {
		t.Errorf("1103 levealder = %v, want missing", out.Get(1, "levealder"))
	}
	if s, _ := out.Text(1, "periode"); s != "2024" {
		t.Errorf("periode = %q, want 2024 filled in", s)
	}
}
