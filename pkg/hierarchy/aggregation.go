package hierarchy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/kostra/pkg/kostra"
)

// Aggregation selects a hierarchy edge.
type Aggregation int

const (
	// Auto picks the default aggregation for the table's region column.
	Auto Aggregation = iota
	MunicipalityToNation
	MunicipalityToCountyMunicipality
	CountyMunicipalityToKostraRegion
	BoroughsToCity
)

var aggregationNames = map[Aggregation]string{
	Auto:                             "auto",
	MunicipalityToNation:             "kommune_til_landet",
	MunicipalityToCountyMunicipality: "kommune_til_fylkeskommune",
	CountyMunicipalityToKostraRegion: "fylkeskommune_til_kostraregion",
	BoroughsToCity:                   "bydeler_til_EAB",
}

func (a Aggregation) String() string {
	if s, ok := aggregationNames[a]; ok {
		return s
	}
	return fmt.Sprintf("aggregation(%d)", int(a))
}

// Errors returned before any data is touched.
var (
	ErrNoPeriod                = errors.New("table has no periode value")
	ErrTooManyPeriods          = errors.New("more than one period in table")
	ErrAmbiguousRegion         = errors.New("more than one region column")
	ErrInconsistentAggregation = errors.New("aggregation does not match region column")
	ErrUnknownAggregation      = errors.New("unknown aggregation")
)

// ErrNoRegionColumn is returned when a table has no region column.
var ErrNoRegionColumn = kostra.ErrNoRegionColumn

// validNames lists the selectable aggregations in declaration order.
func validNames() []string {
	return []string{
		MunicipalityToNation.String(),
		MunicipalityToCountyMunicipality.String(),
		CountyMunicipalityToKostraRegion.String(),
		BoroughsToCity.String(),
	}
}

// ParseAggregation maps a name such as "kommune_til_landet" to its value.
// The empty string and "auto" mean Auto.
func ParseAggregation(s string) (Aggregation, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Auto, nil
	}
	for a, name := range aggregationNames {
		if name == s {
			return a, nil
		}
	}
	return Auto, fmt.Errorf("%w %q; valid: %s", ErrUnknownAggregation, s, strings.Join(validNames(), ", "))
}

// plan is everything an aggregation needs besides the data.
type plan struct {
	agg    Aggregation
	region string
	build  MappingFunc
	// keep filters the aggregated rows on their new region code.
	keep   func(code string) bool
	rename map[string]string
}

var plans = map[Aggregation]plan{
	MunicipalityToNation: {
		agg:    MunicipalityToNation,
		region: kostra.Kommuneregion,
		build:  NationMapping,
	},
	MunicipalityToCountyMunicipality: {
		agg:    MunicipalityToCountyMunicipality,
		region: kostra.Kommuneregion,
		build:  CountyMunicipalityMapping,
		keep:   func(code string) bool { return strings.HasSuffix(code, "00") },
		rename: map[string]string{kostra.Kommuneregion: kostra.Fylkesregion},
	},
	CountyMunicipalityToKostraRegion: {
		agg:    CountyMunicipalityToKostraRegion,
		region: kostra.Fylkesregion,
		build:  KostraRegionMapping,
	},
	BoroughsToCity: {
		agg:    BoroughsToCity,
		region: kostra.Bydelsregion,
		build:  BoroughMapping,
	},
}

// allowed lists the aggregations per region column; the first is the default.
var allowed = map[string][]Aggregation{
	kostra.Kommuneregion: {MunicipalityToNation, MunicipalityToCountyMunicipality},
	kostra.Fylkesregion:  {CountyMunicipalityToKostraRegion},
	kostra.Bydelsregion:  {BoroughsToCity},
}

// Allowed returns the aggregations valid for a region column, default first.
func Allowed(region string) []Aggregation {
	return append([]Aggregation(nil), allowed[region]...)
}

func resolve(region string, agg Aggregation) (plan, error) {
	choices := allowed[region]
	if len(choices) == 0 {
		return plan{}, fmt.Errorf("%w: %q", ErrNoRegionColumn, region)
	}
	if agg == Auto {
		return plans[choices[0]], nil
	}
	if _, ok := plans[agg]; !ok {
		return plan{}, fmt.Errorf("%w %s; valid: %s", ErrUnknownAggregation, agg, strings.Join(validNames(), ", "))
	}
	for _, c := range choices {
		if c == agg {
			return plans[agg], nil
		}
	}
	names := make([]string, len(choices))
	for i, c := range choices {
		names[i] = c.String()
	}
	return plan{}, fmt.Errorf("%w: %s does not apply to %s; allowed: %s",
		ErrInconsistentAggregation, agg, region, strings.Join(names, ", "))
}
