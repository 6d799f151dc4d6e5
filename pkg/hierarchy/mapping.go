// Package hierarchy aggregates KOSTRA tables up the region hierarchy:
// municipalities to counties, KOSTRA groups and the nation, county
// municipalities to KOSTRA regions, and Oslo boroughs to the whole city.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// Pair maps one child region code to one parent region code.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Mapping is the child -> parent table for one hierarchy edge and one year.
// A child may have several parents.
type Mapping []Pair

// Table returns the mapping as a two-column text table (from, to).
func (m Mapping) Table() *table.Table {
	from := make([]any, len(m))
	to := make([]any, len(m))
	for i, p := range m {
		from[i] = p.From
		to[i] = p.To
	}
	return table.New().
		MustAdd("from", table.Text, from...).
		MustAdd("to", table.Text, to...)
}

// Reverse swaps from and to.
func (m Mapping) Reverse() Mapping {
	out := make(Mapping, len(m))
	for i, p := range m {
		out[i] = Pair{From: p.To, To: p.From}
	}
	return out
}

// MappingFunc builds a mapping for a year from the registry.
type MappingFunc func(ctx context.Context, reg klass.Registry, year string) (Mapping, error)

// Sentinel codes that never take part in a mapping.
const (
	unknownMunicipality       = "9999"
	unknownCountyMunicipality = "9900"
	oslo                      = "0301"
	osloCountyMunicipality    = "0300"
)

// Parent region labels.
const (
	Nation                          = "EAK"
	NationWithoutOslo               = "EAKUO"
	CountyPrefix                    = "EKA"
	CountyMunicipalities            = "EAFK"
	CountyMunicipalitiesWithoutOslo = "EAFKUO"
	OsloCity                        = "EAB"
)

// NationMapping maps municipalities (131) to their county (EKA + county
// number), their KOSTRA group (112), the nation (EAK) and the nation without
// Oslo (EAKUO). Municipality 9999 is left out and from codes are zero filled
// to 4 digits.
func NationMapping(ctx context.Context, reg klass.Registry, year string) (Mapping, error) {
	counties, err := correspondence(ctx, reg, klass.Municipalities, klass.Counties, year)
	if err != nil {
		return nil, err
	}
	groups, err := correspondence(ctx, reg, klass.Municipalities, klass.KostraGroups, year)
	if err != nil {
		return nil, err
	}
	municipalities, err := topLevelCodes(ctx, reg, klass.Municipalities, year)
	if err != nil {
		return nil, err
	}
	for i, c := range municipalities {
		municipalities[i] = kostra.ZeroFill(c, 4)
	}

	var m Mapping
	for _, it := range counties {
		if it.SourceCode != unknownMunicipality {
			m = append(m, Pair{From: it.SourceCode, To: CountyPrefix + prefix(it.TargetCode, 2)})
		}
	}
	for _, it := range groups {
		if it.SourceCode != unknownMunicipality {
			m = append(m, Pair{From: it.SourceCode, To: it.TargetCode})
		}
	}
	for _, c := range municipalities {
		if c != unknownMunicipality {
			m = append(m, Pair{From: c, To: Nation})
		}
	}
	for _, c := range municipalities {
		if c != unknownMunicipality && c != oslo {
			m = append(m, Pair{From: c, To: NationWithoutOslo})
		}
	}
	for i := range m {
		m[i].From = kostra.ZeroFill(m[i].From, 4)
	}
	return m, nil
}

// CountyMunicipalityMapping maps municipalities (131) to county
// municipalities (127). Both sides are zero filled to 4 digits.
func CountyMunicipalityMapping(ctx context.Context, reg klass.Registry, year string) (Mapping, error) {
	items, err := correspondence(ctx, reg, klass.Municipalities, klass.CountyMunicipalities, year)
	if err != nil {
		return nil, err
	}
	var m Mapping
	for _, it := range items {
		if it.SourceCode == unknownMunicipality {
			continue
		}
		m = append(m, Pair{From: kostra.ZeroFill(it.SourceCode, 4), To: kostra.ZeroFill(it.TargetCode, 4)})
	}
	return m, nil
}

// KostraRegionMapping maps county municipalities (127) to their KOSTRA
// region (152), to all county municipalities (EAFK, without 9900) and to all
// county municipalities except Oslo (EAFKUO).
func KostraRegionMapping(ctx context.Context, reg klass.Registry, year string) (Mapping, error) {
	items, err := correspondence(ctx, reg, klass.CountyMunicipalities, klass.CountyKostraRegions, year)
	if err != nil {
		return nil, err
	}
	codes, err := topLevelCodes(ctx, reg, klass.CountyMunicipalities, year)
	if err != nil {
		return nil, err
	}
	var m Mapping
	for _, it := range items {
		m = append(m, Pair{From: it.SourceCode, To: it.TargetCode})
	}
	for _, c := range codes {
		if c != unknownCountyMunicipality {
			m = append(m, Pair{From: c, To: CountyMunicipalities})
		}
	}
	for _, c := range codes {
		if c != unknownCountyMunicipality && c != osloCountyMunicipality {
			m = append(m, Pair{From: c, To: CountyMunicipalitiesWithoutOslo})
		}
	}
	return m, nil
}

// excludedBoroughs never appear on the from side of the borough mapping.
var excludedBoroughs = map[string]bool{"030116": true, "030117": true, OsloCity: true}

// BoroughMapping maps every Oslo borough (241) to the whole city (EAB),
// leaving out Marka (030116), Sentrum (030117) and EAB itself.
func BoroughMapping(ctx context.Context, reg klass.Registry, year string) (Mapping, error) {
	codes, err := topLevelCodes(ctx, reg, klass.OsloBoroughs, year)
	if err != nil {
		return nil, err
	}
	var m Mapping
	for _, c := range codes {
		if !excludedBoroughs[c] {
			m = append(m, Pair{From: c, To: OsloCity})
		}
	}
	return m, nil
}

func correspondence(ctx context.Context, reg klass.Registry, source, target int, year string) ([]klass.CorrespondenceItem, error) {
	q := klass.YearQuery(year)
	items, err := reg.Correspondence(ctx, source, target, q)
	if err != nil {
		if klass.IsNotFound(err) {
			return nil, fmt.Errorf("correspondence %d -> %d for the period %s to %s was not found: %w",
				source, target, q.From, q.To, err)
		}
		return nil, err
	}
	return items, nil
}

// topLevelCodes returns the distinct level 1 codes of a classification valid
// on the first of January of year.
func topLevelCodes(ctx context.Context, reg klass.Registry, classification int, year string) ([]string, error) {
	q := klass.DateQuery(year)
	codes, err := reg.Codes(ctx, classification, q)
	if err != nil {
		if klass.IsNotFound(err) {
			return nil, fmt.Errorf("classification %d at %s was not found: %w", classification, q.From, err)
		}
		return nil, err
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range klass.PivotLevel(codes) {
		if c := p.Code(1); c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
