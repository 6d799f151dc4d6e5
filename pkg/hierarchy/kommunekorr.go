package hierarchy

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/table"
)

// Longyearbyen is not in the municipality classification but is reported on.
var longyearbyen = klass.Code{Code: "2111", Name: "Longyearbyen"}

// CorrespondenceColumns is the column order of MunicipalityCorrespondence.
var CorrespondenceColumns = []string{
	"komm_nr", "komm_navn",
	"fylke_nr", "fylke_navn", "fylke_nr_eka", "fylke_nr_eka_m_tekst", "fylke_validFrom", "fylke_validTo",
	"kostra_gr", "kostra_gr_navn", "kostra_validFrom", "kostra_validTo",
	"landet", "landet_u_oslo",
}

// MunicipalityCorrespondence lists every municipality valid in year with
// its county, KOSTRA group and national groupings. A municipality matching
// more than one county or KOSTRA group is an error naming the duplicates.
func MunicipalityCorrespondence(ctx context.Context, reg klass.Registry, year string) (*table.Table, error) {
	q := klass.YearQuery(year)
	q.Language = "nb"

	codes, err := reg.Codes(ctx, klass.Municipalities, q)
	if err != nil {
		return nil, fmt.Errorf("municipalities %s: %w", year, err)
	}
	codes = append(codes, longyearbyen)

	groups, err := reg.Correspondence(ctx, klass.Municipalities, klass.KostraGroups, q)
	if err != nil {
		if klass.IsNotFound(err) {
			return nil, fmt.Errorf("KOSTRA group correspondence (131 -> 112) for the period %s to %s was not found: %w",
				q.From, q.To, err)
		}
		return nil, err
	}
	counties, err := reg.Correspondence(ctx, klass.Municipalities, klass.Counties, q)
	if err != nil {
		return nil, fmt.Errorf("county correspondence (131 -> 104) for %s: %w", year, err)
	}

	byGroup := indexBySource(groups)
	byCounty := indexBySource(counties)

	rows := make([][]any, 0, len(codes))
	var duplicates []string
	seen := make(map[string]bool)
	for _, c := range codes {
		gs := byGroup[c.Code]
		cs := byCounty[c.Code]
		if len(gs) == 0 {
			gs = []klass.CorrespondenceItem{{}}
		}
		if len(cs) == 0 {
			cs = []klass.CorrespondenceItem{{}}
		}
		for _, g := range gs {
			for _, f := range cs {
				if seen[c.Code] {
					duplicates = append(duplicates, c.Name)
				}
				seen[c.Code] = true
				if c.Code == unknownMunicipality {
					continue
				}
				rows = append(rows, correspondenceRow(c, f, g))
			}
		}
	}
	if len(duplicates) > 0 {
		return nil, fmt.Errorf("duplicates detected for municipality numbers: %s", strings.Join(duplicates, ", "))
	}

	out := table.New()
	for j, name := range CorrespondenceColumns {
		vals := make([]any, len(rows))
		for i, r := range rows {
			vals[i] = r[j]
		}
		if err := out.AddColumn(name, table.Text, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func correspondenceRow(c klass.Code, county, group klass.CorrespondenceItem) []any {
	var eka, ekaText, withoutOslo any
	if county.TargetCode != "" {
		e := CountyPrefix + prefix(county.TargetCode, 2)
		eka, ekaText = e, e+" "+county.TargetName
	}
	if c.Code != oslo {
		withoutOslo = NationWithoutOslo + " Landet uten Oslo"
	}
	return []any{
		c.Code, c.Name,
		nonEmpty(county.TargetCode), nonEmpty(county.TargetName), eka, ekaText,
		nonEmpty(county.ValidFrom), nonEmpty(county.ValidTo),
		nonEmpty(group.TargetCode), nonEmpty(group.TargetName),
		nonEmpty(group.ValidFrom), nonEmpty(group.ValidTo),
		Nation + " Landet", withoutOslo,
	}
}

func indexBySource(items []klass.CorrespondenceItem) map[string][]klass.CorrespondenceItem {
	out := make(map[string][]klass.CorrespondenceItem, len(items))
	for _, it := range items {
		out[it.SourceCode] = append(out[it.SourceCode], it)
	}
	return out
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
