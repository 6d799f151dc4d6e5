package hierarchy

import (
	"context"
	"fmt"

	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// SpreadToMunicipalities turns a county-municipality table into a
// municipality table: every municipality receives the values of the county
// municipality it belongs to. Municipalities whose county municipality has
// no data keep missing values. The result has kommuneregion as its region
// column and periode filled in for every row.
func (a *Aggregator) SpreadToMunicipalities(ctx context.Context, t *table.Table) (*table.Table, error) {
	converted, err := kostra.CommaToDot(t)
	if err != nil {
		return nil, err
	}
	formatted, err := kostra.FormatFile(converted)
	if err != nil {
		return nil, err
	}
	if !formatted.Has(kostra.Fylkesregion) {
		return nil, fmt.Errorf("spread needs a %q column", kostra.Fylkesregion)
	}
	year, err := SinglePeriod(formatted)
	if err != nil {
		return nil, err
	}

	mapping, err := a.Mapping(ctx, MunicipalityToCountyMunicipality, year)
	if err != nil {
		return nil, fmt.Errorf("county municipality mapping for %s: %w", year, err)
	}
	reversed := mapping.Reverse()

	merged, err := table.LeftJoin(reversed.Table(), formatted, []string{"from"}, []string{kostra.Fylkesregion})
	if err != nil {
		return nil, err
	}
	merged, err = merged.Drop(kostra.Fylkesregion, "from").Rename(map[string]string{"to": kostra.Kommuneregion})
	if err != nil {
		return nil, err
	}
	if merged.Has(kostra.Periode) {
		for i := 0; i < merged.Len(); i++ {
			if merged.Get(i, kostra.Periode) == nil {
				merged.Set(i, kostra.Periode, year)
			}
		}
	}

	a.Options.Log().Info("region column is now kommuneregion",
		"year", year, "municipalities", merged.Len())

	merged, vars, err := kostra.Define(merged, a.Options)
	if err != nil {
		return nil, err
	}
	return merged.Select(append(vars.Classification, vars.Statistical...)...)
}
