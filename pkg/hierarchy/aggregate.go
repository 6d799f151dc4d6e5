package hierarchy

import (
	"context"
	"fmt"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// Aggregator adds parent-region rows to KOSTRA tables.
type Aggregator struct {
	Registry klass.Registry
	// Mapper, when set, replaces the registry-backed mapping builders.
	Mapper  func(ctx context.Context, agg Aggregation, year string) (Mapping, error)
	Options kostra.Options
}

// Mapping builds the mapping for agg and year. Auto is not accepted here.
func (a *Aggregator) Mapping(ctx context.Context, agg Aggregation, year string) (Mapping, error) {
	if a.Mapper != nil {
		return a.Mapper(ctx, agg, year)
	}
	p, ok := plans[agg]
	if !ok {
		return nil, fmt.Errorf("%w %s; valid: %v", ErrUnknownAggregation, agg, validNames())
	}
	if a.Registry == nil {
		return nil, fmt.Errorf("no classification registry configured")
	}
	return p.build(ctx, a.Registry, year)
}

// SinglePeriod returns the one periode value of t.
func SinglePeriod(t *table.Table) (string, error) {
	if !t.Has(kostra.Periode) {
		return "", fmt.Errorf("%w: no %q column", ErrNoPeriod, kostra.Periode)
	}
	periods := t.DistinctText(kostra.Periode)
	switch len(periods) {
	case 0:
		return "", ErrNoPeriod
	case 1:
		return periods[0], nil
	}
	return "", fmt.Errorf("%w: %v", ErrTooManyPeriods, periods)
}

// RegionColumn returns the single region column of t.
func RegionColumn(t *table.Table) (string, error) {
	cols := kostra.RegionColumnsIn(t)
	switch len(cols) {
	case 0:
		return "", ErrNoRegionColumn
	case 1:
		return cols[0], nil
	}
	return "", fmt.Errorf("%w: %v", ErrAmbiguousRegion, cols)
}

// Aggregate returns t followed by one row per parent region and combination
// of the other classification variables, with the statistical variables
// summed. Preconditions are checked in order: one period, one region
// column, an aggregation that fits the region column.
//
// Region codes are zero filled to their canonical width before the join.
// Aggregated rows failing the plan's filter are dropped before they are
// appended; the original rows are never filtered.
func (a *Aggregator) Aggregate(ctx context.Context, t *table.Table, agg Aggregation) (*table.Table, error) {
	log := a.Options.Log()

	year, err := SinglePeriod(t)
	if err != nil {
		return nil, err
	}
	region, err := RegionColumn(t)
	if err != nil {
		return nil, err
	}
	p, err := resolve(region, agg)
	if err != nil {
		return nil, err
	}

	normalized := kostra.PadColumn(t.WithText(kostra.Periode), region, kostra.RegionWidth(region), false)

	mapping, err := a.Mapping(ctx, p.agg, year)
	if err != nil {
		return nil, fmt.Errorf("%s mapping for %s: %w", p.agg, year, err)
	}

	normalized, vars, err := kostra.Define(normalized, a.Options)
	if err != nil {
		return nil, err
	}

	joined, err := table.InnerJoin(normalized, mapping.Table(), []string{region}, []string{"from"})
	if err != nil {
		return nil, err
	}
	joined, err = joined.Drop(region, "from").Rename(map[string]string{"to": region})
	if err != nil {
		return nil, err
	}
	aggregated, err := joined.GroupSum(vars.Classification, vars.Statistical)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.agg, err)
	}
	if p.keep != nil {
		aggregated = aggregated.Filter(func(i int) bool {
			code, _ := aggregated.Text(i, region)
			return p.keep(code)
		})
	}

	out := table.Concat(normalized, aggregated)
	if p.rename != nil {
		if out, err = out.Rename(p.rename); err != nil {
			return nil, err
		}
	}

	log.Info("regions aggregated",
		"aggregation", p.agg.String(),
		"year", year,
		"region", region,
		"mapping_pairs", len(mapping),
		"input_rows", t.Len(),
		"aggregated_rows", aggregated.Len(),
		"output_rows", out.Len())
	return out, nil
}
