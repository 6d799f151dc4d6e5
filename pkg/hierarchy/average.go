package hierarchy

import (
	"context"
	"fmt"

	"github.com/hazyhaar/kostra/pkg/rounding"
	"github.com/hazyhaar/kostra/pkg/table"
)

// DefaultDenominator is the helper column counting contributing rows.
const DefaultDenominator = "teller"

// AverageOptions controls Averages.
type AverageOptions struct {
	// Denominator names the counting column; DefaultDenominator when empty.
	Denominator string
	// Round rounds the averages half away from zero to Decimals places.
	Round    bool
	Decimals int
	// RestoreKinds converts each column back to its original kind: Int
	// columns are rounded to whole numbers, Bool columns become "nonzero".
	RestoreKinds bool
}

// KindChange records how one averaged column's kind evolved.
type KindChange struct {
	Column   string     `json:"column"`
	Original table.Kind `json:"original"`
	PostOp   table.Kind `json:"post_op"`
	Final    table.Kind `json:"final"`
}

// Averages aggregates t with the default plan for its region column and
// turns the sums in cols into averages over the contributing rows. It is
// meant for level variables; ratios must be recomputed from their parts
// instead.
func (a *Aggregator) Averages(ctx context.Context, t *table.Table, cols []string, opts AverageOptions) (*table.Table, []KindChange, error) {
	denom := opts.Denominator
	if denom == "" {
		denom = DefaultDenominator
	}
	if t.Has(denom) {
		return nil, nil, fmt.Errorf("denominator column %q already exists", denom)
	}
	original := make(map[string]table.Kind, len(cols))
	for _, c := range cols {
		col := t.Column(c)
		if col == nil {
			return nil, nil, fmt.Errorf("no column %q", c)
		}
		if !col.Kind.Numeric() {
			return nil, nil, fmt.Errorf("column %q is %s and cannot be averaged", c, col.Kind)
		}
		original[c] = col.Kind
	}

	ones := make([]any, t.Len())
	for i := range ones {
		ones[i] = int64(1)
	}
	counted := t.Clone()
	if err := counted.AddColumn(denom, table.Int, ones); err != nil {
		return nil, nil, err
	}

	out, err := a.Aggregate(ctx, counted, Auto)
	if err != nil {
		return nil, nil, err
	}

	report := make([]KindChange, 0, len(cols))
	for _, c := range cols {
		vals := make([]any, out.Len())
		for i := range vals {
			n, nok := table.ToFloat(out.Get(i, c))
			d, dok := table.ToFloat(out.Get(i, denom))
			if !nok || !dok || d == 0 {
				continue
			}
			vals[i] = n / d
		}
		avg := &table.Column{Name: c, Kind: table.Float, Values: vals}
		if out, err = replaceColumn(out, avg); err != nil {
			return nil, nil, err
		}
		kc := KindChange{Column: c, Original: original[c], PostOp: table.Float, Final: table.Float}

		if opts.Round {
			if out, err = rounding.RoundColumn(out, c, opts.Decimals, table.Float); err != nil {
				return nil, nil, err
			}
		}
		if opts.RestoreKinds {
			switch original[c] {
			case table.Int:
				out, err = rounding.RoundColumn(out, c, 0, table.Int)
			case table.Bool:
				out, err = out.WithKind(c, table.Bool)
			}
			if err != nil {
				return nil, nil, err
			}
			kc.Final = out.Column(c).Kind
		}
		report = append(report, kc)
	}

	out = out.Drop(denom)
	a.Options.Log().Info("regional averages computed", "columns", cols, "kinds", report)
	return out, report, nil
}

// replaceColumn swaps the named column for c, keeping its position.
func replaceColumn(t *table.Table, c *table.Column) (*table.Table, error) {
	at := -1
	for i, n := range t.Names() {
		if n == c.Name {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, fmt.Errorf("no column %q", c.Name)
	}
	return t.Drop(c.Name).InsertColumn(at, c)
}
