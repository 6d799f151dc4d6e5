// Package cohort sums KOSTRA tables over gender and into age groups.
package cohort

import (
	"fmt"

	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// SumOverGender sums the statistical variables of t over kjonn, grouping by
// every other classification variable. A table without kjonn is returned
// unchanged.
func SumOverGender(t *table.Table, o kostra.Options) (*table.Table, error) {
	log := o.Log()
	if !t.Has(kostra.Kjonn) {
		log.Info("kjonn is not a classification variable, nothing to sum")
		return t, nil
	}

	extras, err := o.ResolveExtras(kostra.Present(t))
	if err != nil {
		return nil, err
	}
	typed, vars := kostra.DefineVariables(t, append(extras, kostra.Kjonn))
	groupBy := without(vars.Classification, kostra.Kjonn)

	out, err := typed.GroupSum(groupBy, vars.Statistical)
	if err != nil {
		return nil, fmt.Errorf("sum over gender: %w", err)
	}
	log.Info("summed over gender",
		"group_by", groupBy,
		"statistical", vars.Statistical,
		"input_rows", t.Len(),
		"output_rows", out.Len())
	return out, nil
}

// AgeResult is the outcome of SumToAgeGroups.
type AgeResult struct {
	// Renamed lists the columns replaced by the group codes.
	Renamed []string `json:"renamed"`
	// GroupBy lists the classification variables the groups were summed by.
	GroupBy []string     `json:"group_by"`
	Table   *table.Table `json:"-"`
}

// SumToAgeGroups maps every alder value to its age groups through the
// hierarchy rows for the periods in t, sums the statistical variables per
// group and appends the group rows, with the group code in alder, to the
// formatted original.
func SumToAgeGroups(t *table.Table, groups []AgeGroup, o kostra.Options) (*AgeResult, error) {
	for _, c := range []string{kostra.Periode, kostra.Alder} {
		if !t.Has(c) {
			return nil, fmt.Errorf("age grouping needs a %q column", c)
		}
	}
	if t.Has(toColumn) || t.Has(fromColumn) {
		return nil, fmt.Errorf("columns %q and %q are reserved for the age hierarchy", fromColumn, toColumn)
	}
	formatted, err := kostra.FormatFile(t)
	if err != nil {
		return nil, err
	}

	periods := make(map[string]bool)
	for _, p := range formatted.DistinctText(kostra.Periode) {
		periods[p] = true
	}
	hierarchy := hierarchyTable(groups, periods)

	merged, err := table.InnerJoin(formatted, hierarchy,
		[]string{kostra.Periode, kostra.Alder}, []string{kostra.Periode, fromColumn})
	if err != nil {
		return nil, err
	}
	merged = merged.Drop(fromColumn)

	extras, err := o.ResolveExtras(kostra.Present(merged))
	if err != nil {
		return nil, err
	}
	typed, vars := kostra.DefineVariables(merged, append(extras, kostra.Alder, toColumn))
	groupBy := without(vars.Classification, kostra.Alder)

	cohorts, err := typed.GroupSum(groupBy, vars.Statistical)
	if err != nil {
		return nil, fmt.Errorf("sum to age groups: %w", err)
	}
	if cohorts, err = cohorts.Rename(map[string]string{toColumn: kostra.Alder}); err != nil {
		return nil, err
	}

	o.Log().Info("summed to age groups",
		"periods", len(periods),
		"hierarchy_rows", hierarchy.Len(),
		"group_by", groupBy,
		"statistical", vars.Statistical,
		"group_rows", cohorts.Len())
	return &AgeResult{
		Renamed: []string{kostra.Alder},
		GroupBy: groupBy,
		Table:   table.Concat(formatted, cohorts),
	}, nil
}

func hierarchyTable(groups []AgeGroup, periods map[string]bool) *table.Table {
	var per, from, to []any
	for _, g := range groups {
		p := kostra.ZeroFill(g.Periode, kostra.PeriodeWidth)
		if !periods[p] {
			continue
		}
		per = append(per, p)
		from = append(from, kostra.ZeroFill(g.From, kostra.AlderWidth))
		to = append(to, g.To)
	}
	return table.New().
		MustAdd(kostra.Periode, table.Text, per...).
		MustAdd(fromColumn, table.Text, from...).
		MustAdd(toColumn, table.Text, to...)
}

func without(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
