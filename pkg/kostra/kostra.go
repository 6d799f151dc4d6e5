// Package kostra holds the column conventions shared by every KOSTRA table
// and the classification/statistical variable bookkeeping built on them.
package kostra

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/kostra/pkg/table"
)

// Reserved column names.
const (
	Periode       = "periode"
	Kommuneregion = "kommuneregion"
	Fylkesregion  = "fylkesregion"
	Bydelsregion  = "bydelsregion"
	Alder         = "alder"
	Kjonn         = "kjonn"
)

// ReservedColumns are always classification variables, in this order.
var ReservedColumns = []string{Periode, Kommuneregion, Fylkesregion, Bydelsregion}

// RegionColumns are the mutually exclusive region columns.
var RegionColumns = []string{Kommuneregion, Fylkesregion, Bydelsregion}

// Canonical widths after zero fill.
const (
	PeriodeWidth = 4
	AlderWidth   = 3
)

// RegionWidth returns the canonical width of a region column.
func RegionWidth(col string) int {
	if col == Bydelsregion {
		return 6
	}
	return 4
}

// Variables partitions the columns of a table.
type Variables struct {
	Classification []string `json:"classification"`
	Statistical    []string `json:"statistical"`
}

// IsClassification reports whether col is a classification variable.
func (v Variables) IsClassification(col string) bool {
	for _, c := range v.Classification {
		if c == col {
			return true
		}
	}
	return false
}

// Options carries the per-call choices shared by the table operations.
type Options struct {
	// Extras are classification variables beyond the reserved columns. A
	// non-nil empty slice means "none" and suppresses the Prompter.
	Extras []string
	// Prompter is asked for extras only when Extras is nil.
	Prompter Prompter
	Logger   *slog.Logger
}

// Log returns the configured logger or slog.Default.
func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// ResolveExtras returns the explicit extras, or asks the prompter. With
// neither the result is empty.
func (o Options) ResolveExtras(present []string) ([]string, error) {
	if o.Extras != nil || o.Prompter == nil {
		return ParseExtras(strings.Join(o.Extras, ",")), nil
	}
	msg := fmt.Sprintf(
		"The table has the shared KOSTRA classification variables %v.\n"+
			"Enter any other classification variables, comma separated (leave empty for none):", present)
	line, err := o.Prompter.Prompt(msg)
	if err != nil {
		return nil, fmt.Errorf("prompt for classification variables: %w", err)
	}
	return ParseExtras(line), nil
}

// ParseExtras splits a comma separated list, trims each name, drops empties
// and keeps the first occurrence of each.
func ParseExtras(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Present returns the reserved columns found in t, in reserved order.
func Present(t *table.Table) []string {
	var out []string
	for _, c := range ReservedColumns {
		if t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// DefineVariables partitions the columns of t: reserved columns present,
// then extras (deduplicated, first wins), then every other column as a
// statistical variable in table order. The returned table is a copy of t
// with the classification columns cast to text. Extras naming absent columns
// are kept in the partition, as the caller declared them.
func DefineVariables(t *table.Table, extras []string) (*table.Table, Variables) {
	classVars := dedupe(append(Present(t), extras...))
	isClass := make(map[string]bool, len(classVars))
	for _, c := range classVars {
		isClass[c] = true
	}
	var stat []string
	for _, n := range t.Names() {
		if !isClass[n] {
			stat = append(stat, n)
		}
	}
	return t.WithText(classVars...), Variables{Classification: classVars, Statistical: stat}
}

// Define resolves extras through o and partitions t, logging the outcome.
func Define(t *table.Table, o Options) (*table.Table, Variables, error) {
	extras, err := o.ResolveExtras(Present(t))
	if err != nil {
		return nil, Variables{}, err
	}
	out, vars := DefineVariables(t, extras)
	o.Log().Info("classification variables defined",
		"columns", t.Names(),
		"classification", vars.Classification,
		"statistical", vars.Statistical)
	return out, vars, nil
}

// RegionColumnsIn returns the region columns present in t.
func RegionColumnsIn(t *table.Table) []string {
	var out []string
	for _, c := range RegionColumns {
		if t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
