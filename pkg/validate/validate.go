// Package validate checks a KOSTRA table before it is published: required
// columns, missing codes, fixed-width formats, the periods present and, for a
// single-period table, membership of every code in its registry code list.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// Severity grades a finding.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Check names.
const (
	CheckColumns    = "missing_columns"
	CheckMissing    = "missing_values"
	CheckFormat     = "format"
	CheckPeriods    = "periods"
	CheckMembership = "klass"
)

// Finding is one result of a check. Rows are 0-based row indexes of the
// offending rows; Values the offending distinct values where useful.
type Finding struct {
	Check    string   `json:"check"`
	Column   string   `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Rows     []int    `json:"rows,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// Periods classifies the distinct periode values.
type Periods struct {
	Valid         []string `json:"valid"`
	PaddedMissing []string `json:"padded_missing,omitempty"`
	Missing       int      `json:"missing_rows"`
	Invalid       []string `json:"invalid,omitempty"`
}

// Report collects the findings of one run.
type Report struct {
	Classification []string  `json:"classification"`
	Findings       []Finding `json:"findings"`
	Periods        Periods   `json:"periods"`
}

// Count returns the number of findings with severity s.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// OK reports whether the run found no errors.
func (r *Report) OK() bool { return r.Count(Error) == 0 }

// PreviewRows is how many offending row numbers are logged per finding.
const PreviewRows = 15

// Validator runs the checks. Registry may be nil, which skips the
// membership check.
type Validator struct {
	Registry klass.Registry
	// IDs maps extra classification columns to their registry ids; they
	// override the region defaults.
	IDs map[string]int
	// Prompter is asked for the ids of other classification columns. Without
	// one those columns are skipped.
	Prompter kostra.Prompter
	Language string
	Rules    []RuleSpec
	// Options resolves the classification variables when Run gets none.
	Options kostra.Options

	cache map[string][]string
}

func (v *Validator) log() *slog.Logger { return v.Options.Log() }

// Run executes every check on t. classVars lists the classification
// variables; when empty they are derived from the table.
func (v *Validator) Run(ctx context.Context, t *table.Table, classVars []string) (*Report, error) {
	if len(classVars) == 0 {
		_, vars, err := kostra.Define(t, v.Options)
		if err != nil {
			return nil, err
		}
		classVars = vars.Classification
	}
	rules := v.Rules
	if rules == nil {
		rules = DefaultRules
	}
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	v.cache = make(map[string][]string)

	zerosValid := make(map[string]bool, len(classVars))
	for _, c := range classVars {
		zerosValid[c] = true
	}

	rep := &Report{Classification: classVars}
	rep.Findings = append(rep.Findings, MissingColumns(t, classVars)...)
	rep.Findings = append(rep.Findings, MissingValues(t, classVars, zerosValid)...)
	rep.Findings = append(rep.Findings, checkFormats(t, classVars, compiled)...)
	periods, pf := CheckPeriods(t)
	rep.Periods = periods
	rep.Findings = append(rep.Findings, pf...)
	rep.Findings = append(rep.Findings, v.checkMembership(ctx, t, classVars, periods)...)

	for _, f := range rep.Findings {
		v.logFinding(f)
	}
	v.log().Info("validation finished",
		"classification", classVars,
		"errors", rep.Count(Error),
		"warnings", rep.Count(Warning))
	return rep, nil
}

func (v *Validator) logFinding(f Finding) {
	attrs := []any{"check", f.Check}
	if f.Column != "" {
		attrs = append(attrs, "column", f.Column)
	}
	if len(f.Rows) > 0 {
		preview := f.Rows
		if len(preview) > PreviewRows {
			preview = preview[:PreviewRows]
		}
		attrs = append(attrs, "rows", len(f.Rows), "preview", preview)
	}
	if len(f.Values) > 0 {
		attrs = append(attrs, "values", f.Values)
	}
	switch f.Severity {
	case Error:
		v.log().Error(f.Message, attrs...)
	case Warning:
		v.log().Warn(f.Message, attrs...)
	default:
		v.log().Info(f.Message, attrs...)
	}
}

// MissingColumns reports classification variables absent from t.
func MissingColumns(t *table.Table, classVars []string) []Finding {
	var missing []string
	for _, c := range classVars {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return []Finding{{Check: CheckColumns, Severity: Error,
			Message: "missing required column(s)", Values: missing}}
	}
	return []Finding{{Check: CheckColumns, Severity: Info,
		Message: fmt.Sprintf("all of %v are present", classVars)}}
}

// MissingValues reports rows whose classification codes are missing: native
// missing, blank, an NA token, or an NA token behind leading zeros such as
// "000null". In columns of zerosValid, codes made only of zeros are valid.
func MissingValues(t *table.Table, classVars []string, zerosValid map[string]bool) []Finding {
	var out []Finding
	for _, col := range classVars {
		c := t.Column(col)
		if c == nil {
			continue
		}
		var rows []int
		for i, v := range c.Values {
			if v == nil {
				rows = append(rows, i)
				continue
			}
			s := strings.TrimSpace(table.FormatValue(v))
			if s == "" {
				rows = append(rows, i)
				continue
			}
			if naTokens[core(s)] && !(zerosValid[col] && allZeros(s)) {
				rows = append(rows, i)
			}
		}
		if len(rows) > 0 {
			out = append(out, Finding{Check: CheckMissing, Column: col, Severity: Error,
				Message: fmt.Sprintf("missing values detected (%d rows)", len(rows)), Rows: rows})
		}
	}
	if len(out) == 0 {
		out = append(out, Finding{Check: CheckMissing, Severity: Info,
			Message: "no missing values in the classification variables"})
	}
	return out
}

// checkFormats applies the format rule of every classification variable
// that has one. Padded-missing values are reported as warnings and left to
// the missing-value check.
func checkFormats(t *table.Table, classVars []string, rules map[string]formatRule) []Finding {
	var out []Finding
	for _, col := range classVars {
		r, ok := rules[col]
		c := t.Column(col)
		if !ok || c == nil {
			continue
		}
		var padded, bad []int
		for i, v := range c.Values {
			if v == nil {
				continue
			}
			s := strings.TrimSpace(table.FormatValue(v))
			if s == "" {
				continue
			}
			if paddedTokens[core(s)] {
				padded = append(padded, i)
				continue
			}
			if r.applies(s) && !r.valid(s) {
				bad = append(bad, i)
			}
		}
		if len(padded) > 0 {
			out = append(out, Finding{Check: CheckFormat, Column: col, Severity: Warning,
				Message: "suspected zero-padded missing values, see the missing-value check", Rows: padded})
		}
		if len(bad) > 0 {
			out = append(out, Finding{Check: CheckFormat, Column: col, Severity: Error,
				Message: r.message, Rows: bad})
		}
		if len(padded) == 0 && len(bad) == 0 {
			out = append(out, Finding{Check: CheckFormat, Column: col, Severity: Info,
				Message: col + " is formatted correctly"})
		}
	}
	return out
}

// CheckPeriods classifies the distinct periode values into valid four-digit
// years, padded-missing tokens, missing and format-invalid values.
func CheckPeriods(t *table.Table) (Periods, []Finding) {
	var p Periods
	c := t.Column(kostra.Periode)
	if c == nil {
		return p, []Finding{{Check: CheckPeriods, Column: kostra.Periode, Severity: Error,
			Message: "no periode column"}}
	}

	seen := make(map[string]bool)
	var paddedRows, missingRows, invalidRows []int
	for i, v := range c.Values {
		if v == nil {
			missingRows = append(missingRows, i)
			continue
		}
		s := strings.TrimSpace(table.FormatValue(v))
		switch {
		case s == "":
			missingRows = append(missingRows, i)
		case naTokens[core(s)]:
			paddedRows = append(paddedRows, i)
			if !seen[s] {
				p.PaddedMissing = append(p.PaddedMissing, s)
			}
		case yearPattern.MatchString(s):
			if !seen[s] {
				p.Valid = append(p.Valid, s)
			}
		default:
			invalidRows = append(invalidRows, i)
			if !seen[s] {
				p.Invalid = append(p.Invalid, s)
			}
		}
		seen[s] = true
	}
	sort.Strings(p.Valid)
	p.Missing = len(missingRows)

	var out []Finding
	if len(p.Valid) > 0 {
		out = append(out, Finding{Check: CheckPeriods, Column: kostra.Periode, Severity: Info,
			Message: fmt.Sprintf("valid periods (%d)", len(p.Valid)), Values: p.Valid})
	}
	if len(paddedRows) > 0 {
		out = append(out, Finding{Check: CheckPeriods, Column: kostra.Periode, Severity: Warning,
			Message: "suspected padded-missing periods", Rows: paddedRows, Values: p.PaddedMissing})
	}
	if len(missingRows) > 0 {
		out = append(out, Finding{Check: CheckPeriods, Column: kostra.Periode, Severity: Error,
			Message: "missing periode values", Rows: missingRows})
	}
	if len(invalidRows) > 0 {
		out = append(out, Finding{Check: CheckPeriods, Column: kostra.Periode, Severity: Error,
			Message: "format-invalid periode values", Rows: invalidRows, Values: p.Invalid})
	}
	return p, out
}
