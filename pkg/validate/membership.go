package validate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// DefaultIDs are the code lists the region columns are checked against.
var DefaultIDs = map[string]int{
	kostra.Kommuneregion: klass.MunicipalityRegions,
	kostra.Fylkesregion:  klass.CountyRegions,
	kostra.Bydelsregion:  klass.OsloBoroughs,
}

// PromptAttempts is how many invalid answers the operator gets per column.
const PromptAttempts = 3

// checkMembership checks every classification code against its code list
// for the single valid period. Columns without a known id are skipped.
func (v *Validator) checkMembership(ctx context.Context, t *table.Table, classVars []string, periods Periods) []Finding {
	skip := func(msg string) []Finding {
		return []Finding{{Check: CheckMembership, Severity: Warning, Message: msg}}
	}
	if v.Registry == nil {
		return skip("no classification registry configured; registry check skipped")
	}
	if !contains(classVars, kostra.Periode) || !t.Has(kostra.Periode) {
		return skip("column 'periode' not provided; registry check skipped")
	}
	switch len(periods.Valid) {
	case 0:
		return skip("no valid 4-digit periode detected; registry check skipped")
	case 1:
	default:
		return skip(fmt.Sprintf("%d valid periods %v; the registry check runs only for exactly one period",
			len(periods.Valid), periods.Valid))
	}
	year := periods.Valid[0]

	ids := make(map[string]int, len(DefaultIDs)+len(v.IDs))
	for c, id := range DefaultIDs {
		ids[c] = id
	}
	for c, id := range v.IDs {
		ids[c] = id
	}

	var out []Finding
	for _, col := range classVars {
		if col == kostra.Periode || !t.Has(col) {
			continue
		}
		if _, known := ids[col]; known {
			continue
		}
		if id, ok := v.promptID(ctx, col, year); ok {
			ids[col] = id
		} else {
			out = append(out, Finding{Check: CheckMembership, Column: col, Severity: Warning,
				Message: "no registry id for column; check disabled for this column"})
		}
	}

	for _, col := range classVars {
		if col == kostra.Periode {
			continue
		}
		id, ok := ids[col]
		if !ok {
			continue
		}
		c := t.Column(col)
		if c == nil {
			out = append(out, Finding{Check: CheckMembership, Column: col, Severity: Warning,
				Message: "column not found in data; skipping"})
			continue
		}

		var present []string
		for _, val := range c.Values {
			if val != nil {
				present = append(present, strings.TrimSpace(table.FormatValue(val)))
			}
		}
		if len(present) == 0 {
			out = append(out, Finding{Check: CheckMembership, Column: col, Severity: Warning,
				Message: "column has no non-missing values; skipping"})
			continue
		}

		codes, err := v.codes(ctx, id, year)
		if err != nil {
			out = append(out, Finding{Check: CheckMembership, Column: col, Severity: Error,
				Message: fmt.Sprintf("registry lookup failed for id %d and periode %s: %v", id, year, err)})
			continue
		}
		valid := make(map[string]bool, len(codes))
		for _, code := range codes {
			valid[code] = true
		}

		invalidSet := make(map[string]bool)
		var rows []int
		for i, val := range c.Values {
			if val == nil {
				continue
			}
			s := strings.TrimSpace(table.FormatValue(val))
			if !valid[s] {
				invalidSet[s] = true
				rows = append(rows, i)
			}
		}
		if len(invalidSet) == 0 {
			out = append(out, Finding{Check: CheckMembership, Column: col, Severity: Info,
				Message: fmt.Sprintf("all codes are present in classification %d for %s", id, year)})
			continue
		}
		invalid := make([]string, 0, len(invalidSet))
		for s := range invalidSet {
			invalid = append(invalid, s)
		}
		sort.Strings(invalid)
		out = append(out, Finding{Check: CheckMembership, Column: col, Severity: Error,
			Message: fmt.Sprintf("codes not present in classification %d for %s (%d distinct)", id, year, len(invalid)),
			Rows:    rows, Values: invalid})
	}
	return out
}

// promptID asks the operator for a registry id for col, verifying each
// answer by fetching its codes. An empty answer or a failing prompt skips
// the column.
func (v *Validator) promptID(ctx context.Context, col, year string) (int, bool) {
	if v.Prompter == nil {
		return 0, false
	}
	log := v.log()
	for try := 0; try < PromptAttempts; try++ {
		raw, err := v.Prompter.Prompt(fmt.Sprintf("Enter KLASS ID for '%s' (press Enter to skip): ", col))
		if err != nil {
			log.Warn("input not available; skipping column", "column", col, "error", err)
			return 0, false
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			log.Warn("operator skipped column", "column", col)
			return 0, false
		}
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 || !kostra.IsDigits(raw) {
			log.Warn("invalid input; enter a numeric KLASS ID or press Enter to skip", "input", raw)
			continue
		}
		codes, err := v.codes(ctx, id, year)
		if err != nil {
			log.Warn("registry lookup failed", "id", id, "error", err)
			continue
		}
		if len(codes) == 0 {
			log.Warn("registry id returned no codes", "id", id, "year", year)
			continue
		}
		log.Info("verified registry id", "column", col, "id", id, "year", year)
		return id, true
	}
	log.Warn("giving up on column after repeated attempts", "column", col)
	return 0, false
}

// codes returns the trimmed codes of classification id valid in year,
// cached for the rest of the run.
func (v *Validator) codes(ctx context.Context, id int, year string) ([]string, error) {
	key := fmt.Sprintf("%d|%s", id, year)
	if c, ok := v.cache[key]; ok {
		return c, nil
	}
	q := klass.YearQuery(year)
	q.Language = v.Language
	q.IncludeFuture = true
	list, err := v.Registry.Codes(ctx, id, q)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = strings.TrimSpace(c.Code)
	}
	if v.cache == nil {
		v.cache = make(map[string][]string)
	}
	v.cache[key] = out
	return out, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
