// Package names attaches registry names next to classification code columns.
//
// Names are a presentation step: aggregating a table after names have been
// attached sums the codes but not the names, so drop the name columns before
// aggregating and attach them again afterwards.
package names

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// SampleSize is the number of invalid codes kept in Diagnostics.Sample.
const SampleSize = 20

// Spec names one code column and the classification holding its names.
type Spec struct {
	CodeColumn       string `yaml:"code_col" json:"code_col"`
	ClassificationID int    `yaml:"klass_id" json:"klass_id"`
	// NameColumn defaults to <CodeColumn>_navn.
	NameColumn string `yaml:"name_col_out,omitempty" json:"name_col_out,omitempty"`
	// Level defaults to the smallest level of the code list.
	Level int `yaml:"select_level,omitempty" json:"select_level,omitempty"`
}

// Options are the registry query settings.
type Options struct {
	Language      string
	IncludeFuture bool
	Logger        *slog.Logger
}

// Diagnostics reports how well one code column matched its code list.
type Diagnostics struct {
	CodeColumn       string   `json:"code_col"`
	ClassificationID int      `json:"klass_id"`
	Level            int      `json:"level"`
	Year             string   `json:"year"`
	InvalidCount     int      `json:"invalid_count"`
	Sample           []string `json:"invalid_sample"`
	Invalid          []string `json:"all_invalid"`
}

// LoadSpecs reads a YAML list of specs.
func LoadSpecs(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read name specs: %w", err)
	}
	var specs []Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse name specs %s: %w", path, err)
	}
	if err := checkSpecs(specs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// ParseSpecs reads the short form "column:klass_id[:level]", comma separated,
// as given on the command line.
func ParseSpecs(s string) ([]Spec, error) {
	var specs []Spec
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("name spec %q: want column:klass_id[:level]", item)
		}
		spec := Spec{CodeColumn: strings.TrimSpace(parts[0])}
		id, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("name spec %q: klass id: %w", item, err)
		}
		spec.ClassificationID = id
		if len(parts) == 3 {
			if spec.Level, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
				return nil, fmt.Errorf("name spec %q: level: %w", item, err)
			}
		}
		specs = append(specs, spec)
	}
	if err := checkSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func checkSpecs(specs []Spec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no name specs")
	}
	for i, s := range specs {
		if s.CodeColumn == "" || s.ClassificationID <= 0 {
			return fmt.Errorf("name spec %d: code_col and klass_id are required", i)
		}
	}
	return nil
}

// Attach inserts a name column right after each spec's code column, using
// the code lists valid in the single year of the periode column. Codes
// without a name are left missing and reported in the diagnostics, keyed by
// code column, or code column|klass id when a column is named twice.
func Attach(ctx context.Context, reg klass.Registry, t *table.Table, specs []Spec, opts Options) (*table.Table, map[string]Diagnostics, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if !t.Has(kostra.Periode) {
		return nil, nil, fmt.Errorf("table must contain a %q column", kostra.Periode)
	}
	years := t.DistinctText(kostra.Periode)
	if len(years) != 1 {
		return nil, nil, fmt.Errorf("%q must have exactly one value; found %d: %v", kostra.Periode, len(years), years)
	}
	year := years[0]

	out := t
	diags := make(map[string]Diagnostics, len(specs))
	for _, s := range specs {
		var d Diagnostics
		var err error
		out, d, err = attachOne(ctx, reg, out, year, s, opts)
		if err != nil {
			return nil, nil, err
		}

		key := s.CodeColumn
		if _, dup := diags[key]; dup {
			key = fmt.Sprintf("%s|%d", s.CodeColumn, s.ClassificationID)
		}
		diags[key] = d

		attrs := []any{
			"code_col", s.CodeColumn,
			"klass_id", s.ClassificationID,
			"level", d.Level,
			"year", year,
			"invalid", d.InvalidCount,
		}
		if d.InvalidCount > 0 {
			attrs = append(attrs, "sample", strings.Join(d.Sample, ", "))
			if d.InvalidCount > SampleSize {
				attrs = append(attrs, "more", d.InvalidCount-SampleSize)
			}
			log.Warn("codes without a name", attrs...)
		} else {
			log.Info("names attached", attrs...)
		}
	}
	return out, diags, nil
}

func attachOne(ctx context.Context, reg klass.Registry, t *table.Table, year string, s Spec, opts Options) (*table.Table, Diagnostics, error) {
	if !t.Has(s.CodeColumn) {
		return nil, Diagnostics{}, fmt.Errorf("column %q not found", s.CodeColumn)
	}
	q := klass.YearQuery(year)
	q.Language = opts.Language
	q.IncludeFuture = opts.IncludeFuture
	q.SelectLevel = s.Level

	codes, err := reg.Codes(ctx, s.ClassificationID, q)
	if err != nil {
		return nil, Diagnostics{}, fmt.Errorf("codes for %s (classification %d): %w", s.CodeColumn, s.ClassificationID, err)
	}
	levels := klass.Levels(codes)
	if len(levels) == 0 {
		return nil, Diagnostics{}, fmt.Errorf("classification %d has no codes for %s", s.ClassificationID, year)
	}
	level := s.Level
	if level == 0 {
		level = levels[0]
	}
	lookup := klass.CodeNames(klass.PivotLevel(codes), level)
	if len(lookup) == 0 {
		return nil, Diagnostics{}, fmt.Errorf("classification %d has no codes at level %d", s.ClassificationID, level)
	}

	out := t.WithText(s.CodeColumn)
	codeCol := out.Column(s.CodeColumn)
	nameVals := make([]any, out.Len())
	invalidSet := make(map[string]bool)
	for i, v := range codeCol.Values {
		c, ok := v.(string)
		if !ok {
			continue
		}
		c = strings.TrimSpace(c)
		codeCol.Values[i] = c
		if name, ok := lookup[c]; ok {
			nameVals[i] = name
		} else {
			invalidSet[c] = true
		}
	}

	nameCol := s.NameColumn
	if nameCol == "" {
		nameCol = s.CodeColumn + "_navn"
	}
	if out.Has(nameCol) {
		out = out.Drop(nameCol)
	}
	at := 0
	for i, n := range out.Names() {
		if n == s.CodeColumn {
			at = i + 1
			break
		}
	}
	out, err = out.InsertColumn(at, &table.Column{Name: nameCol, Kind: table.Text, Values: nameVals})
	if err != nil {
		return nil, Diagnostics{}, err
	}

	invalid := make([]string, 0, len(invalidSet))
	for c := range invalidSet {
		invalid = append(invalid, c)
	}
	sort.Strings(invalid)
	sample := invalid
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
	}
	return out, Diagnostics{
		CodeColumn:       s.CodeColumn,
		ClassificationID: s.ClassificationID,
		Level:            level,
		Year:             year,
		InvalidCount:     len(invalid),
		Sample:           sample,
		Invalid:          invalid,
	}, nil
}
