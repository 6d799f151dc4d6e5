package cohort

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

const (
	fromColumn = "from"
	toColumn   = "to"
)

// AgeGroup maps one age to one age group for one period. An age usually
// belongs to several groups.
type AgeGroup struct {
	Periode string `parquet:"periode" json:"periode"`
	From    string `parquet:"from" json:"from"`
	To      string `parquet:"to" json:"to"`
}

// LoadAgeHierarchy reads an age hierarchy from a Parquet or CSV file with
// the columns periode, from and to. Numeric Parquet columns are read as
// their decimal text.
func LoadAgeHierarchy(path string) ([]AgeGroup, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return readParquet(path)
	case ".csv", ".txt", ".xlsx":
		t, err := table.ReadFile(path, table.ReadOptions{NoInference: true})
		if err != nil {
			return nil, err
		}
		return fromTable(t)
	default:
		return nil, fmt.Errorf("unsupported age hierarchy file %q", path)
	}
}

// SaveAgeHierarchy writes groups as a Parquet file.
func SaveAgeHierarchy(path string, groups []AgeGroup) error {
	if err := parquet.WriteFile(path, groups); err != nil {
		return fmt.Errorf("write age hierarchy %s: %w", path, err)
	}
	return nil
}

func readParquet(path string) ([]AgeGroup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age hierarchy: %w", err)
	}
	defer f.Close()

	r := parquet.NewReader(f)
	defer r.Close()

	index := make(map[string]int)
	for i, field := range r.Schema().Fields() {
		index[strings.ToLower(field.Name())] = i
	}
	for _, c := range []string{kostra.Periode, fromColumn, toColumn} {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("age hierarchy %s: missing column %q", path, c)
		}
	}

	var out []AgeGroup
	buf := make([]parquet.Row, 128)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			out = append(out, AgeGroup{
				Periode: cell(row, index[kostra.Periode]),
				From:    cell(row, index[fromColumn]),
				To:      cell(row, index[toColumn]),
			})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read age hierarchy %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

func cell(row parquet.Row, column int) string {
	for _, v := range row {
		if v.Column() == column {
			if v.IsNull() {
				return ""
			}
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

func fromTable(t *table.Table) ([]AgeGroup, error) {
	for _, c := range []string{kostra.Periode, fromColumn, toColumn} {
		if !t.Has(c) {
			return nil, fmt.Errorf("age hierarchy: missing column %q", c)
		}
	}
	out := make([]AgeGroup, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		p, _ := t.Text(i, kostra.Periode)
		from, _ := t.Text(i, fromColumn)
		to, _ := t.Text(i, toColumn)
		out = append(out, AgeGroup{Periode: strings.TrimSpace(p), From: strings.TrimSpace(from), To: strings.TrimSpace(to)})
	}
	return out, nil
}
