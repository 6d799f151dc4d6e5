package kostra

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/kostra/pkg/table"
)

// ErrNoRegionColumn is returned when a table has none of the region columns.
var ErrNoRegionColumn = errors.New("no valid region column ('kommuneregion', 'fylkesregion', or 'bydelsregion') found")

// ZeroFill left-pads s with zeros to width, keeping a leading sign first.
func ZeroFill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	return sign + strings.Repeat("0", width-len(sign)-len(s)) + s
}

// IsDigits reports whether s is non-empty and only ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// PadColumn returns t with column col as text, zero filled to width. With
// digitsOnly set, only digit-only values shorter than width are padded.
func PadColumn(t *table.Table, col string, width int, digitsOnly bool) *table.Table {
	out := t.WithText(col)
	c := out.Column(col)
	if c == nil {
		return out
	}
	for i, v := range c.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if digitsOnly && !IsDigits(s) {
			continue
		}
		c.Values[i] = ZeroFill(s, width)
	}
	return out
}

// FormatFile normalises the fixed-width columns: periode to 4 characters,
// alder to 3, and region columns to their width where the value is
// digits-only and too short. A table without a region column is an error.
func FormatFile(t *table.Table) (*table.Table, error) {
	out := t
	if t.Has(Periode) {
		out = PadColumn(out, Periode, PeriodeWidth, false)
	}
	if t.Has(Alder) {
		out = PadColumn(out, Alder, AlderWidth, false)
	}
	for _, col := range RegionColumns {
		if out.Has(col) {
			out = PadColumn(out, col, RegionWidth(col), true)
		}
	}
	if len(RegionColumnsIn(out)) == 0 {
		return nil, ErrNoRegionColumn
	}
	if out == t {
		out = t.Clone()
	}
	return out, nil
}

// CommaToDot converts every text column holding a decimal comma to Float.
func CommaToDot(t *table.Table) (*table.Table, error) {
	out := t.Clone()
	for _, name := range out.Names() {
		c := out.Column(name)
		if c.Kind != table.Text && c.Kind != table.Category {
			continue
		}
		hasComma := false
		for _, v := range c.Values {
			if s, ok := v.(string); ok && strings.Contains(s, ",") {
				hasComma = true
				break
			}
		}
		if !hasComma {
			continue
		}
		for i, v := range c.Values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
			if s == "" {
				c.Values[i] = nil
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %q is not a decimal number", name, i, v)
			}
			c.Values[i] = f
		}
		c.Kind = table.Float
	}
	return out, nil
}
