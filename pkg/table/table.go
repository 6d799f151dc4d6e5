// Package table is the in-memory column store shared by the KOSTRA helpers.
//
// A Table is an ordered list of named, typed columns of equal length. A nil
// cell is a missing value. Every transform returns a new Table; the receiver
// is never modified except through Set.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the logical type of a column.
type Kind uint8

const (
	Text Kind = iota
	Int
	Float
	Bool
	Category
)

var kindNames = [...]string{"text", "int", "float", "bool", "category"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MarshalText renders the kind by name in JSON and logs.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Numeric reports whether values of this kind can be summed.
func (k Kind) Numeric() bool {
	return k == Int || k == Float || k == Bool
}

// Column holds the values of one column. Text and Category cells are string,
// Int cells int64, Float cells float64, Bool cells bool.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

func (c *Column) clone() *Column {
	v := make([]any, len(c.Values))
	copy(v, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: v}
}

// Table is an ordered set of equally long columns.
type Table struct {
	cols []*Column
	rows int
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// AddColumn appends a column, coercing every value to kind.
func (t *Table) AddColumn(name string, kind Kind, values []any) error {
	if t.Has(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(t.cols) > 0 && len(values) != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.rows)
	}
	v := make([]any, len(values))
	for i, x := range values {
		c, err := Coerce(x, kind)
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		v[i] = c
	}
	t.cols = append(t.cols, &Column{Name: name, Kind: kind, Values: v})
	t.rows = len(values)
	return nil
}

// MustAdd is AddColumn for literals; it panics on error and returns t.
func (t *Table) MustAdd(name string, kind Kind, values ...any) *Table {
	if err := t.AddColumn(name, kind, values); err != nil {
		panic(err)
	}
	return t
}

// FromStrings builds an all-text table from a header and rows.
func FromStrings(header []string, rows [][]string) (*Table, error) {
	t := New()
	for j, name := range header {
		vals := make([]any, len(rows))
		for i, r := range rows {
			if j < len(r) {
				vals[i] = r[j]
			}
		}
		if err := t.AddColumn(name, Text, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

func (t *Table) index(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool { return t.index(name) >= 0 }

// Column returns the named column or nil. The returned column is shared with t.
func (t *Table) Column(name string) *Column {
	if i := t.index(name); i >= 0 {
		return t.cols[i]
	}
	return nil
}

// Get returns the cell at row in column name, nil when missing or absent.
func (t *Table) Get(row int, name string) any {
	c := t.Column(name)
	if c == nil || row < 0 || row >= t.rows {
		return nil
	}
	return c.Values[row]
}

// Set stores v at row in column name after coercing it to the column kind.
func (t *Table) Set(row int, name string, v any) error {
	c := t.Column(name)
	if c == nil {
		return fmt.Errorf("no column %q", name)
	}
	if row < 0 || row >= t.rows {
		return fmt.Errorf("row %d out of range [0,%d)", row, t.rows)
	}
	cv, err := Coerce(v, c.Kind)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	c.Values[row] = cv
	return nil
}

// Text returns the cell as text; ok is false for missing cells.
func (t *Table) Text(row int, name string) (s string, ok bool) {
	v := t.Get(row, name)
	if v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// Row returns a copy of one row keyed by column name.
func (t *Table) Row(i int) map[string]any {
	out := make(map[string]any, len(t.cols))
	for _, c := range t.cols {
		out[c.Name] = c.Values[i]
	}
	return out
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{cols: make([]*Column, len(t.cols)), rows: t.rows}
	for i, c := range t.cols {
		out.cols[i] = c.clone()
	}
	return out
}

// WithText returns a copy of t where the named columns hold text. Absent
// names are ignored and missing cells stay missing.
func (t *Table) WithText(names ...string) *Table {
	out := t.Clone()
	for _, n := range names {
		c := out.Column(n)
		if c == nil || c.Kind == Text {
			continue
		}
		for i, v := range c.Values {
			if v != nil {
				c.Values[i] = FormatValue(v)
			}
		}
		c.Kind = Text
	}
	return out
}

// WithKind returns a copy of t where column name is converted to kind.
func (t *Table) WithKind(name string, kind Kind) (*Table, error) {
	out := t.Clone()
	c := out.Column(name)
	if c == nil {
		return nil, fmt.Errorf("no column %q", name)
	}
	for i, v := range c.Values {
		cv, err := Coerce(v, kind)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		c.Values[i] = cv
	}
	c.Kind = kind
	return out, nil
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var idx []int
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// Take returns the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	out := &Table{cols: make([]*Column, len(t.cols)), rows: len(rows)}
	for j, c := range t.cols {
		v := make([]any, len(rows))
		for i, r := range rows {
			v[i] = c.Values[r]
		}
		out.cols[j] = &Column{Name: c.Name, Kind: c.Kind, Values: v}
	}
	return out
}

// Select returns the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{rows: t.rows}
	for _, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil, fmt.Errorf("no column %q", n)
		}
		out.cols = append(out.cols, c.clone())
	}
	return out, nil
}

// Drop returns t without the named columns. Absent names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Table{rows: t.rows}
	for _, c := range t.cols {
		if !drop[c.Name] {
			out.cols = append(out.cols, c.clone())
		}
	}
	return out
}

// Rename returns t with columns renamed old -> new.
func (t *Table) Rename(m map[string]string) (*Table, error) {
	out := t.Clone()
	for _, c := range out.cols {
		if nn, ok := m[c.Name]; ok {
			c.Name = nn
		}
	}
	seen := make(map[string]bool, len(out.cols))
	for _, c := range out.cols {
		if seen[c.Name] {
			return nil, fmt.Errorf("rename produces duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return out, nil
}

// InsertColumn returns t with c inserted at position at.
func (t *Table) InsertColumn(at int, c *Column) (*Table, error) {
	if t.Has(c.Name) {
		return nil, fmt.Errorf("column %q already exists", c.Name)
	}
	if len(t.cols) > 0 && len(c.Values) != t.rows {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", c.Name, len(c.Values), t.rows)
	}
	if at < 0 || at > len(t.cols) {
		at = len(t.cols)
	}
	out := t.Clone()
	nc := c.clone()
	out.cols = append(out.cols[:at], append([]*Column{nc}, out.cols[at:]...)...)
	out.rows = len(c.Values)
	return out, nil
}

// DistinctText returns the distinct non-missing values of a column as text,
// in order of first appearance.
func (t *Table) DistinctText(name string) []string {
	c := t.Column(name)
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		s := FormatValue(v)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// FormatValue renders a cell as text. Integral floats print without a
// fractional part.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Coerce converts v to the Go representation of kind. nil stays nil.
func Coerce(v any, kind Kind) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case Text, Category:
		return FormatValue(normalizeGo(v)), nil
	case Int:
		switch x := normalizeGo(v).(type) {
		case int64:
			return x, nil
		case float64:
			if math.IsNaN(x) {
				return nil, nil
			}
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("%v is not an integer", x)
			}
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return nil, nil
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || f != math.Trunc(f) {
				return nil, fmt.Errorf("%q is not an integer", x)
			}
			return int64(f), nil
		}
	case Float:
		switch x := normalizeGo(v).(type) {
		case int64:
			return float64(x), nil
		case float64:
			if math.IsNaN(x) {
				return nil, nil
			}
			return x, nil
		case bool:
			if x {
				return 1.0, nil
			}
			return 0.0, nil
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", x)
			}
			return f, nil
		}
	case Bool:
		switch x := normalizeGo(v).(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case float64:
			if math.IsNaN(x) {
				return nil, nil
			}
			return x != 0, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "":
				return nil, nil
			case "true", "1", "yes", "y":
				return true, nil
			case "false", "0", "no", "n":
				return false, nil
			}
			return nil, fmt.Errorf("%q is not a boolean", x)
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, kind)
}

func normalizeGo(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// ToFloat returns a numeric cell as float64.
func ToFloat(v any) (float64, bool) {
	switch x := normalizeGo(v).(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
