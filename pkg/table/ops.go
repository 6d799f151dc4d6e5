package table

import (
	"fmt"
	"sort"
	"strings"
)

// Concat stacks tables vertically. The result has the union of columns in
// order of first appearance; cells of columns a table lacks are missing.
// Int and Float widen to Float, Int and Bool to Int, any other mix to Text.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		for _, c := range t.cols {
			if oc := out.Column(c.Name); oc != nil {
				oc.Kind = widen(oc.Kind, c.Kind)
				continue
			}
			out.cols = append(out.cols, &Column{Name: c.Name, Kind: c.Kind})
		}
	}
	for _, t := range tables {
		for _, oc := range out.cols {
			src := t.Column(oc.Name)
			for i := 0; i < t.rows; i++ {
				var v any
				if src != nil {
					v = widenValue(src.Values[i], oc.Kind)
				}
				oc.Values = append(oc.Values, v)
			}
		}
		out.rows += t.rows
	}
	for _, oc := range out.cols {
		if oc.Values == nil {
			oc.Values = []any{}
		}
	}
	return out
}

func widen(a, b Kind) Kind {
	if a == b {
		return a
	}
	if a.Numeric() && b.Numeric() {
		if a == Float || b == Float {
			return Float
		}
		return Int
	}
	return Text
}

func widenValue(v any, k Kind) any {
	if v == nil {
		return nil
	}
	switch k {
	case Text, Category:
		return FormatValue(v)
	case Float, Int:
		if c, err := Coerce(v, k); err == nil {
			return c
		}
	}
	return v
}

const keySep = "\x1f"

// rowKey joins the text of the key cells; ok is false when one is missing.
func (t *Table) rowKey(row int, cols []*Column) (string, bool) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		v := c.Values[row]
		if v == nil {
			return "", false
		}
		parts[i] = FormatValue(v)
	}
	return strings.Join(parts, keySep), true
}

func (t *Table) columns(names []string) ([]*Column, error) {
	out := make([]*Column, len(names))
	for i, n := range names {
		c := t.Column(n)
		if c == nil {
			return nil, fmt.Errorf("no column %q", n)
		}
		out[i] = c
	}
	return out, nil
}

// InnerJoin matches left and right rows whose key cells have equal text.
// Output rows follow left order, then right order within a left row. Right
// key columns named like their left counterpart are folded into it; other
// right columns that clash with a left name get the suffix "_y".
func InnerJoin(left, right *Table, leftOn, rightOn []string) (*Table, error) {
	return join(left, right, leftOn, rightOn, false)
}

// LeftJoin is InnerJoin that keeps unmatched left rows with missing right cells.
func LeftJoin(left, right *Table, leftOn, rightOn []string) (*Table, error) {
	return join(left, right, leftOn, rightOn, true)
}

func join(left, right *Table, leftOn, rightOn []string, keepLeft bool) (*Table, error) {
	if len(leftOn) == 0 || len(leftOn) != len(rightOn) {
		return nil, fmt.Errorf("join needs matching key lists, got %v and %v", leftOn, rightOn)
	}
	lk, err := left.columns(leftOn)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	rk, err := right.columns(rightOn)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	index := make(map[string][]int)
	for i := 0; i < right.rows; i++ {
		if k, ok := right.rowKey(i, rk); ok {
			index[k] = append(index[k], i)
		}
	}

	folded := make(map[string]bool)
	for i := range leftOn {
		if leftOn[i] == rightOn[i] {
			folded[rightOn[i]] = true
		}
	}

	var lrows, rrows []int
	for i := 0; i < left.rows; i++ {
		k, ok := left.rowKey(i, lk)
		matches := index[k]
		if !ok || len(matches) == 0 {
			if keepLeft {
				lrows = append(lrows, i)
				rrows = append(rrows, -1)
			}
			continue
		}
		for _, j := range matches {
			lrows = append(lrows, i)
			rrows = append(rrows, j)
		}
	}

	out := left.Take(lrows)
	for _, c := range right.cols {
		if folded[c.Name] {
			continue
		}
		name := c.Name
		if out.Has(name) {
			name += "_y"
		}
		v := make([]any, len(rrows))
		for i, j := range rrows {
			if j >= 0 {
				v[i] = c.Values[j]
			}
		}
		out.cols = append(out.cols, &Column{Name: name, Kind: c.Kind, Values: v})
	}
	return out, nil
}

// GroupSum groups rows by the text of the key columns and sums the measures.
// Rows with a missing key are dropped and groups come out sorted by key.
// Int and Bool measures sum to Int, Float measures to Float; missing cells
// are skipped. A non-numeric measure is an error.
func (t *Table) GroupSum(keys, measures []string) (*Table, error) {
	kc, err := t.columns(keys)
	if err != nil {
		return nil, fmt.Errorf("group keys: %w", err)
	}
	mc, err := t.columns(measures)
	if err != nil {
		return nil, fmt.Errorf("measures: %w", err)
	}
	for _, c := range mc {
		if !c.Kind.Numeric() {
			return nil, fmt.Errorf("column %q is %s and cannot be summed", c.Name, c.Kind)
		}
	}

	type group struct {
		first  int
		parts  []string
		floats []float64
		ints   []int64
	}
	groups := make(map[string]*group)
	var order []*group
	for i := 0; i < t.rows; i++ {
		k, ok := t.rowKey(i, kc)
		if !ok {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &group{
				first:  i,
				parts:  strings.Split(k, keySep),
				floats: make([]float64, len(mc)),
				ints:   make([]int64, len(mc)),
			}
			groups[k] = g
			order = append(order, g)
		}
		for j, c := range mc {
			switch x := c.Values[i].(type) {
			case int64:
				g.ints[j] += x
			case float64:
				g.floats[j] += x
			case bool:
				if x {
					g.ints[j]++
				}
			}
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := order[a].parts, order[b].parts
		for i := range pa {
			if pa[i] != pb[i] {
				return pa[i] < pb[i]
			}
		}
		return false
	})

	out := &Table{rows: len(order)}
	for _, c := range kc {
		v := make([]any, len(order))
		for i, g := range order {
			v[i] = c.Values[g.first]
		}
		out.cols = append(out.cols, &Column{Name: c.Name, Kind: c.Kind, Values: v})
	}
	for j, c := range mc {
		kind := Int
		if c.Kind == Float {
			kind = Float
		}
		v := make([]any, len(order))
		for i, g := range order {
			if kind == Float {
				v[i] = g.floats[j]
			} else {
				v[i] = g.ints[j]
			}
		}
		out.cols = append(out.cols, &Column{Name: c.Name, Kind: kind, Values: v})
	}
	return out, nil
}
