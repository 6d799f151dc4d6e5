// Package rounding implements commercial rounding and the column kind
// conversion applied before KOSTRA tables are published.
package rounding

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/kostra/pkg/table"
)

// HalfUp rounds v to decimals places with ties away from zero
// (0.5 -> 1, -0.5 -> -1, 1.25 -> 1.3). NaN and infinities are returned as is.
func HalfUp(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(int32(decimals)).Float64()
	return f
}

// Conversion groups.
const (
	GroupClassification = "klassifikasjonsvariabel"
	GroupInteger        = "heltall"
	GroupOneDecimal     = "desimaltall_1_des"
	GroupTwoDecimals    = "desimaltall_2_des"
	GroupString         = "stringvar"
	GroupBool           = "bool_var"
)

// Group names the columns converted one way.
type Group struct {
	Name    string
	Columns []string
}

// Mapping is an ordered list of conversion groups.
type Mapping []Group

// UnmarshalYAML reads a mapping node keeping the order of its keys.
func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: conversion mapping must be a mapping", node.Line)
	}
	out := make(Mapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var cols []string
		if err := node.Content[i+1].Decode(&cols); err != nil {
			return fmt.Errorf("group %q: %w", node.Content[i].Value, err)
		}
		out = append(out, Group{Name: node.Content[i].Value, Columns: cols})
	}
	*m = out
	return nil
}

// LoadMapping reads a YAML conversion mapping.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return m, nil
}

// Result is the outcome of Convert.
type Result struct {
	Table    *table.Table
	Kinds    map[string]table.Kind
	Warnings []string
}

// Convert applies the mapping to a copy of t. Columns not named keep their
// kind. Unknown columns and groups are collected as warnings and skipped;
// the rest of the mapping is still applied. Values that are not numbers
// become missing in the rounded groups.
func Convert(t *table.Table, m Mapping, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := t.Clone()
	var warnings []string

	for _, g := range m {
		for _, col := range g.Columns {
			if !out.Has(col) {
				warnings = append(warnings, fmt.Sprintf("column %q does not exist in the table", col))
				continue
			}
			var err error
			switch g.Name {
			case GroupClassification:
				out, err = out.WithKind(col, table.Category)
			case GroupInteger:
				out, err = RoundColumn(out, col, 0, table.Int)
			case GroupOneDecimal:
				out, err = RoundColumn(out, col, 1, table.Float)
			case GroupTwoDecimals:
				out, err = RoundColumn(out, col, 2, table.Float)
			case GroupString:
				out = out.WithText(col)
			case GroupBool:
				out, err = out.WithKind(col, table.Bool)
			default:
				warnings = append(warnings, fmt.Sprintf("unknown group %q for column %q; nothing converted", g.Name, col))
			}
			if err != nil {
				return nil, fmt.Errorf("convert %q (%s): %w", col, g.Name, err)
			}
		}
	}

	for _, w := range warnings {
		logger.Warn(w)
	}
	kinds := make(map[string]table.Kind, out.Width())
	for _, n := range out.Names() {
		kinds[n] = out.Column(n).Kind
	}
	logger.Info("column kinds converted", "kinds", kinds)
	return &Result{Table: out, Kinds: kinds, Warnings: warnings}, nil
}

// RoundColumn rounds a numeric column half away from zero and stores it as
// kind (Int or Float).
func RoundColumn(t *table.Table, col string, decimals int, kind table.Kind) (*table.Table, error) {
	out := t.Clone()
	c := out.Column(col)
	if c == nil {
		return nil, fmt.Errorf("no column %q", col)
	}
	for i, v := range c.Values {
		f, ok := table.ToFloat(v)
		if !ok {
			s, isText := v.(string)
			if !isText {
				c.Values[i] = nil
				continue
			}
			parsed, err := table.Coerce(s, table.Float)
			if err != nil || parsed == nil {
				c.Values[i] = nil
				continue
			}
			f = parsed.(float64)
		}
		r := HalfUp(f, decimals)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			c.Values[i] = nil
			continue
		}
		if kind == table.Int {
			c.Values[i] = int64(r)
		} else {
			c.Values[i] = r
		}
	}
	c.Kind = kind
	return out, nil
}

// Instructions describes the conversion mapping format.
func Instructions() string {
	return `Conversion mapping (YAML). Columns not listed are left unchanged; unknown
columns produce a warning; groups may be empty.

klassifikasjonsvariabel: [var1, var2]   # classification (category)
heltall: [var3, var4]                   # round half away from zero to integer
desimaltall_1_des: [var5, var6]         # round to 1 decimal
desimaltall_2_des: [var7, var8]         # round to 2 decimals
stringvar: [var9, var10]                # text
bool_var: [var11, var12]                # boolean (1/0, true/false, yes/no)
`
}
