package klass

import (
	"sort"
	"strconv"
)

// Path is one leaf of a hierarchical code list with its ancestors; index 0
// is level 1.
type Path []Code

// Code returns the code at level (1-based), empty when absent.
func (p Path) Code(level int) string {
	if level < 1 || level > len(p) {
		return ""
	}
	return p[level-1].Code
}

// Name returns the name at level (1-based), empty when absent.
func (p Path) Name(level int) string {
	if level < 1 || level > len(p) {
		return ""
	}
	return p[level-1].Name
}

func levelOf(c Code) int {
	n, err := strconv.Atoi(c.Level)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Levels returns the distinct levels present in codes, ascending.
func Levels(codes []Code) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range codes {
		l := levelOf(c)
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// PivotLevel turns a code list into one Path per deepest-level code, in list
// order, filling ancestors by following parent codes. A flat list yields one
// single-element path per code.
func PivotLevel(codes []Code) []Path {
	if len(codes) == 0 {
		return nil
	}
	deepest := 1
	byLevel := make(map[int]map[string]Code)
	for _, c := range codes {
		l := levelOf(c)
		if l > deepest {
			deepest = l
		}
		if byLevel[l] == nil {
			byLevel[l] = make(map[string]Code)
		}
		byLevel[l][c.Code] = c
	}

	var out []Path
	for _, c := range codes {
		if levelOf(c) != deepest {
			continue
		}
		p := make(Path, deepest)
		p[deepest-1] = c
		parent := c.ParentCode
		for l := deepest - 1; l >= 1 && parent != ""; l-- {
			pc, ok := byLevel[l][parent]
			if !ok {
				break
			}
			p[l-1] = pc
			parent = pc.ParentCode
		}
		out = append(out, p)
	}
	return out
}

// CodeNames maps every code at level to its name.
func CodeNames(paths []Path, level int) map[string]string {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		if c := p.Code(level); c != "" {
			if _, ok := out[c]; !ok {
				out[c] = p.Name(level)
			}
		}
	}
	return out
}
