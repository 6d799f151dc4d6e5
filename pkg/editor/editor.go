// Package editor applies controlled, logged cell edits to a KOSTRA table.
//
// The workflow is strict: narrow the table with an exact-match filter on the
// classification variables, then commit edits to one statistical column of
// the matched rows with a reason. The input table is never modified; every
// changed cell is recorded in the change log.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

// MaxEditRows is the largest filtered slice that may be edited.
const MaxEditRows = 250

// RowIDColumn is the row id column added to selection previews.
const RowIDColumn = "__row_id__"

var (
	ErrNoMatch        = errors.New("no rows matched")
	ErrTooManyRows    = errors.New("too many rows matched")
	ErrNothingToEdit  = errors.New("nothing to edit; apply a filter first")
	ErrReasonRequired = errors.New("reason is required")
	ErrNoRows         = errors.New("no rows selected")
	ErrEmptyValue     = errors.New("new value is empty; give a value or set missing")
)

// Change is one edited cell.
type Change struct {
	ID      string            `json:"id"`
	Session string            `json:"session"`
	Time    time.Time         `json:"timestamp"`
	User    string            `json:"user"`
	RowID   int               `json:"row_id"`
	Column  string            `json:"column"`
	Old     any               `json:"old_value"`
	New     any               `json:"new_value"`
	Reason  string            `json:"reason"`
	Keys    map[string]string `json:"keys"`
}

// Edit is one commit: a single column over the selected rows.
type Edit struct {
	Column string
	// Value is parsed according to the column kind.
	Value      string
	SetMissing bool
	// All applies the edit to every matched row; otherwise Rows lists the
	// row ids to edit, all of which must be in the current selection.
	All    bool
	Rows   []int
	Reason string
}

// Selection is the result of a filter.
type Selection struct {
	RowIDs  []int
	Filters []string
	// Table holds the matched rows with RowIDColumn first.
	Table *table.Table
}

// Option configures an Editor.
type Option func(*Editor)

// WithStore persists every committed change to s.
func WithStore(s *LogStore) Option { return func(e *Editor) { e.store = s } }

// WithUser overrides the user recorded in changes.
func WithUser(name string) Option { return func(e *Editor) { e.user = name } }

// WithClock overrides the change timestamps.
func WithClock(now func() time.Time) Option { return func(e *Editor) { e.now = now } }

// Editor holds the working copy, the current selection and the change log.
type Editor struct {
	work    *table.Table
	vars    kostra.Variables
	slice   []int
	changes []Change
	session string
	user    string
	now     func() time.Time
	store   *LogStore
	logger  *slog.Logger
}

// New starts an editing session over a copy of t. The classification
// variables are resolved through o.
func New(t *table.Table, o kostra.Options, opts ...Option) (*Editor, error) {
	_, vars, err := kostra.Define(t, o)
	if err != nil {
		return nil, err
	}
	e := &Editor{
		work:    t.Clone(),
		vars:    vars,
		session: uuid.NewString(),
		now:     time.Now,
		logger:  o.Log(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.user == "" {
		e.user = currentUser()
	}
	return e, nil
}

// Session returns the id shared by every change of this editor.
func (e *Editor) Session() string { return e.session }

// Variables returns the classification and statistical variables.
func (e *Editor) Variables() kostra.Variables { return e.vars }

// Filter selects the rows whose classification variables equal the given
// values exactly; empty values are ignored and the conditions are ANDed. A
// selection larger than MaxEditRows is returned with ErrTooManyRows and
// blocks editing until narrowed.
func (e *Editor) Filter(filters map[string]string) (*Selection, error) {
	e.slice = nil

	keys := make([]string, 0, len(filters))
	for k := range filters {
		if !e.vars.IsClassification(k) {
			return nil, fmt.Errorf("%q is not a classification variable; filter on one of %v", k, e.vars.Classification)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var desc []string
	want := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(filters[k]); v != "" {
			want[k] = v
			desc = append(desc, k+" == "+v)
		}
	}

	var ids []int
	for i := 0; i < e.work.Len(); i++ {
		ok := true
		for k, v := range want {
			if s, present := e.work.Text(i, k); !present || s != v {
				ok = false
				break
			}
		}
		if ok {
			ids = append(ids, i)
		}
	}

	sel := &Selection{RowIDs: ids, Filters: desc}
	switch {
	case len(ids) == 0:
		return sel, ErrNoMatch
	case len(ids) > MaxEditRows:
		return sel, fmt.Errorf("%w: matched %d rows, narrow to at most %d", ErrTooManyRows, len(ids), MaxEditRows)
	}

	preview, err := e.preview(ids)
	if err != nil {
		return nil, err
	}
	sel.Table = preview
	e.slice = ids
	e.logger.Info("rows matched", "rows", len(ids), "filters", strings.Join(desc, " AND "))
	return sel, nil
}

func (e *Editor) preview(ids []int) (*table.Table, error) {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = int64(id)
	}
	return e.work.Take(ids).InsertColumn(0, &table.Column{Name: RowIDColumn, Kind: table.Int, Values: vals})
}

// Commit applies edit to the current selection and returns the cells that
// changed. Cells already holding the new value are skipped.
func (e *Editor) Commit(ctx context.Context, edit Edit) ([]Change, error) {
	if len(e.slice) == 0 {
		return nil, ErrNothingToEdit
	}
	reason := strings.TrimSpace(edit.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	col := e.work.Column(edit.Column)
	if col == nil || e.vars.IsClassification(edit.Column) {
		return nil, fmt.Errorf("%q is not a statistical variable; edit one of %v", edit.Column, e.vars.Statistical)
	}

	targets, err := e.targets(edit)
	if err != nil {
		return nil, err
	}
	value, err := parseValue(col, edit.Value, edit.SetMissing)
	if err != nil {
		return nil, err
	}

	var changed []Change
	for _, id := range targets {
		old := e.work.Get(id, edit.Column)
		if old == value {
			continue
		}
		keys := make(map[string]string, len(e.vars.Classification))
		for _, k := range e.vars.Classification {
			keys[k], _ = e.work.Text(id, k)
		}
		changed = append(changed, Change{
			ID:      uuid.NewString(),
			Session: e.session,
			Time:    e.now(),
			User:    e.user,
			RowID:   id,
			Column:  edit.Column,
			Old:     old,
			New:     value,
			Reason:  reason,
			Keys:    keys,
		})
	}

	if len(changed) == 0 {
		e.logger.Warn("no changes applied", "column", edit.Column, "rows", len(targets))
		return nil, nil
	}
	if e.store != nil {
		if err := e.store.Append(ctx, changed); err != nil {
			return nil, err
		}
	}
	for _, c := range changed {
		if err := e.work.Set(c.RowID, c.Column, c.New); err != nil {
			return nil, err
		}
	}
	e.changes = append(e.changes, changed...)
	e.logger.Info("changes committed", "column", edit.Column, "cells", len(changed), "user", e.user)
	return changed, nil
}

func (e *Editor) targets(edit Edit) ([]int, error) {
	if edit.All {
		return append([]int(nil), e.slice...), nil
	}
	if len(edit.Rows) == 0 {
		return nil, ErrNoRows
	}
	inSlice := make(map[int]bool, len(e.slice))
	for _, id := range e.slice {
		inSlice[id] = true
	}
	for _, id := range edit.Rows {
		if !inSlice[id] {
			return nil, fmt.Errorf("row %d is not in the current selection", id)
		}
	}
	return edit.Rows, nil
}

// parseValue converts the typed text to the kind of col.
func parseValue(col *table.Column, raw string, setMissing bool) (any, error) {
	if setMissing {
		return nil, nil
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyValue
	}
	v, err := table.Coerce(text, col.Kind)
	if err != nil {
		return nil, fmt.Errorf("%q is not a valid %s for column %q", text, col.Kind, col.Name)
	}
	return v, nil
}

// Results returns a copy of the edited table and of the change log.
func (e *Editor) Results() (*table.Table, []Change) {
	return e.work.Clone(), append([]Change(nil), e.changes...)
}

// ChangesTable lays out changes one row per cell, with the classification
// keys as id_<name> columns in the order of keys.
func ChangesTable(changes []Change, keys []string) *table.Table {
	n := len(changes)
	ts := make([]any, n)
	users := make([]any, n)
	rows := make([]any, n)
	cols := make([]any, n)
	olds := make([]any, n)
	news := make([]any, n)
	reasons := make([]any, n)
	for i, c := range changes {
		ts[i] = c.Time.Format(time.RFC3339)
		users[i] = c.User
		rows[i] = int64(c.RowID)
		cols[i] = c.Column
		olds[i] = nullable(c.Old)
		news[i] = nullable(c.New)
		reasons[i] = c.Reason
	}
	t := table.New().
		MustAdd("timestamp", table.Text, ts...).
		MustAdd("user", table.Text, users...).
		MustAdd("row_id", table.Int, rows...).
		MustAdd("column", table.Text, cols...).
		MustAdd("old_value", table.Text, olds...).
		MustAdd("new_value", table.Text, news...).
		MustAdd("reason", table.Text, reasons...)
	for _, k := range keys {
		vals := make([]any, n)
		for i, c := range changes {
			vals[i] = c.Keys[k]
		}
		t.MustAdd("id_"+k, table.Text, vals...)
	}
	return t
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
