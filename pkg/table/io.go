package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DefaultSheet is the worksheet written by WriteXLSX.
const DefaultSheet = "Sheet1"

// ReadOptions controls how delimited and spreadsheet files become tables.
type ReadOptions struct {
	Delimiter   rune     // CSV only; default ','
	Encoding    string   // CSV only; e.g. "windows-1252", empty means UTF-8
	Sheet       string   // XLSX only; default first sheet
	TextColumns []string // never inferred as numbers
	NoInference bool     // keep every column as text
}

// ReadFile reads a .csv or .xlsx file.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		t, err := ReadCSV(f, opts)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return t, nil
	case ".xlsx":
		return ReadXLSX(path, opts)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// WriteFile writes t as .csv (comma separated, UTF-8) or .xlsx.
func WriteFile(path string, t *Table) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := WriteCSV(f, t, ','); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case ".xlsx":
		return WriteXLSX(path, t)
	default:
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads a delimited file with a header row.
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	if enc := opts.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: no header")
	}
	return fromRecords(records[0], records[1:], opts)
}

// WriteCSV writes t with a header row. Missing cells are empty.
func WriteCSV(w io.Writer, t *Table, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(t.cols))
	for i := 0; i < t.rows; i++ {
		for j, c := range t.cols {
			rec[j] = FormatValue(c.Values[i])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadXLSX reads one worksheet whose first row is the header.
func ReadXLSX(path string, opts ReadOptions) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: no worksheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", path, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheet)
	}
	return fromRecords(rows[0], rows[1:], opts)
}

// WriteXLSX writes t to the first worksheet of a new workbook.
func WriteXLSX(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(t.cols))
	for j, c := range t.cols {
		header[j] = c.Name
	}
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < t.rows; i++ {
		row := make([]any, len(t.cols))
		for j, c := range t.cols {
			row[j] = c.Values[i]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// leadingZero matches codes such as "0301" that must stay text.
var leadingZero = regexp.MustCompile(`^[+-]?0\d`)

func fromRecords(header []string, rows [][]string, opts ReadOptions) (*Table, error) {
	forceText := make(map[string]bool, len(opts.TextColumns))
	for _, n := range opts.TextColumns {
		forceText[n] = true
	}

	t := New()
	for j, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		raw := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				raw[i] = strings.TrimSpace(r[j])
			}
		}
		kind := Text
		if !opts.NoInference && !forceText[name] {
			kind = inferKind(raw)
		}
		vals := make([]any, len(raw))
		for i, s := range raw {
			if s == "" {
				continue
			}
			v, err := Coerce(s, kind)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
			}
			vals[i] = v
		}
		if err := t.AddColumn(name, kind, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func inferKind(vals []string) Kind {
	allInt, allFloat, allBool, seen := true, true, true, false
	for _, s := range vals {
		if s == "" {
			continue
		}
		seen = true
		if leadingZero.MatchString(s) {
			return Text
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
		}
		switch strings.ToLower(s) {
		case "true", "false":
		default:
			allBool = false
		}
	}
	switch {
	case !seen:
		return Text
	case allInt:
		return Int
	case allFloat:
		return Float
	case allBool:
		return Bool
	}
	return Text
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}

// Fprint writes up to limit rows of t as an aligned preview; limit <= 0 prints all.
func Fprint(w io.Writer, t *Table, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Names(), "\t"))
	n := t.rows
	if limit > 0 && limit < n {
		n = limit
	}
	rec := make([]string, len(t.cols))
	for i := 0; i < n; i++ {
		for j, c := range t.cols {
			if c.Values[i] == nil {
				rec[j] = "<NA>"
			} else {
				rec[j] = FormatValue(c.Values[i])
			}
		}
		fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	if n < t.rows {
		fmt.Fprintf(tw, "... %d more rows\n", t.rows-n)
	}
	return tw.Flush()
}
