package klass

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/kostra/pkg/table"
)

// SnapshotRequest names one code list or correspondence to save for a year.
type SnapshotRequest struct {
	ID             string
	Kind           string
	Classification int
	Target         int
	Year           string
	Language       string
}

// WriteSnapshot fetches the data for req from reg and writes it under
// root/<req.ID> as manifest.yaml and data.csv, ready for FileRegistry.
func WriteSnapshot(ctx context.Context, reg Registry, root string, req SnapshotRequest) (*Manifest, error) {
	q := YearQuery(req.Year)
	q.Language = req.Language
	if req.ID == "" {
		req.ID = defaultSnapshotID(req)
	}

	var t *table.Table
	switch req.Kind {
	case KindCodes:
		codes, err := reg.Codes(ctx, req.Classification, q)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", req.ID, err)
		}
		t = codesTable(codes)
	case KindCorrespondence:
		items, err := reg.Correspondence(ctx, req.Classification, req.Target, q)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", req.ID, err)
		}
		t = itemsTable(items)
	default:
		return nil, fmt.Errorf("snapshot %s: unknown kind %q", req.ID, req.Kind)
	}

	dir := filepath.Join(root, req.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	m := &Manifest{
		ID:             req.ID,
		Kind:           req.Kind,
		Classification: req.Classification,
		Target:         req.Target,
		ValidFrom:      q.From,
		ValidTo:        q.To,
		Source:         "klass",
		DataFile:       "data.csv",
		Format:         FormatSpec{Delimiter: ";", Encoding: "utf-8"},
	}

	f, err := os.Create(filepath.Join(dir, m.DataFile))
	if err != nil {
		return nil, fmt.Errorf("create data file: %w", err)
	}
	if err := table.WriteCSV(f, t, ';'); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := writeManifest(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

func defaultSnapshotID(req SnapshotRequest) string {
	if req.Kind == KindCorrespondence {
		return fmt.Sprintf("corr-%d-%d-%s", req.Classification, req.Target, req.Year)
	}
	return fmt.Sprintf("codes-%d-%s", req.Classification, req.Year)
}

func codesTable(codes []Code) *table.Table {
	n := len(codes)
	code, parent, level, name := make([]any, n), make([]any, n), make([]any, n), make([]any, n)
	for i, c := range codes {
		code[i], parent[i], level[i], name[i] = c.Code, c.ParentCode, c.Level, c.Name
	}
	return table.New().
		MustAdd("code", table.Text, code...).
		MustAdd("parentCode", table.Text, parent...).
		MustAdd("level", table.Text, level...).
		MustAdd("name", table.Text, name...)
}

func itemsTable(items []CorrespondenceItem) *table.Table {
	n := len(items)
	sc, sn, tc, tn := make([]any, n), make([]any, n), make([]any, n), make([]any, n)
	for i, it := range items {
		sc[i], sn[i], tc[i], tn[i] = it.SourceCode, it.SourceName, it.TargetCode, it.TargetName
	}
	return table.New().
		MustAdd("sourceCode", table.Text, sc...).
		MustAdd("sourceName", table.Text, sn...).
		MustAdd("targetCode", table.Text, tc...).
		MustAdd("targetName", table.Text, tn...)
}

// writeManifest writes m as YAML to dir/manifest.yaml.
func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "manifest.yaml"), data, 0o644)
}
