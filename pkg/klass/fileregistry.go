package klass

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hazyhaar/kostra/pkg/table"
)

type snapshot struct {
	manifest *Manifest
	codes    []Code
	items    []CorrespondenceItem
}

// FileRegistry serves code lists and correspondences from a directory of
// snapshots, one sub-directory per snapshot holding a manifest.yaml and its
// data file. It satisfies Registry for offline runs and tests.
type FileRegistry struct {
	mu        sync.RWMutex
	dir       string
	snapshots []*snapshot
	logger    *slog.Logger
}

// NewFileRegistry creates an empty registry for dir; call Load before use.
func NewFileRegistry(dir string, logger *slog.Logger) *FileRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRegistry{dir: dir, logger: logger}
}

// Load scans the directory and loads every snapshot.
func (r *FileRegistry) Load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read snapshot dir %s: %w", r.dir, err)
	}

	var snaps []*snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.dir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "manifest.yaml")); err != nil {
			continue
		}
		s, err := loadSnapshot(dir)
		if err != nil {
			return fmt.Errorf("load snapshot %s: %w", entry.Name(), err)
		}
		snaps = append(snaps, s)
	}
	// Latest validity first so lookups pick the newest covering snapshot.
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].manifest.ValidFrom > snaps[j].manifest.ValidFrom
	})

	r.mu.Lock()
	r.snapshots = snaps
	r.mu.Unlock()
	r.logger.Info("klass snapshots loaded", "dir", r.dir, "count", len(snaps))
	return nil
}

// Reload reloads all snapshots from disk.
func (r *FileRegistry) Reload() error {
	return r.Load()
}

func loadSnapshot(dir string) (*snapshot, error) {
	m, err := LoadManifest(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, m.DataFile))
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	opts := table.ReadOptions{Encoding: m.Format.Encoding, NoInference: true}
	if d := m.Format.Delimiter; d != "" {
		opts.Delimiter = []rune(d)[0]
	}
	t, err := table.ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}

	cell := func(i int, field string) string {
		s, _ := t.Text(i, m.column(field))
		return s
	}
	s := &snapshot{manifest: m}
	switch m.Kind {
	case KindCodes:
		if !t.Has(m.column("code")) {
			return nil, fmt.Errorf("%s: no %q column", m.ID, m.column("code"))
		}
		for i := 0; i < t.Len(); i++ {
			s.codes = append(s.codes, Code{
				Code:       NormalizeCode(cell(i, "code")),
				ParentCode: NormalizeCode(cell(i, "parentCode")),
				Level:      cell(i, "level"),
				Name:       NormalizeName(cell(i, "name")),
				ValidFrom:  m.ValidFrom,
				ValidTo:    m.ValidTo,
			})
		}
	case KindCorrespondence:
		for _, field := range []string{"sourceCode", "targetCode"} {
			if !t.Has(m.column(field)) {
				return nil, fmt.Errorf("%s: no %q column", m.ID, m.column(field))
			}
		}
		for i := 0; i < t.Len(); i++ {
			s.items = append(s.items, CorrespondenceItem{
				SourceCode: NormalizeCode(cell(i, "sourceCode")),
				SourceName: NormalizeName(cell(i, "sourceName")),
				TargetCode: NormalizeCode(cell(i, "targetCode")),
				TargetName: NormalizeName(cell(i, "targetName")),
				ValidFrom:  m.ValidFrom,
				ValidTo:    m.ValidTo,
			})
		}
	}
	return s, nil
}

func (r *FileRegistry) find(match func(*Manifest) bool, date string) *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.snapshots {
		if match(s.manifest) && s.manifest.covers(date) {
			return s
		}
	}
	return nil
}

// Codes returns the code list of the newest snapshot covering q.From.
func (r *FileRegistry) Codes(_ context.Context, classification int, q Query) ([]Code, error) {
	s := r.find(func(m *Manifest) bool {
		return m.Kind == KindCodes && m.Classification == classification
	}, q.From)
	if s == nil {
		return nil, fmt.Errorf("%w: classification %d at %s", ErrNotFound, classification, q.From)
	}
	out := make([]Code, 0, len(s.codes))
	for _, c := range s.codes {
		if q.SelectLevel > 0 && levelOf(c) != q.SelectLevel {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Correspondence returns the items of the newest snapshot covering q.From.
func (r *FileRegistry) Correspondence(_ context.Context, source, target int, q Query) ([]CorrespondenceItem, error) {
	s := r.find(func(m *Manifest) bool {
		return m.Kind == KindCorrespondence && m.Classification == source && m.Target == target
	}, q.From)
	if s == nil {
		return nil, fmt.Errorf("%w: correspondence %d -> %d at %s", ErrNotFound, source, target, q.From)
	}
	out := make([]CorrespondenceItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

// SnapshotInfo is the public metadata of a loaded snapshot.
type SnapshotInfo struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Classification int    `json:"classification"`
	Target         int    `json:"target,omitempty"`
	ValidFrom      string `json:"valid_from"`
	ValidTo        string `json:"valid_to,omitempty"`
	Rows           int    `json:"rows"`
}

// Snapshots lists loaded snapshots sorted by id.
func (r *FileRegistry) Snapshots() []SnapshotInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SnapshotInfo, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		m := s.manifest
		out = append(out, SnapshotInfo{
			ID:             m.ID,
			Kind:           m.Kind,
			Classification: m.Classification,
			Target:         m.Target,
			ValidFrom:      m.ValidFrom,
			ValidTo:        m.ValidTo,
			Rows:           len(s.codes) + len(s.items),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
