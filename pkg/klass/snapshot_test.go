package klass

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSnapshot_RoundTrip(t *testing.T) {
	src := loadTestRegistry(t)
	ctx := context.Background()
	root := t.TempDir()

	m, err := WriteSnapshot(ctx, src, root, SnapshotRequest{Kind: KindCodes, Classification: 131, Year: "2024"})
	if err != nil {
		t.Fatalf("WriteSnapshot codes: %v", err)
	}
	if m.ID != "codes-131-2024" || m.ValidFrom != "2024-01-01" || m.ValidTo != "2024-12-31" {
		t.Errorf("manifest = %+v", m)
	}
	if _, err := os.Stat(filepath.Join(root, m.ID, "manifest.yaml")); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if _, err := WriteSnapshot(ctx, src, root, SnapshotRequest{
		ID: "kf", Kind: KindCorrespondence, Classification: 131, Target: 104, Year: "2024",
	}); err != nil {
		t.Fatalf("WriteSnapshot correspondence: %v", err)
	}

	r := NewFileRegistry(root, nil)
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	codes, err := r.Codes(ctx, 131, YearQuery("2024"))
	if err != nil {
		t.Fatalf("Codes: %v", err)
	}
	if len(codes) != 3 || codes[2].Code != "4601" || codes[2].Name != "Bergen" {
		t.Errorf("codes = %+v", codes)
	}
	items, err := r.Correspondence(ctx, 131, 104, YearQuery("2024"))
	if err != nil {
		t.Fatalf("Correspondence: %v", err)
	}
	if len(items) != 1 || items[0].TargetCode != "03" {
		t.Errorf("items = %+v", items)
	}
}

func TestWriteSnapshot_Errors(t *testing.T) {
	src := loadTestRegistry(t)
	ctx := context.Background()

	if _, err := WriteSnapshot(ctx, src, t.TempDir(), SnapshotRequest{Kind: "tree", Classification: 131, Year: "2024"}); err == nil {
		t.Error("unknown kind should fail")
	}
	_, err := WriteSnapshot(ctx, src, t.TempDir(), SnapshotRequest{Kind: KindCodes, Classification: 999, Year: "2024"})
	if !IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}
