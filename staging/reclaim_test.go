package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAged(t *testing.T, dir, name string, size int, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func TestReclaim(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	fresh := now.Add(-time.Minute)

	oldStaged := writeAged(t, dir, "received_1-1.xlsx", 10, old)
	freshStaged := writeAged(t, dir, "received_2-2.xlsx", 10, fresh)
	oldPart := writeAged(t, dir, ".received_3-3.part", 4, old)
	freshPart := writeAged(t, dir, ".received_4-4.part", 4, fresh)
	foreign := writeAged(t, dir, "notes.txt", 1, old)

	res, err := Reclaim(dir, 24*time.Hour, now)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}

	if res.Removed != 1 || res.RemovedParts != 1 || res.Kept != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.FreedBytes != 14 {
		t.Errorf("FreedBytes = %d, want 14", res.FreedBytes)
	}

	for _, gone := range []string{oldStaged, oldPart} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("expected %s removed", filepath.Base(gone))
		}
	}
	for _, kept := range []string{freshStaged, freshPart, foreign} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("expected %s kept: %v", filepath.Base(kept), err)
		}
	}
}

func TestReclaim_MissingDir(t *testing.T) {
	res, err := Reclaim(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Now())
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if res != (ReclaimResult{}) {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestListScratch(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeAged(t, dir, "received_2-1.xlsx", 3, now.Add(-time.Minute))
	writeAged(t, dir, "received_1-1.xlsx", 5, now.Add(-time.Hour))
	writeAged(t, dir, ".received_3-1.part", 1, now)
	writeAged(t, dir, "other.xlsx", 1, now)

	files, err := ListScratch(dir)
	if err != nil {
		t.Fatalf("ListScratch: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 scratch files, got %d: %+v", len(files), files)
	}
	if files[0].Name != "received_1-1.xlsx" || files[1].Name != "received_2-1.xlsx" {
		t.Errorf("unexpected order: %s, %s", files[0].Name, files[1].Name)
	}
	if files[0].Size != 5 {
		t.Errorf("Size = %d, want 5", files[0].Size)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	files := []ScratchFile{
		{Name: "received_1-1.xlsx", Size: 100, ModifiedAt: now.Add(-72 * time.Hour)},
		{Name: "received_2-2.xlsx", Size: 30, ModifiedAt: now.Add(-25 * time.Hour)},
		{Name: "received_3-3.xlsx", Size: 7, ModifiedAt: now.Add(-time.Hour)},
	}

	got := Summarize("/cache/scratch", files, 24*time.Hour, now)
	want := ScratchSummary{Dir: "/cache/scratch", Files: 3, Stale: 2, TotalBytes: 137, StaleBytes: 130}
	if got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}

	if empty := Summarize("d", nil, time.Hour, now); empty != (ScratchSummary{Dir: "d"}) {
		t.Errorf("empty summary = %+v", empty)
	}
}
