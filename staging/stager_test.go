package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/intake/types"
)

// spySource is a ReadCloser that records Close and can fail mid-read.
type spySource struct {
	data    []byte
	pos     int
	failAt  int // fail once pos reaches failAt; -1 disables
	failErr error
	mu      sync.Mutex
	closed  bool
}

func newSpySource(data []byte) *spySource {
	return &spySource{data: data, failAt: -1}
}

func (s *spySource) Read(p []byte) (int, error) {
	if s.failAt >= 0 && s.pos >= s.failAt {
		return 0, s.failErr
	}
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	end := len(s.data)
	if s.failAt >= 0 && s.failAt < end {
		end = s.failAt
	}
	n := copy(p, s.data[s.pos:end])
	s.pos += n
	return n, nil
}

func (s *spySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *spySource) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func staticProvider(src io.ReadCloser) Provider {
	return ProviderFunc(func(context.Context, string) (io.ReadCloser, error) {
		return src, nil
	})
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStage_CopiesBytesExactly(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("0123456789")
	src := newSpySource(payload)

	s, err := NewStager(dir, staticProvider(src))
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}

	staged, err := s.Stage(t.Context(), types.Indirect("content://provider/sheet"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	if !strings.HasSuffix(staged.Path, ".xlsx") {
		t.Errorf("expected .xlsx suffix, got %q", staged.Path)
	}
	if !strings.HasPrefix(filepath.Base(staged.Path), ScratchPrefix) {
		t.Errorf("expected %s prefix, got %q", ScratchPrefix, staged.Path)
	}
	if filepath.Dir(staged.Path) != s.Dir() {
		t.Errorf("staged outside scratch dir: %q", staged.Path)
	}
	if staged.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", staged.Size, len(payload))
	}
	if staged.CreatedAtEpochMillis <= 0 {
		t.Errorf("CreatedAtEpochMillis not set: %d", staged.CreatedAtEpochMillis)
	}

	got, err := os.ReadFile(staged.Path)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("staged content = %q, want %q", got, payload)
	}
	if !src.wasClosed() {
		t.Error("source stream was not closed")
	}

	names := dirEntries(t, dir)
	if len(names) != 1 {
		t.Errorf("expected only the staged file in scratch dir, got %v", names)
	}
}

func TestStage_OpenFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	openErr := errors.New("permission denied")
	provider := ProviderFunc(func(context.Context, string) (io.ReadCloser, error) {
		return nil, openErr
	})

	s, err := NewStager(dir, provider)
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}

	staged, err := s.Stage(t.Context(), types.Indirect("content://provider/sheet"))
	if staged != nil {
		t.Fatalf("expected no staged file, got %+v", staged)
	}

	var stagingErr *StagingError
	if !errors.As(err, &stagingErr) {
		t.Fatalf("expected *StagingError, got %T: %v", err, err)
	}
	if stagingErr.Kind != StagingErrorOpen {
		t.Errorf("Kind = %v, want %v", stagingErr.Kind, StagingErrorOpen)
	}
	if !errors.Is(err, openErr) {
		t.Error("expected error to wrap provider error")
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected empty scratch dir, got %v", names)
	}
}

func TestStage_MidReadFailureRemovesPartial(t *testing.T) {
	dir := t.TempDir()
	readErr := errors.New("connection reset")
	src := newSpySource([]byte("0123456789"))
	src.failAt = 4
	src.failErr = readErr

	s, err := NewStager(dir, staticProvider(src))
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}

	staged, err := s.Stage(t.Context(), types.Indirect("content://provider/sheet"))
	if staged != nil {
		t.Fatalf("expected no staged file, got %+v", staged)
	}

	var stagingErr *StagingError
	if !errors.As(err, &stagingErr) {
		t.Fatalf("expected *StagingError, got %T: %v", err, err)
	}
	if stagingErr.Kind != StagingErrorCopy {
		t.Errorf("Kind = %v, want %v", stagingErr.Kind, StagingErrorCopy)
	}
	if !errors.Is(err, readErr) {
		t.Error("expected error to wrap read error")
	}
	if !src.wasClosed() {
		t.Error("source stream was not closed on failure")
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected no files after failed copy, got %v", names)
	}
}

func TestStage_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStager(dir, staticProvider(newSpySource([]byte("data"))))
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = s.Stage(ctx, types.Indirect("content://provider/sheet"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !IsStagingError(err) {
		t.Error("expected a staging error")
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected no files after canceled copy, got %v", names)
	}
}

func TestStage_RejectsDirectAddress(t *testing.T) {
	s, err := NewStager(t.TempDir(), staticProvider(newSpySource(nil)))
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}

	_, err = s.Stage(t.Context(), types.Direct("/data/report.xlsx"))
	if !errors.Is(err, ErrNotIndirect) {
		t.Fatalf("expected ErrNotIndirect, got %v", err)
	}
}

func TestStage_CreatesPrivateScratchDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "intake")
	s, err := NewStager(dir, staticProvider(newSpySource([]byte("x"))))
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}

	if _, err := s.Stage(t.Context(), types.Indirect("content://provider/sheet")); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat scratch dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != scratchDirPerm {
		t.Errorf("scratch dir perm = %o, want %o", perm, scratchDirPerm)
	}
}

func TestStage_ConcurrentCallsNeverCollide(t *testing.T) {
	dir := t.TempDir()
	// A frozen clock forces every token to share the same millisecond.
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := ProviderFunc(func(_ context.Context, raw string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(raw)), nil
	})

	s, err := NewStager(dir, provider, WithClock(func() time.Time { return frozen }))
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}

	const n = 32
	paths := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			staged, err := s.Stage(context.Background(), types.Indirect(fmt.Sprintf("content://provider/%d", i)))
			if err != nil {
				errs[i] = err
				return
			}
			paths[i] = staged.Path
		}()
	}
	wg.Wait()

	seen := make(map[string]int, n)
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("stage %d: %v", i, errs[i])
		}
		if prev, dup := seen[paths[i]]; dup {
			t.Fatalf("calls %d and %d wrote to the same path %q", prev, i, paths[i])
		}
		seen[paths[i]] = i

		got, err := os.ReadFile(paths[i])
		if err != nil {
			t.Fatalf("read %q: %v", paths[i], err)
		}
		if want := fmt.Sprintf("content://provider/%d", i); string(got) != want {
			t.Errorf("file %d content = %q, want %q", i, got, want)
		}
	}
}

func TestNewStager_Validation(t *testing.T) {
	if _, err := NewStager("", staticProvider(newSpySource(nil))); err == nil {
		t.Error("expected error for empty dir")
	}
	if _, err := NewStager(t.TempDir(), nil); err == nil {
		t.Error("expected error for nil provider")
	}
}

func TestStagingError_Message(t *testing.T) {
	err := &StagingError{
		Kind: StagingErrorCopy,
		Addr: types.Indirect("content://p/x"),
		Err:  errors.New("boom"),
	}
	want := `staging copy failed for "content://p/x": boom`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
