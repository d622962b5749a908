package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/intake/iox"
	"github.com/pithecene-io/intake/types"
)

// Scratch file naming. The extension is always the modern spreadsheet one;
// consumers sniff the real format.
const (
	ScratchPrefix   = "received_"
	ScratchExt      = ".xlsx"
	partPrefix      = ".received_"
	partExt         = ".part"
	scratchDirPerm  = 0o700
	scratchFilePerm = 0o600
)

// Stager copies Indirect bytes into the scratch directory.
// Safe for concurrent use: every call writes to its own destination.
type Stager struct {
	dir      string
	provider Provider
	now      func() time.Time
	seq      atomic.Uint64

	dirOnce sync.Once
	dirErr  error
}

// StagerOption configures a Stager.
type StagerOption func(*Stager)

// WithClock overrides the clock used for tokens and timestamps.
func WithClock(now func() time.Time) StagerOption {
	return func(s *Stager) {
		s.now = now
	}
}

// NewStager creates a Stager writing into dir and reading through provider.
// The directory is created lazily on first use.
func NewStager(dir string, provider Provider, opts ...StagerOption) (*Stager, error) {
	if dir == "" {
		return nil, errors.New("stager requires a scratch directory")
	}
	if provider == nil {
		return nil, errors.New("stager requires a content provider")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch dir %q: %w", dir, err)
	}

	s := &Stager{
		dir:      abs,
		provider: provider,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute scratch directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage copies the bytes behind addr into a new scratch file and returns it.
//
// On failure it returns a *StagingError and removes any partial file; the
// final received_<token>.xlsx name never exists unless the copy completed.
func (s *Stager) Stage(ctx context.Context, addr types.FileAddress) (*types.StagedFile, error) {
	if addr.Scheme != types.SchemeIndirect {
		return nil, &StagingError{Kind: StagingErrorOpen, Addr: addr, Err: ErrNotIndirect}
	}
	if err := s.ensureDir(); err != nil {
		return nil, &StagingError{Kind: StagingErrorCopy, Addr: addr, Err: err}
	}

	src, err := s.provider.Open(ctx, addr.Raw)
	if err != nil {
		return nil, &StagingError{Kind: StagingErrorOpen, Addr: addr, Err: err}
	}
	defer iox.DiscardClose(src)

	token := s.nextToken()
	finalPath := filepath.Join(s.dir, ScratchPrefix+token+ScratchExt)
	partPath := filepath.Join(s.dir, partPrefix+token+partExt)

	n, err := copyToPart(ctx, partPath, src)
	if err != nil {
		_ = os.Remove(partPath)
		return nil, &StagingError{Kind: StagingErrorCopy, Addr: addr, Err: err}
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		_ = os.Remove(partPath)
		return nil, &StagingError{Kind: StagingErrorCommit, Addr: addr, Err: err}
	}

	return &types.StagedFile{
		Path:                 finalPath,
		CreatedAtEpochMillis: s.now().UnixMilli(),
		Size:                 n,
	}, nil
}

// copyToPart writes src to a freshly created part file and syncs it.
// The part file handle is closed on every path.
func copyToPart(ctx context.Context, partPath string, src io.Reader) (int64, error) {
	f, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, scratchFilePerm)
	if err != nil {
		return 0, fmt.Errorf("create part file: %w", err)
	}

	n, err := io.Copy(f, &contextReader{ctx: ctx, r: src})
	if err != nil {
		iox.DiscardClose(f)
		return n, fmt.Errorf("copy after %d bytes: %w", n, err)
	}
	if err := f.Sync(); err != nil {
		iox.DiscardClose(f)
		return n, fmt.Errorf("sync part file: %w", err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close part file: %w", err)
	}
	return n, nil
}

// nextToken returns a token unique within this process:
// wall-clock milliseconds plus a monotonic sequence.
func (s *Stager) nextToken() string {
	ms := s.now().UnixMilli()
	seq := s.seq.Add(1)
	return strconv.FormatInt(ms, 10) + "-" + strconv.FormatUint(seq, 10)
}

func (s *Stager) ensureDir() error {
	s.dirOnce.Do(func() {
		s.dirErr = os.MkdirAll(s.dir, scratchDirPerm)
	})
	return s.dirErr
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
