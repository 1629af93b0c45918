// Package store persists a named collection of validated records as one JSON
// array per file.
//
// Invalid content is reset to an empty array by default so that dependent
// pages keep rendering; WithStrict(true) turns that into a CorruptError instead.
//
// Access is serialized within a process by a per-path mutex and across
// processes by an advisory lock on a sidecar <path>.lock file.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Record is an element of a collection. Validate plays the role of the schema.
type Record interface {
	Validate() error
}

// ErrCorrupt is matched by errors.Is for every CorruptError.
var ErrCorrupt = errors.New("collection is corrupt")

// StorageError reports an I/O failure other than a missing file.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CorruptError is returned in strict mode instead of resetting the file.
type CorruptError struct {
	Path   string
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("store %s: %s", e.Path, e.Reason)
}

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// Option configures a Collection.
type Option func(*options)

type options struct {
	strict     bool
	maxRecords int
	logger     *slog.Logger
}

// WithStrict makes Load fail with a CorruptError rather than reset invalid content.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithMaxRecords treats a collection holding more than n records as invalid.
func WithMaxRecords(n int) Option {
	return func(o *options) { o.maxRecords = n }
}

// WithLogger sets the logger used to report repairs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Collection is a file-backed JSON array of T.
type Collection[T Record] struct {
	path string
	mu   *sync.Mutex
	opts options
}

// Open returns a collection stored at path. The file is not touched until the
// first Load or Save.
func Open[T Record](path string, opts ...Option) (*Collection[T], error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{path: abs, mu: lockFor(abs), opts: o}, nil
}

// Path returns the absolute file path.
func (c *Collection[T]) Path() string { return c.path }

// Load returns every record, or an empty slice when the file is missing, blank
// or (in lenient mode) invalid.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.load(ctx)
}

// Save overwrites the collection with records.
func (c *Collection[T]) Save(ctx context.Context, records []T) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return c.save(ctx, records)
}

// Update runs fn over the current records and saves its result, holding the
// path lock for the whole cycle. Nothing is written when fn fails.
func (c *Collection[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) ([]T, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	records, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(records)
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// lock takes the in-process mutex for the path and then the advisory lock on
// <path>.lock, which other processes using this package also honor.
func (c *Collection[T]) lock(ctx context.Context) (func(), error) {
	c.mu.Lock()
	if err := c.ensureDir(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	fl, err := acquireFileLock(ctx, c.path+".lock")
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return func() {
		fl.release()
		c.mu.Unlock()
	}, nil
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.ensureDir(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := c.writeFile([]byte("[]\n")); err != nil {
			return nil, err
		}
		return []T{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Path: c.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}

	records, reason := c.decode(data)
	if reason == "" {
		return records, nil
	}

	if c.opts.strict {
		c.opts.logger.Error("collection is corrupt", "path", c.path, "reason", reason)
		return nil, &CorruptError{Path: c.path, Reason: reason}
	}
	c.opts.logger.Warn("collection is corrupt, resetting to empty", "path", c.path, "reason", reason)
	if err := c.writeFile([]byte("[]\n")); err != nil {
		return nil, err
	}
	return []T{}, nil
}

// decode returns the records or a non-empty reason describing why they are invalid.
func (c *Collection[T]) decode(data []byte) ([]T, string) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Sprintf("top-level value is not a JSON array: %v", err)
	}
	if raw == nil {
		return nil, "top-level value is null"
	}
	if c.opts.maxRecords > 0 && len(raw) > c.opts.maxRecords {
		return nil, fmt.Sprintf("holds %d records, at most %d allowed", len(raw), c.opts.maxRecords)
	}

	records := make([]T, 0, len(raw))
	for i, item := range raw {
		var rec T
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Sprintf("record %d: %v", i, err)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Sprintf("record %d: %v", i, err)
		}
		records = append(records, rec)
	}
	return records, ""
}

func (c *Collection[T]) save(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ensureDir(); err != nil {
		return err
	}
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	return c.writeFile(append(data, '\n'))
}

func (c *Collection[T]) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: filepath.Dir(c.path), Err: err}
	}
	return nil
}

// writeFile replaces the file through a temp file and rename in the same directory.
func (c *Collection[T]) writeFile(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(c.path), "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return &StorageError{Op: "write", Path: c.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: c.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "sync", Path: c.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: c.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "chmod", Path: c.path, Err: err}
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "rename", Path: c.path, Err: err}
	}
	return nil
}

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

// lockFor returns the process-wide mutex for an absolute path, so two
// Collections opened on the same file still serialize.
func lockFor(path string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	mu, ok := locks[path]
	if !ok {
		mu = &sync.Mutex{}
		locks[path] = mu
	}
	return mu
}
