// Package document implements one open editing session bound to a file.
//
// A Document owns its parameter set exclusively. Every read, mutation and
// persistence call is handed to a single goroutine through one request
// channel and runs to completion before the next one starts, so callers on
// different goroutines never interleave on the same document.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/micro-nova/slidered/internal/codec"
	"github.com/micro-nova/slidered/internal/models"
	"github.com/micro-nova/slidered/internal/storage"
)

// Document is an open parameter file.
type Document struct {
	uri string
	fs  storage.FS

	reqs     chan func()
	quit     chan struct{}
	loaded   chan struct{}
	disposed atomic.Bool
	once     sync.Once

	// Owned by the run goroutine.
	loadErr      error
	params       *models.Params
	version      uint64 // bumped by every accepted edit or reload
	savedVersion uint64 // version last known to match the backing file
	savedBytes   []byte // content last read from or written to the backing file
}

// Snapshot is a copy of a document's state at one point in its request order.
type Snapshot struct {
	Params  *models.Params
	Dirty   bool
	Version uint64
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	backup string
}

// FromBackup restores the content from a backup written by Backup. The
// document stays bound to its own URI and starts dirty.
func FromBackup(uri string) Option {
	return func(o *openOptions) { o.backup = uri }
}

// Open returns a document bound to uri and starts decoding it in the
// background. Requests made before decoding finishes wait for it; use Loaded
// to learn whether it succeeded.
func Open(ctx context.Context, fs storage.FS, uri string, opts ...Option) *Document {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	d := &Document{
		uri:    uri,
		fs:     fs,
		reqs:   make(chan func()),
		quit:   make(chan struct{}),
		loaded: make(chan struct{}),
		params: models.NewParams(),
	}
	go d.run(ctx, o)
	return d
}

// URI returns the file identity the document is bound to.
func (d *Document) URI() string { return d.uri }

// Disposed reports whether Dispose has been called.
func (d *Document) Disposed() bool { return d.disposed.Load() }

// Loaded blocks until the initial decode finished and returns its error.
func (d *Document) Loaded(ctx context.Context) error {
	select {
	case <-d.loaded:
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
	return d.loadErr
}

// Dispose marks the document disposed and stops its goroutine. Operations
// after Dispose return models.ErrDisposed. Calling Dispose again is a no-op.
func (d *Document) Dispose() {
	d.once.Do(func() {
		d.disposed.Store(true)
		close(d.quit)
	})
}

func (d *Document) run(ctx context.Context, o openOptions) {
	d.load(ctx, o)
	close(d.loaded)
	for {
		select {
		case fn := <-d.reqs:
			fn()
		case <-d.quit:
			return
		}
	}
}

func (d *Document) load(ctx context.Context, o openOptions) {
	src := d.uri
	if o.backup != "" {
		src = o.backup
	}
	data, err := d.fs.Read(ctx, src)
	if err != nil {
		d.loadErr = fmt.Errorf("open %s: %w", d.uri, mapCtxErr(err))
		return
	}
	params, err := codec.Decode(data)
	if err != nil {
		d.loadErr = fmt.Errorf("open %s: %w", d.uri, err)
		return
	}
	d.params = params
	if o.backup != "" {
		// Restored content differs from the backing file until saved.
		d.version = 1
		slog.Info("document: restored from backup", "uri", d.uri, "backup", o.backup)
		return
	}
	d.savedBytes = data
}

// do runs fn on the document goroutine and waits for it to return.
func (d *Document) do(ctx context.Context, fn func() error) error {
	if d.disposed.Load() {
		return models.ErrDisposed
	}
	var err error
	done := make(chan struct{})
	req := func() {
		defer close(done)
		switch {
		case d.disposed.Load():
			err = models.ErrDisposed
		case d.loadErr != nil:
			err = d.loadErr
		default:
			err = fn()
		}
	}
	select {
	case d.reqs <- req:
	case <-d.quit:
		return models.ErrDisposed
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
	<-done
	return err
}

func (d *Document) snapshot() Snapshot {
	return Snapshot{
		Params:  d.params.Clone(),
		Dirty:   d.version != d.savedVersion,
		Version: d.version,
	}
}

// Snapshot returns a copy of the current parameters.
func (d *Document) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := d.do(ctx, func() error {
		s = d.snapshot()
		return nil
	})
	return s, err
}

// SetValue writes one parameter, creating it if absent. It reports whether
// the stored value changed. Storage is not touched.
func (d *Document) SetValue(ctx context.Context, key string, value float64) (changed bool, dirty bool, err error) {
	err = d.do(ctx, func() error {
		if old, ok := d.params.Get(key); !ok || old != value {
			d.params.Set(key, value)
			d.version++
			changed = true
		}
		dirty = d.version != d.savedVersion
		return nil
	})
	return changed, dirty, err
}

// Save writes the current parameters to the document's own URI.
func (d *Document) Save(ctx context.Context) error {
	return d.SaveAs(ctx, d.uri)
}

// SaveAs writes the current parameters to uri. The document stays bound to
// its own URI; writing to a different URI leaves the backing file untouched
// and the dirty state unchanged.
func (d *Document) SaveAs(ctx context.Context, uri string) error {
	return d.do(ctx, func() error {
		data, err := d.write(ctx, uri)
		if err != nil {
			return err
		}
		if uri == d.uri {
			d.savedVersion = d.version
			d.savedBytes = data
		}
		return nil
	})
}

// Backup writes the current parameters to dest without affecting the
// document's dirty state.
func (d *Document) Backup(ctx context.Context, dest string) error {
	return d.do(ctx, func() error {
		_, err := d.write(ctx, dest)
		return err
	})
}

// RemoveBackup deletes a backup artifact written by Backup.
func (d *Document) RemoveBackup(ctx context.Context, dest string) error {
	if dest == d.uri {
		return fmt.Errorf("remove backup %s: refusing to delete the document itself", dest)
	}
	// Not routed through do: the document may already be disposed when the
	// host discards its backups.
	if err := d.fs.Remove(ctx, dest); err != nil {
		return mapCtxErr(err)
	}
	return nil
}

func (d *Document) write(ctx context.Context, uri string) ([]byte, error) {
	data, err := codec.Encode(d.params)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", uri, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("save %s: %w", uri, cancelled(err))
	}
	if err := d.fs.Write(ctx, uri, data); err != nil {
		return nil, fmt.Errorf("save %s: %w", uri, mapCtxErr(err))
	}
	return data, nil
}

// Revert re-decodes the backing file and replaces the parameters with it,
// discarding unsaved edits. On failure the parameters are left as they were.
func (d *Document) Revert(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := d.do(ctx, func() error {
		if err := d.reload(ctx); err != nil {
			return err
		}
		s = d.snapshot()
		return nil
	})
	return s, err
}

// ReloadIfClean re-decodes the backing file when its content differs from
// what the document last read or wrote and there are no unsaved edits. It
// reports whether the parameters were replaced, and whether the file changed
// under unsaved edits, which are then kept.
func (d *Document) ReloadIfClean(ctx context.Context) (reloaded bool, conflict bool, err error) {
	err = d.do(ctx, func() error {
		data, err := d.fs.Read(ctx, d.uri)
		if err != nil {
			return fmt.Errorf("reload %s: %w", d.uri, mapCtxErr(err))
		}
		if bytes.Equal(data, d.savedBytes) {
			return nil
		}
		if d.version != d.savedVersion {
			conflict = true
			return nil
		}
		if err := d.replace(ctx, data); err != nil {
			return err
		}
		reloaded = true
		return nil
	})
	return reloaded, conflict, err
}

// Backing returns the current content of the backing file.
func (d *Document) Backing(ctx context.Context) ([]byte, error) {
	var data []byte
	err := d.do(ctx, func() error {
		var err error
		data, err = d.fs.Read(ctx, d.uri)
		if err != nil {
			return fmt.Errorf("read %s: %w", d.uri, mapCtxErr(err))
		}
		return nil
	})
	return data, err
}

func (d *Document) reload(ctx context.Context) error {
	data, err := d.fs.Read(ctx, d.uri)
	if err != nil {
		return fmt.Errorf("revert %s: %w", d.uri, mapCtxErr(err))
	}
	return d.replace(ctx, data)
}

func (d *Document) replace(ctx context.Context, data []byte) error {
	params, err := codec.Decode(data)
	if err != nil {
		return fmt.Errorf("revert %s: %w", d.uri, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("revert %s: %w", d.uri, cancelled(err))
	}
	d.params = params
	d.version++
	d.savedVersion = d.version
	d.savedBytes = data
	return nil
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", models.ErrCancelled, err)
}

// mapCtxErr marks context errors coming back from storage as cancellations.
func mapCtxErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelled(err)
	}
	return err
}
