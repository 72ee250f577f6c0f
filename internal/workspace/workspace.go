// Package workspace keeps the open editor sessions: at most one session per
// file, looked up by session id or by file.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/micro-nova/slidered/internal/controller"
	"github.com/micro-nova/slidered/internal/document"
	"github.com/micro-nova/slidered/internal/models"
	"github.com/micro-nova/slidered/internal/storage"
)

// Watcher is told which files have open sessions.
type Watcher interface {
	Add(path string) error
	Remove(path string) error
}

// Options configures a Registry.
type Options struct {
	Root      string // relative paths are resolved against Root
	Pattern   string // required file name suffix, e.g. ".pianoroll.json"; empty accepts all
	BackupDir string // where backups without an explicit destination go
	Watcher   Watcher
}

type opening struct {
	done chan struct{}
	ctrl *controller.Controller
	err  error
}

// Registry holds the open sessions.
type Registry struct {
	fs   storage.FS
	bus  controller.Publisher
	opts Options

	mu      sync.Mutex
	byID    map[string]*controller.Controller
	byPath  map[string]string // path -> session id
	opening map[string]*opening
}

// New creates an empty registry.
func New(fs storage.FS, bus controller.Publisher, opts Options) *Registry {
	return &Registry{
		fs:      fs,
		bus:     bus,
		opts:    opts,
		byID:    make(map[string]*controller.Controller),
		byPath:  make(map[string]string),
		opening: make(map[string]*opening),
	}
}

// Pattern returns the file name suffix sessions are restricted to.
func (r *Registry) Pattern() string { return r.opts.Pattern }

// Path normalizes a user supplied path or file URI.
func (r *Registry) Path(p string) string { return storage.ToPath(r.opts.Root, p) }

// SaveAsTarget resolves a save-as destination. It must carry the file
// suffix and lie under Root.
func (r *Registry) SaveAsTarget(p string) (string, error) {
	if p == "" {
		return "", badPath("path is required")
	}
	path := r.Path(p)
	if r.opts.Pattern != "" && !strings.HasSuffix(path, r.opts.Pattern) {
		return "", badPath("%s is not a %s file", filepath.Base(path), r.opts.Pattern)
	}
	if r.opts.Root != "" && !within(storage.ToPath("", r.opts.Root), path) {
		return "", badPath("%s is outside %s", path, r.opts.Root)
	}
	return path, nil
}

// BackupTarget resolves an explicit backup destination. Relative paths are
// taken from BackupDir, and the result must lie under it.
func (r *Registry) BackupTarget(p string) (string, error) {
	if r.opts.BackupDir == "" {
		return "", badPath("no backup directory configured")
	}
	dir := storage.ToPath("", r.opts.BackupDir)
	path := storage.ToPath(dir, p)
	if !within(dir, path) {
		return "", badPath("%s is outside %s", path, dir)
	}
	return path, nil
}

// within reports whether path is strictly below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func badPath(format string, args ...any) *models.AppError {
	return &models.AppError{
		Code:    "BAD_REQUEST",
		Message: fmt.Sprintf(format, args...),
		Field:   "path",
		Status:  400,
	}
}

// Open returns the session for path, opening the file if no session exists.
// created is false when an existing session was returned. backup, when set,
// restores a new session's content from a backup file.
func (r *Registry) Open(ctx context.Context, path, backup string) (ctrl *controller.Controller, created bool, err error) {
	if path == "" {
		return nil, false, models.ErrBadRequest("path is required")
	}
	path = r.Path(path)
	if r.opts.Pattern != "" && !strings.HasSuffix(path, r.opts.Pattern) {
		return nil, false, badPath("%s is not a %s file", filepath.Base(path), r.opts.Pattern)
	}

	r.mu.Lock()
	if id, ok := r.byPath[path]; ok {
		c := r.byID[id]
		r.mu.Unlock()
		return c, false, nil
	}
	if op, ok := r.opening[path]; ok {
		r.mu.Unlock()
		select {
		case <-op.done:
		case <-ctx.Done():
			return nil, false, fmt.Errorf("%w: %w", models.ErrCancelled, ctx.Err())
		}
		return op.ctrl, false, op.err
	}
	op := &opening{done: make(chan struct{})}
	r.opening[path] = op
	r.mu.Unlock()

	var opts []document.Option
	if backup != "" {
		opts = append(opts, document.FromBackup(r.Path(backup)))
	}
	op.ctrl, op.err = controller.Open(ctx, r.fs, uuid.New().String(), path, r.bus, opts...)

	r.mu.Lock()
	delete(r.opening, path)
	if op.err == nil {
		r.byID[op.ctrl.ID()] = op.ctrl
		r.byPath[path] = op.ctrl.ID()
	}
	r.mu.Unlock()
	close(op.done)

	if op.err != nil {
		slog.Warn("workspace: open failed", "path", path, "err", op.err)
		return nil, false, op.err
	}
	if r.opts.Watcher != nil {
		if err := r.opts.Watcher.Add(path); err != nil {
			slog.Warn("workspace: cannot watch file", "path", path, "err", err)
		}
	}
	return op.ctrl, true, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*controller.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	return c, ok
}

// ByPath returns the session bound to path.
func (r *Registry) ByPath(path string) (*controller.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPath[r.Path(path)]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

// List returns the open sessions ordered by path.
func (r *Registry) List() []*controller.Controller {
	r.mu.Lock()
	out := make([]*controller.Controller, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URI() < out[j].URI() })
	return out
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Close disposes the session with the given id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	c, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		delete(r.byPath, c.URI())
	}
	r.mu.Unlock()
	if !ok {
		return models.ErrNotFound("document not found")
	}
	c.Dispose()
	if r.opts.Watcher != nil {
		if err := r.opts.Watcher.Remove(c.URI()); err != nil {
			slog.Debug("workspace: unwatch failed", "path", c.URI(), "err", err)
		}
	}
	return nil
}

// CloseAll disposes every session.
func (r *Registry) CloseAll() {
	for _, c := range r.List() {
		_ = r.Close(c.ID())
	}
}

// BackupPath returns the default backup location for a session.
func (r *Registry) BackupPath(c *controller.Controller) string {
	name := strings.TrimSuffix(filepath.Base(c.URI()), r.opts.Pattern)
	return filepath.Join(r.opts.BackupDir, fmt.Sprintf("%s-%s%s", name, c.ID(), ".backup.json"))
}
