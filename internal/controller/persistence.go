package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/micro-nova/slidered/internal/codec"
	"github.com/micro-nova/slidered/internal/models"
)

// Backup is a handle to a backup artifact written by Controller.Backup.
type Backup struct {
	ID  string
	URI string
	c   *Controller
}

// Delete removes the backup artifact.
func (b *Backup) Delete(ctx context.Context) error {
	return b.c.DeleteBackup(ctx, b.ID)
}

// Info returns the API view of the backup.
func (b *Backup) Info() models.BackupInfo {
	return models.BackupInfo{ID: b.ID, URI: b.URI}
}

// beginSave and beginRevert move the controller into Saving/Reverting. The
// returned func moves it back.
func (c *Controller) beginSave() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, models.ErrDisposed
	}
	c.saving++
	return func() {
		c.mu.Lock()
		c.saving--
		c.mu.Unlock()
	}, nil
}

func (c *Controller) beginRevert() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, models.ErrDisposed
	}
	c.reverting++
	return func() {
		c.mu.Lock()
		c.reverting--
		c.mu.Unlock()
	}, nil
}

// Save writes the document to its own URI. Cancelling ctx before the write
// commits fails with models.ErrCancelled and leaves the file unchanged.
// The in-memory parameters are never modified by a save, whatever its outcome.
func (c *Controller) Save(ctx context.Context) error {
	done, err := c.beginSave()
	if err != nil {
		return err
	}
	defer done()

	if err := c.doc.Save(ctx); err != nil {
		c.logFailure("save", c.doc.URI(), err)
		return err
	}
	c.publish(models.Event{Kind: models.EventSaved})
	slog.Info("controller: saved", "id", c.id, "uri", c.doc.URI())
	return nil
}

// SaveAs writes the document to uri. The session stays bound to its own URI.
func (c *Controller) SaveAs(ctx context.Context, uri string) error {
	if uri == "" {
		return models.ErrBadRequest("save-as: path is required")
	}
	done, err := c.beginSave()
	if err != nil {
		return err
	}
	defer done()

	if err := c.doc.SaveAs(ctx, uri); err != nil {
		c.logFailure("save-as", uri, err)
		return err
	}
	dirty := false
	if snap, err := c.doc.Snapshot(ctx); err == nil {
		dirty = snap.Dirty
	}
	ev := models.Event{Kind: models.EventSaved, Dirty: dirty}
	c.publish(ev)
	slog.Info("controller: saved as", "id", c.id, "uri", c.doc.URI(), "target", uri)
	return nil
}

// Revert discards unsaved edits by re-decoding the backing file, then
// re-renders every attached surface. On failure nothing changes.
func (c *Controller) Revert(ctx context.Context) error {
	done, err := c.beginRevert()
	if err != nil {
		return err
	}
	defer done()

	snap, err := c.doc.Revert(ctx)
	if err != nil {
		c.logFailure("revert", c.doc.URI(), err)
		return err
	}
	c.rerender(snap.Params)
	c.publish(models.Event{Kind: models.EventReverted})
	slog.Info("controller: reverted", "id", c.id, "uri", c.doc.URI())
	return nil
}

// Backup writes the current parameters to dest and returns a handle whose
// Delete removes the artifact. The lifecycle state is not changed.
func (c *Controller) Backup(ctx context.Context, dest string) (*Backup, error) {
	if dest == "" {
		return nil, models.ErrBadRequest("backup: destination is required")
	}
	if dest == c.doc.URI() {
		return nil, models.ErrBadRequest("backup: destination is the document itself")
	}
	if err := c.doc.Backup(ctx, dest); err != nil {
		c.logFailure("backup", dest, err)
		return nil, err
	}
	// Backing up to the same destination again replaces the artifact and
	// keeps its handle id.
	c.mu.Lock()
	id := ""
	for bid, uri := range c.backups {
		if uri == dest {
			id = bid
			break
		}
	}
	if id == "" {
		id = uuid.New().String()
		c.backups[id] = dest
	}
	c.mu.Unlock()
	b := &Backup{ID: id, URI: dest, c: c}
	slog.Debug("controller: backup written", "id", c.id, "backup", b.ID, "uri", dest)
	return b, nil
}

// DeleteBackup removes a backup by id.
func (c *Controller) DeleteBackup(ctx context.Context, id string) error {
	c.mu.Lock()
	uri, ok := c.backups[id]
	c.mu.Unlock()
	if !ok {
		return models.ErrNotFound("backup not found")
	}
	if err := c.doc.RemoveBackup(ctx, uri); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.backups, id)
	c.mu.Unlock()
	return nil
}

// Backups returns the backups written by this session and not yet deleted.
func (c *Controller) Backups() []models.BackupInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.BackupInfo, 0, len(c.backups))
	for id, uri := range c.backups {
		out = append(out, models.BackupInfo{ID: id, URI: uri})
	}
	return out
}

// Dirty reports whether the document has unsaved edits.
func (c *Controller) Dirty(ctx context.Context) (bool, error) {
	snap, err := c.doc.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.Dirty, nil
}

// ExternalChange handles a change of the backing file made outside this
// session. A clean document reloads and re-renders; a dirty one keeps its
// edits and reports the conflict. The document's own saves are not changes.
func (c *Controller) ExternalChange(ctx context.Context) error {
	reloaded, conflict, err := c.doc.ReloadIfClean(ctx)
	if err != nil {
		return err
	}
	switch {
	case reloaded:
		snap, err := c.doc.Snapshot(ctx)
		if err != nil {
			return err
		}
		c.rerender(snap.Params)
		c.publish(models.Event{Kind: models.EventReverted})
		slog.Info("controller: reloaded after external change", "id", c.id, "uri", c.doc.URI())
	case conflict:
		c.publish(models.Event{Kind: models.EventChangedOnDisk, Dirty: true})
		slog.Warn("controller: file changed on disk with unsaved edits", "id", c.id, "uri", c.doc.URI())
	}
	return nil
}

// Diff returns a patch from the backing file's content to what Save would
// write. It is empty when there is nothing to save.
func (c *Controller) Diff(ctx context.Context) (string, error) {
	onDisk, err := c.doc.Backing(ctx)
	if err != nil {
		return "", err
	}
	snap, err := c.doc.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	pending, err := codec.Encode(snap.Params)
	if err != nil {
		return "", err
	}

	if bytes.Equal(onDisk, pending) {
		return "", nil
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(onDisk), string(pending))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	return dmp.PatchToText(dmp.PatchMake(string(onDisk), diffs)), nil
}

func (c *Controller) logFailure(op, uri string, err error) {
	if errors.Is(err, models.ErrCancelled) {
		slog.Info(fmt.Sprintf("controller: %s cancelled", op), "id", c.id, "uri", uri)
		return
	}
	slog.Error(fmt.Sprintf("controller: %s failed", op), "id", c.id, "uri", uri, "err", err)
}
