// Package storage is the byte-level boundary between documents and the
// medium they are persisted on.
package storage

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
)

// FS reads and writes whole files by URI.
// Write must be atomic: readers observe either the old or the new content.
// Implementations honour ctx: a write whose ctx is done before the content
// is committed returns an error wrapping ctx.Err() and changes nothing.
type FS interface {
	Read(ctx context.Context, uri string) ([]byte, error)
	Write(ctx context.Context, uri string, data []byte) error
	Remove(ctx context.Context, uri string) error
}

// ToPath converts a file URI ("file:///a/b.json") or a plain path to a
// cleaned filesystem path. Relative paths are joined to root when root is
// not empty.
func ToPath(root, uri string) string {
	p := uri
	if strings.HasPrefix(uri, "file://") {
		if u, err := url.Parse(uri); err == nil {
			p = u.Path
		}
	}
	if !filepath.IsAbs(p) && root != "" {
		p = filepath.Join(root, p)
	}
	return filepath.Clean(p)
}
