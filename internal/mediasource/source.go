package mediasource

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// Item is one supported media file found under a library root.
type Item struct {
	AbsolutePath string
	RelativePath string // forward-slash, relative to the root
	SizeBytes    int64
	ModTime      time.Time // UTC
}

// Source enumerates the supported media files under a directory tree.
// Enumeration order is the lexicographic directory order of the
// filesystem walk, so two passes over an unchanged tree yield the same
// sequence.
type Source struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Source {
	return &Source{log: log}
}

// Count returns the number of supported media files under root.
func (s *Source) Count(ctx context.Context, root string) (int, error) {
	count := 0
	err := s.Walk(ctx, root, func(Item) error {
		count++
		return nil
	})
	return count, err
}

// Walk calls fn for every supported media file under root. Directories
// that cannot be read are logged and skipped; a missing or unreadable
// root is an error. fn returning an error stops the walk and Walk
// returns that error.
func (s *Source) Walk(ctx context.Context, root string, fn func(Item) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.log.Warn("skipping unreadable directory", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !models.IsSupportedMedia(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// the file vanished between readdir and stat
			s.log.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(Item{
			AbsolutePath: path,
			RelativePath: filepath.ToSlash(rel),
			SizeBytes:    info.Size(),
			ModTime:      info.ModTime().UTC(),
		})
	})
}
