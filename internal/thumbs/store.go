package thumbs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store lays thumbnails out as <root>/<libraryID>/<contentHash>.webp.
// Keying by content hash means a moved file keeps its thumbnail and a
// rewritten file sheds the stale one.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) PathFor(libraryID int64, contentHash string) string {
	return filepath.Join(s.root, strconv.FormatInt(libraryID, 10), contentHash+".webp")
}

func (s *Store) Exists(libraryID int64, contentHash string) bool {
	info, err := os.Stat(s.PathFor(libraryID, contentHash))
	return err == nil && !info.IsDir()
}

// Remove deletes the stored thumbnail. A missing file is not an error.
func (s *Store) Remove(libraryID int64, contentHash string) error {
	err := os.Remove(s.PathFor(libraryID, contentHash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove thumbnail: %w", err)
	}
	return nil
}

// Walk yields every stored thumbnail. Files that do not follow the
// store layout are ignored; the cleanup job only reasons about files it
// could have written.
func (s *Store) Walk(fn func(libraryID int64, contentHash, path string) error) error {
	libs, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, lib := range libs {
		if !lib.IsDir() {
			continue
		}
		libraryID, err := strconv.ParseInt(lib.Name(), 10, 64)
		if err != nil {
			continue
		}
		dir := filepath.Join(s.root, lib.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".webp") {
				continue
			}
			hash := strings.TrimSuffix(entry.Name(), ".webp")
			if err := fn(libraryID, hash, filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
