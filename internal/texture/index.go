package texture

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Index maps texture references to OZJ/OZT files on disk. Models name their
// textures by the source format (".jpg", ".tga"); the shipped file carries
// the wrapped format under the same stem.
type Index struct {
	mu     sync.RWMutex
	byPath map[string]string // lowercase slash path without extension → file
	byStem map[string]string // lowercase stem → file
}

// BuildIndex scans root and all subdirectories for OZJ/OZT files. When both
// exist for a stem, OZT wins (it has an alpha channel). On a walk error the
// files indexed so far are returned with it.
func BuildIndex(root string) (*Index, error) {
	idx := &Index{
		byPath: make(map[string]string),
		byStem: make(map[string]string),
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		idx.Add(p)
		return nil
	})
	if err != nil {
		return idx, fmt.Errorf("texture: index %s: %w", root, err)
	}
	return idx, nil
}

// Add registers a single file. Files of other formats are ignored.
func (idx *Index) Add(file string) {
	ext := strings.ToLower(filepath.Ext(file))
	if ext != ".ozj" && ext != ".ozt" {
		return
	}
	key := indexKey(file)
	stem := path.Base(key)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if prefer(idx.byPath[key], ext) {
		idx.byPath[key] = file
	}
	if prefer(idx.byStem[stem], ext) {
		idx.byStem[stem] = file
	}
}

func prefer(existing, ext string) bool {
	return existing == "" || (ext == ".ozt" && strings.ToLower(filepath.Ext(existing)) == ".ozj")
}

func indexKey(p string) string {
	p = path.Clean(strings.ReplaceAll(filepath.ToSlash(p), "\\", "/"))
	return strings.ToLower(strings.TrimSuffix(p, path.Ext(p)))
}

// ResolvePath returns the file for a texture reference, or ("", false). The
// reference is matched by full path first and by stem otherwise.
func (idx *Index) ResolvePath(texName string) (string, bool) {
	key := indexKey(texName)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if file, ok := idx.byPath[key]; ok {
		return file, true
	}
	file, ok := idx.byStem[path.Base(key)]
	return file, ok
}

// Len returns the number of indexed textures.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byPath)
}
