package bmd

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader parses models relative to a data directory and caches them by path.
// Concurrent requests for the same model share a single parse.
type Loader struct {
	dataDir string
	decoder Decoder

	mu     sync.RWMutex
	models map[string]*Model
	group  singleflight.Group
}

// NewLoader creates a loader rooted at dataDir (e.g. "<base>/Data").
func NewLoader(dataDir string, decoder Decoder) *Loader {
	return &Loader{
		dataDir: dataDir,
		decoder: decoder,
		models:  make(map[string]*Model),
	}
}

// Prepare returns the parsed model for a data-relative path such as
// "Object1/SteelDoor01.bmd". ctx bounds only the wait: an abandoned parse
// still completes and is cached for the next caller.
func (l *Loader) Prepare(ctx context.Context, rel string) (*Model, error) {
	key := strings.ToLower(filepath.ToSlash(rel))

	l.mu.RLock()
	if m, ok := l.models[key]; ok {
		l.mu.RUnlock()
		return m, nil
	}
	l.mu.RUnlock()

	ch := l.group.DoChan(key, func() (any, error) {
		m, err := l.decoder.ParseFile(filepath.Join(l.dataDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.models[key] = m
		l.mu.Unlock()
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}

// Len returns the number of cached models.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.models)
}
