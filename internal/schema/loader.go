// Package schema loads and validates JSON Schema (a Draft 2020-12 subset)
// documents from the filesystem: a pinned root, cached compiled documents,
// fatal errors for not-found/malformed schemas.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lumyn-labs/lumyn/internal/errkit"
)

// Schema is a parsed JSON Schema document.
type Schema struct {
	Path string
	Doc  map[string]any
}

// Loader loads and caches schemas rooted at a single directory.
type Loader struct {
	root string

	mu    sync.Mutex
	cache map[string]*Schema
}

// NewLoader returns a Loader rooted at dir. The directory need not exist
// yet (it is resolved lazily on first Load).
func NewLoader(dir string) *Loader {
	return &Loader{root: dir, cache: map[string]*Schema{}}
}

// Load reads, parses, and caches the schema at rel (relative to the
// loader's root). Not-found and malformed-JSON are fatal upward.
func (l *Loader) Load(rel string) (*Schema, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.cache[rel]; ok {
		return s, nil
	}

	full := filepath.Join(l.root, rel)
	raw, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkit.Wrap(errkit.Internal, fmt.Sprintf("schema not found: %s", rel), err)
		}
		return nil, errkit.Wrap(errkit.Internal, fmt.Sprintf("schema unreadable: %s", rel), err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errkit.Wrap(errkit.Internal, fmt.Sprintf("schema malformed: %s", rel), err)
	}

	s := &Schema{Path: rel, Doc: doc}
	l.cache[rel] = s
	return s, nil
}
