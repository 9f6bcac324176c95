// Package customer assigns stable, human-readable customer numbers to
// session keys and persists the mapping on disk.
package customer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const numberPrefix = "CUST-"

// Allocator maps session keys to sequential customer numbers of the
// form CUST-0001. The numeric suffix is the count of prior assignments
// plus one; once assigned, a mapping never changes. All allocation runs
// under one mutex so concurrent first-time sessions cannot observe the
// same count and mint duplicate numbers.
type Allocator struct {
	mu      sync.Mutex
	path    string
	numbers map[string]string
}

// NewAllocator loads the mapping file at path. A missing file starts an
// empty mapping; an unreadable or corrupt file is logged and also
// starts empty, matching the at-most-best-effort durability of the
// store.
func NewAllocator(path string) *Allocator {
	a := &Allocator{
		path:    path,
		numbers: make(map[string]string),
	}
	a.load()
	return a
}

func (a *Allocator) load() {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("customer numbers: read %s failed: %v", a.path, err)
		}
		return
	}
	if err := json.Unmarshal(data, &a.numbers); err != nil {
		log.Printf("customer numbers: parse %s failed: %v", a.path, err)
		a.numbers = make(map[string]string)
	}
}

// Assign returns the customer number for the session key, minting and
// persisting a new one on first sight. Persistence failure is logged;
// the in-memory number is still returned.
func (a *Allocator) Assign(sessionKey string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if number, ok := a.numbers[sessionKey]; ok {
		return number
	}

	number := fmt.Sprintf("%s%04d", numberPrefix, len(a.numbers)+1)
	a.numbers[sessionKey] = number

	if err := a.persistLocked(); err != nil {
		log.Printf("customer numbers: persist %s failed: %v", a.path, err)
	}
	return number
}

// NumberFor returns the existing number for the session key without
// allocating.
func (a *Allocator) NumberFor(sessionKey string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	number, ok := a.numbers[sessionKey]
	return number, ok
}

// All returns a copy of the full mapping.
func (a *Allocator) All() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.numbers))
	for k, v := range a.numbers {
		out[k] = v
	}
	return out
}

// persistLocked rewrites the whole mapping through a temp file and an
// atomic rename so a crash mid-write cannot leave a truncated file.
func (a *Allocator) persistLocked() error {
	data, err := json.MarshalIndent(a.numbers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, ".customer-numbers-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", a.path, err)
	}
	return nil
}
