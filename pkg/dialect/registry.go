package dialect

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

var (
	registeredMu sync.RWMutex
	registered   = map[string]*Dialect{}
)

// Register makes d available under its lowercased name. Dialect packages
// call it from init; a later registration replaces an earlier one.
func Register(d *Dialect) {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	registered[strings.ToLower(d.Name)] = d
}

// Get returns the dialect registered under name, ignoring case.
func Get(name string) (*Dialect, bool) {
	registeredMu.RLock()
	defer registeredMu.RUnlock()
	d, ok := registered[strings.ToLower(name)]
	return d, ok
}

// List returns the registered dialect names in order.
func List() []string {
	registeredMu.RLock()
	defer registeredMu.RUnlock()
	return slices.Sorted(maps.Keys(registered))
}
