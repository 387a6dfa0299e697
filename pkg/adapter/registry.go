package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/polyglot/pkg/core"
)

// Factory builds an unconnected adapter. A nil logger discards output.
type Factory func(logger *slog.Logger) Adapter

// ErrNoAdapterType is returned by NewAdapter for a config without a type.
var ErrNoAdapterType = errors.New("adapter type not specified")

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes an adapter available under name (case-insensitive).
// Adapter packages call it from init; registering a name twice panics.
func Register(name string, f Factory) {
	key := strings.ToLower(name)
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("adapter: Register factory is nil for " + key)
	}
	if _, dup := factories[key]; dup {
		panic("adapter: Register called twice for " + key)
	}
	factories[key] = f
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[strings.ToLower(name)]
	return f, ok
}

// NewAdapter builds the adapter for cfg.Type. Connect must still be called.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoAdapterType
	}
	f, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return f(logger), nil
}

// ListAdapters returns the registered names in order.
func ListAdapters() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// IsRegistered reports whether an adapter is registered under name.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError is returned for a target type no adapter handles.
// Usually a missing blank import of the adapter package.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check target.type in polyglot.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
