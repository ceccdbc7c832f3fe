package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownStrategy is returned when a configured strategy name has no
// registered factory. It is fatal at startup.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a strategy from its parameters.
type Factory func(name string, p Params) Strategy

// Registry maps strategy names to factories. It is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry returns a registry with the built-in strategies:
// "CCI" (crossover) and "RSI" (composite).
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("CCI", func(name string, p Params) Strategy { return NewCrossover(name, p) })
	r.Register("RSI", func(name string, p Params) Strategy { return NewComposite(name, p) })
	return r
}

// Register adds a factory under name. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToUpper(name)] = f
}

// New builds the strategy registered under name.
func (r *Registry) New(name string, p Params) (Strategy, error) {
	key := strings.ToUpper(strings.TrimSpace(name))

	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w (available: %s)", name, ErrUnknownStrategy, strings.Join(r.List(), ", "))
	}
	return f(key, p), nil
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// New builds a built-in strategy by name.
func New(name string, p Params) (Strategy, error) {
	return defaultRegistry.New(name, p)
}
