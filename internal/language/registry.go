package language

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Resolve for identifiers outside the registry.
var ErrNotFound = errors.New("language not found")

// Registry maps language identifiers to their toolchain. It is immutable
// after construction and safe for concurrent use.
type Registry struct {
	byID  map[string]Config
	order []string
}

// NewRegistry builds the registry from the built-in table. overrides maps a
// language id to a replacement executable; unknown ids are rejected.
func NewRegistry(overrides map[string]string) (*Registry, error) {
	r := &Registry{
		byID: make(map[string]Config, len(builtin)),
	}

	for _, cfg := range builtin {
		if _, exists := r.byID[cfg.ID]; exists {
			panic(fmt.Sprintf("language: duplicate id %q in built-in table", cfg.ID))
		}
		r.byID[cfg.ID] = cfg
		r.order = append(r.order, cfg.ID)
	}

	for id, command := range overrides {
		key := normalize(id)
		cfg, ok := r.byID[key]
		if !ok {
			return nil, fmt.Errorf("command override for %q: %w", id, ErrNotFound)
		}
		if strings.TrimSpace(command) == "" {
			return nil, fmt.Errorf("command override for %q is empty", id)
		}
		cfg.Command = command
		r.byID[key] = cfg
	}

	return r, nil
}

// Default returns the registry with no command overrides.
func Default() *Registry {
	r, _ := NewRegistry(nil)
	return r
}

// Resolve returns the config for identifier. Matching is case-insensitive
// and exact.
func (r *Registry) Resolve(identifier string) (Config, error) {
	cfg, ok := r.byID[normalize(identifier)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}
	return cfg, nil
}

// Supported returns the registered ids in table order.
func (r *Registry) Supported() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns every config in table order.
func (r *Registry) List() []Config {
	out := make([]Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ByExtension finds the language whose file extension matches ext, with or
// without the leading dot.
func (r *Registry) ByExtension(ext string) (Config, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, id := range r.order {
		if cfg := r.byID[id]; cfg.Extension == ext {
			return cfg, nil
		}
	}
	return Config{}, fmt.Errorf("%w: no language for extension %q", ErrNotFound, ext)
}

// normalize lowercases id. Surrounding whitespace is significant.
func normalize(id string) string {
	return strings.ToLower(id)
}
