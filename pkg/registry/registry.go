// Package registry provides the registry of extraction backends.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"embed-resolver/pkg/interfaces"
)

// ExtractorRegistry manages extraction backends by name.
type ExtractorRegistry struct {
	mu     sync.RWMutex
	byName map[string]interfaces.Extractor
}

// NewExtractorRegistry creates a new extractor registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		byName: make(map[string]interfaces.Extractor),
	}
}

// Register adds an extractor to the registry, replacing any backend that
// was registered under the same name.
func (r *ExtractorRegistry) Register(extractor interfaces.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[extractor.Name()] = extractor
}

// Get returns the extractor registered under name.
func (r *ExtractorRegistry) Get(name string) (interfaces.Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.byName[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("unknown extraction backend %q", name)
}

// Names returns the registered backend names in sorted order.
func (r *ExtractorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes all registered extractors.
func (r *ExtractorRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.byName {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}
