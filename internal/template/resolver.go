package template

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
)

// Resolver tracks the active template binding for one batch.
//
// In explicit mode the binding is fixed at construction. In auto-detect mode
// the batch starts unbound; the first detected type that matches a registered
// template binds it, and the binding never changes afterwards. Detected types
// without a registry match leave the batch unbound, and review rendering falls
// back to raw key/value pairs.
type Resolver struct {
	mu       sync.Mutex
	registry *Registry
	logger   *slog.Logger

	auto   bool
	active *entity.Template
}

// NewResolver binds templateKey against the registry. The auto-detect
// sentinel selects auto-detect mode; any other key must exist in the registry.
func NewResolver(registry *Registry, templateKey string, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{registry: registry, logger: logger}
	if templateKey == constants.AutoDetectKey {
		r.auto = true
		return r, nil
	}
	t, ok := registry.ByKey(templateKey)
	if !ok {
		return nil, fmt.Errorf("unknown template key %q", templateKey)
	}
	r.active = t
	return r, nil
}

// AutoDetect reports whether the batch was dispatched in auto-detect mode.
func (r *Resolver) AutoDetect() bool {
	return r.auto
}

// DispatchKey returns the template key to send with extraction requests.
// Auto-detect batches keep dispatching the sentinel even after the active
// template has been resolved; already-completed items are never reprocessed.
func (r *Resolver) DispatchKey() string {
	if r.auto {
		return constants.AutoDetectKey
	}
	return r.active.Key
}

// Active returns the bound template, or false while the batch is unresolved.
func (r *Resolver) Active() (*entity.Template, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.active != nil
}

// Observe feeds a detected type returned by the service. The first match
// against the registry binds the active template; later observations are
// ignored, keeping the binding monotonic.
func (r *Resolver) Observe(detectedType string) {
	if !r.auto || detectedType == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return
	}
	t, ok := r.registry.ByKey(detectedType)
	if !ok || t.IsAutoDetect() {
		r.logger.Warn("template.resolver.unregistered_type", "detected_type", detectedType)
		return
	}
	r.active = t
	r.logger.Info("template.resolver.bound", "key", t.Key, "category", t.Category)
}
