package template

import (
	"log/slog"
	"sort"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
)

// Registry is the read-only catalogue of extraction templates, loaded once at
// batch start and treated as immutable for the lifetime of the batch.
type Registry struct {
	byKey map[string]*entity.Template
	order []string
}

// NewRegistry builds a registry from the template listing. The auto-detect
// sentinel is always present, even when the listing omits it.
func NewRegistry(templates []entity.Template, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{byKey: make(map[string]*entity.Template, len(templates)+1)}
	for i := range templates {
		t := templates[i]
		if _, dup := r.byKey[t.Key]; dup {
			logger.Warn("template.registry.duplicate_key", "key", t.Key)
			continue
		}
		r.byKey[t.Key] = &t
		r.order = append(r.order, t.Key)
	}
	if _, ok := r.byKey[constants.AutoDetectKey]; !ok {
		sentinel := &entity.Template{
			Key:      constants.AutoDetectKey,
			Name:     "Auto-detect",
			Category: "system",
		}
		r.byKey[sentinel.Key] = sentinel
		r.order = append(r.order, sentinel.Key)
	}
	logger.Info("template.registry.loaded", "templates", len(r.order))
	return r
}

// ByKey returns the template registered under key.
func (r *Registry) ByKey(key string) (*entity.Template, bool) {
	t, ok := r.byKey[key]
	return t, ok
}

// Keys returns all template keys in listing order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Categories returns category names in sorted order with their templates in
// listing order. The auto-detect sentinel is excluded.
func (r *Registry) Categories() []Category {
	grouped := make(map[string][]*entity.Template)
	for _, key := range r.order {
		t := r.byKey[key]
		if t.IsAutoDetect() {
			continue
		}
		grouped[t.Category] = append(grouped[t.Category], t)
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Category, 0, len(names))
	for _, name := range names {
		out = append(out, Category{Name: name, Templates: grouped[name]})
	}
	return out
}

// Category groups templates for listing purposes.
type Category struct {
	Name      string
	Templates []*entity.Template
}
