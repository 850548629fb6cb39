package accesstypes

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"tenantchat/internal/domain/models"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry maps (resource kind, operation) to the access type a grant must carry
type Registry struct {
	byKind map[models.ResourceKind]ResourceAccess
	known  map[string]struct{}
	mu     sync.RWMutex
}

// NewRegistry loads the embedded access type table
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/access_types.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read access_types.yaml: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML. Every entry needs a kind and both tags.
func Parse(data []byte) (*Registry, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal access types: %w", err)
	}

	r := &Registry{
		byKind: make(map[models.ResourceKind]ResourceAccess),
		known:  make(map[string]struct{}),
	}
	for _, res := range file.Resources {
		if res.Kind == "" || res.Read == "" || res.Write == "" {
			return nil, fmt.Errorf("access type entry %q is incomplete", res.Kind)
		}
		kind := models.ResourceKind(res.Kind)
		if _, dup := r.byKind[kind]; dup {
			return nil, fmt.Errorf("duplicate access type entry for %s", res.Kind)
		}
		r.byKind[kind] = res
		r.known[res.Read] = struct{}{}
		r.known[res.Write] = struct{}{}
	}
	return r, nil
}

// For returns the access type required for op on kind. Unknown kinds map to "".
func (r *Registry) For(kind models.ResourceKind, op models.Operation) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byKind[kind]
	if !ok {
		return ""
	}
	if op == models.OperationWrite {
		return res.Write
	}
	return res.Read
}

// Known reports whether accessType appears anywhere in the table
func (r *Registry) Known(accessType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.known[accessType]
	return ok
}

// All returns every known access type, sorted
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.known))
	for t := range r.known {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
