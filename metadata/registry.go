package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"sigs.k8s.io/yaml"
)

// Provider supplies entity definitions and composer-relevant configuration.
// The composer and the access-control layer consume it read-only.
type Provider interface {
	// EntityDef returns the definition for an entity type.
	// Returns an error wrapping ErrUnknownEntity when no definition exists.
	EntityDef(entityType string) (*EntityDef, error)

	// IndexKey resolves a declared index name to its database key,
	// for USE INDEX hints.
	IndexKey(entityType, indexName string) (string, bool)

	// FiscalYearShift returns the configured fiscal year start offset
	// in months (0 = January).
	FiscalYearShift() int
}

// Registry is an in-memory Provider backed by YAML definition files.
type Registry struct {
	mu          sync.RWMutex
	defs        map[string]*EntityDef
	fiscalShift int
}

// NewRegistry returns an empty registry with the given fiscal year shift.
func NewRegistry(fiscalShift int) *Registry {
	return &Registry{
		defs:        make(map[string]*EntityDef),
		fiscalShift: fiscalShift,
	}
}

// Register adds or replaces an entity definition.
func (r *Registry) Register(def *EntityDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name()] = def
}

// EntityDef implements Provider.
func (r *Registry) EntityDef(entityType string) (*EntityDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityType)
	}
	return def, nil
}

// IndexKey implements Provider.
func (r *Registry) IndexKey(entityType, indexName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[entityType]
	if !ok {
		return "", false
	}
	ix, ok := def.Index(indexName)
	if !ok || ix.Key == "" {
		return "", false
	}
	return ix.Key, true
}

// FiscalYearShift implements Provider.
func (r *Registry) FiscalYearShift() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fiscalShift
}

// EntityTypes returns the registered entity type names, sorted.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entityFile is the on-disk YAML shape of one entity definition.
// Attributes and relations are lists, not maps, so declaration order is
// preserved; alias assignment depends on it.
type entityFile struct {
	Entity     string         `json:"entity"`
	Attributes []AttributeDef `json:"attributes"`
	Relations  []RelationDef  `json:"relations,omitempty"`
	Indexes    []IndexDef     `json:"indexes,omitempty"`
}

// LoadDir loads every *.yaml / *.yml file in dir into a new registry.
// Malformed files are a hard error: partial metadata would produce queries
// that silently miss joins.
func LoadDir(dir string, fiscalShift int) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading metadata dir: %w", err)
	}

	reg := NewRegistry(fiscalShift)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		reg.Register(def)
	}
	return reg, nil
}

func loadFile(path string) (*EntityDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var file entityFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadEntityDefinition, path, err)
	}
	if file.Entity == "" {
		return nil, fmt.Errorf("%w: %s: missing entity name", ErrBadEntityDefinition, path)
	}

	def, err := NewEntityDef(file.Entity, file.Attributes, file.Relations, file.Indexes...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}
