package composer

import (
	"strconv"
	"strings"
	"sync"

	"github.com/quorm/quorm/metadata"
)

// AliasCache assigns a stable join alias to every relation of an entity
// type. The table is computed once per entity and shared across queries:
// suffix assignment depends on relation declaration order, so recomputing
// it per query would make generated SQL unstable.
//
// Aliases are reserved case-insensitively because SQL aliases are. The
// first relation to claim a name gets it bare; later collisions get _1,
// _2, ... suffixes. The base table name is pre-reserved so no relation
// ever shadows it.
//
// Safe for concurrent use. A duplicate compute under contention is benign:
// the function is deterministic, so last-write-wins stores the same map.
type AliasCache struct {
	mu       sync.RWMutex
	byEntity map[string]map[string]string
}

// NewAliasCache returns an empty cache.
func NewAliasCache() *AliasCache {
	return &AliasCache{byEntity: make(map[string]map[string]string)}
}

// Aliases returns the relation-name -> alias table for an entity.
func (c *AliasCache) Aliases(def *metadata.EntityDef) map[string]string {
	c.mu.RLock()
	table, ok := c.byEntity[def.Name()]
	c.mu.RUnlock()
	if ok {
		return table
	}

	table = computeAliases(def)

	c.mu.Lock()
	c.byEntity[def.Name()] = table
	c.mu.Unlock()
	return table
}

// Alias returns the alias for one relation of an entity.
func (c *AliasCache) Alias(def *metadata.EntityDef, relation string) string {
	if alias, ok := c.Aliases(def)[relation]; ok {
		return alias
	}
	return SanitizeAlias(relation)
}

func computeAliases(def *metadata.EntityDef) map[string]string {
	table := make(map[string]string)
	taken := map[string]struct{}{
		strings.ToLower(ToTableName(def.Name())): {},
	}

	for _, rel := range def.Relations() {
		base := SanitizeAlias(rel.Name)
		alias := base
		for i := 1; ; i++ {
			if _, used := taken[strings.ToLower(alias)]; !used {
				break
			}
			alias = base + "_" + strconv.Itoa(i)
		}
		taken[strings.ToLower(alias)] = struct{}{}
		table[rel.Name] = alias
	}
	return table
}
