package flow

import "sync"

// DefinitionProvider resolves a FlowDefinition by name. Implementations
// must be safe for concurrent use; the engine calls Get from GetState, and
// so on every advance preview.
type DefinitionProvider interface {
	Get(name string) (FlowDefinition, error)
}

// DefinitionCache is a concurrent-safe, write-once-per-name
// DefinitionProvider: definitions are registered ahead of time (typically
// at startup, from parsed files) and never replaced, mirroring the
// teacher's workflowRegistry pattern minus the version dimension (spec.md's
// flows are named, not versioned).
type DefinitionCache struct {
	mu   sync.RWMutex
	byID map[string]FlowDefinition
}

// NewDefinitionCache creates an empty DefinitionProvider backed by a
// concurrent map.
func NewDefinitionCache() *DefinitionCache {
	return &DefinitionCache{byID: make(map[string]FlowDefinition)}
}

// Register adds def to the cache, keyed by def.ID.Value(). Registering a
// name that already exists returns a *DefinitionError; definitions are
// write-once.
func (c *DefinitionCache) Register(def FlowDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := def.ID.Value()
	if _, exists := c.byID[name]; exists {
		return NewDefinitionError(name, "a definition with this id is already registered")
	}
	c.byID[name] = def
	return nil
}

// Get returns the definition registered under name, or a *DefinitionError
// if none is registered.
func (c *DefinitionCache) Get(name string) (FlowDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.byID[name]
	if !ok {
		return FlowDefinition{}, NewDefinitionError(name, "no definition registered under this name")
	}
	return def, nil
}

// Names returns the names of every currently registered definition.
func (c *DefinitionCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byID))
	for name := range c.byID {
		names = append(names, name)
	}
	return names
}
