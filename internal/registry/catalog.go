// Package registry provides the process-wide, read-mostly model catalog
// consulted by the routing layer to decide which upstream dialect a model
// supports and to surface its output-token limit.
package registry

import "sync"

// ModelCapabilities describes limits the routing layer and handlers need.
type ModelCapabilities struct {
	MaxOutputTokens int
}

// Model describes one model the upstream serves.
type Model struct {
	ID                 string
	SupportedEndpoints []string // e.g. "/responses", "/chat/completions"
	Capabilities       ModelCapabilities
}

// SupportsResponses reports whether this model's supported_endpoints include
// "/responses".
func (m Model) SupportsResponses() bool {
	for _, ep := range m.SupportedEndpoints {
		if ep == "/responses" {
			return true
		}
	}
	return false
}

// Catalog is a read-mostly registry of models served by the single upstream.
// It is populated once at startup by an external loader. Lookup and All take
// the read lock and Load takes the write lock, so hot-path reads are not
// lock-free.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]Model
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{models: make(map[string]Model)}
}

// Load replaces the catalog's contents, keyed by Model.ID.
func (c *Catalog) Load(models []Model) {
	next := make(map[string]Model, len(models))
	for _, m := range models {
		next[m.ID] = m
	}
	c.mu.Lock()
	c.models = next
	c.mu.Unlock()
}

// Lookup returns the Model registered under id, if any.
func (c *Catalog) Lookup(id string) (Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[id]
	return m, ok
}

// SupportsResponses reports whether the model is known and supports the
// Responses endpoint. An unknown model is treated as ChatCompletions-only.
func (c *Catalog) SupportsResponses(id string) bool {
	m, ok := c.Lookup(id)
	return ok && m.SupportsResponses()
}

// All returns every registered model, for a /v1/models listing. The order
// follows map iteration and is not stable between calls.
func (c *Catalog) All() []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Model, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	return out
}

var (
	globalOnce sync.Once
	global     *Catalog
)

// GetGlobalCatalog returns the process-wide Catalog singleton, constructing
// it on first use.
func GetGlobalCatalog() *Catalog {
	globalOnce.Do(func() {
		global = NewCatalog()
	})
	return global
}
