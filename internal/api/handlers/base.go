// Package handlers wires the translator registry, routing, and upstream
// client into gin endpoints for each client-facing dialect.
package handlers

import (
	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/registry"
	"github.com/copilotgw/gateway/internal/upstream"
)

// Base carries the collaborators every dialect handler needs: the
// hot-reloadable config, the model catalog, and the single upstream client.
type Base struct {
	Store    *config.Store
	Catalog  *registry.Catalog
	Upstream *upstream.Client
}

// NewBase constructs a Base shared across all dialect handlers.
func NewBase(store *config.Store, catalog *registry.Catalog, client *upstream.Client) *Base {
	return &Base{Store: store, Catalog: catalog, Upstream: client}
}
