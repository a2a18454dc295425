package module

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Descriptor is a module's boot-time identity. Immutable after
// registration; the set of modules is fixed at build time.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Category    string `json:"category"`
	APIPrefix   string `json:"apiPrefix"`
}

// Module is the contract every feature area satisfies to be mounted:
// identity, idempotent schema bootstrap, and a router built under the
// descriptor's prefix.
type Module interface {
	Descriptor() Descriptor
	// InitSchema creates the module's tables. It must be idempotent:
	// repeated boots never error and never destroy data.
	InitSchema(ctx context.Context) error
	// Routes registers the module's handlers on its mounted group.
	Routes(rg *gin.RouterGroup)
}
