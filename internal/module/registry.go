package module

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/marketflow-backend/internal/logger"
)

// Registry holds the static module set in registration order. Order is
// used for bootstrap sequencing only, never for priority.
type Registry struct {
	log     *logger.Logger
	modules []Module
	byID    map[string]Module
	prefix  map[string]string
}

func NewRegistry(baseLog *logger.Logger) *Registry {
	return &Registry{
		log:    baseLog.With("component", "ModuleRegistry"),
		byID:   make(map[string]Module),
		prefix: make(map[string]string),
	}
}

// Register adds a module. Duplicate ids and duplicate api prefixes are
// configuration errors, fatal at boot rather than recoverable.
func (r *Registry) Register(m Module) error {
	desc := m.Descriptor()
	if desc.ID == "" {
		return fmt.Errorf("module registered with empty id")
	}
	if desc.APIPrefix == "" {
		return fmt.Errorf("module %q registered with empty api prefix", desc.ID)
	}
	if _, exists := r.byID[desc.ID]; exists {
		return fmt.Errorf("module id %q already registered", desc.ID)
	}
	if owner, exists := r.prefix[desc.APIPrefix]; exists {
		return fmt.Errorf("api prefix %q of module %q collides with module %q", desc.APIPrefix, desc.ID, owner)
	}
	r.byID[desc.ID] = m
	r.prefix[desc.APIPrefix] = desc.ID
	r.modules = append(r.modules, m)
	r.log.Info("Module registered", "module", desc.ID, "prefix", desc.APIPrefix)
	return nil
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.Descriptor())
	}
	return out
}

// Bootstrap runs every module's InitSchema in registration order. The
// first failure aborts the boot; there is no partial module
// availability.
func (r *Registry) Bootstrap(ctx context.Context) error {
	for _, m := range r.modules {
		desc := m.Descriptor()
		r.log.Info("Bootstrapping module schema...", "module", desc.ID)
		if err := m.InitSchema(ctx); err != nil {
			return fmt.Errorf("init schema for module %q: %w", desc.ID, err)
		}
	}
	return nil
}

// Mount attaches every module's routes under its api prefix on the given
// group. Bootstrap must have succeeded first.
func (r *Registry) Mount(root *gin.RouterGroup) {
	for _, m := range r.modules {
		desc := m.Descriptor()
		rg := root.Group(desc.APIPrefix)
		m.Routes(rg)
		r.log.Info("Module mounted", "module", desc.ID, "prefix", desc.APIPrefix)
	}
}
