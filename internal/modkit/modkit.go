package modkit

import (
	phttp "ejournal/internal/platform/net/http"
)

// Module is the common surface for modules that can mount routes and expose ports
type Module interface {
	// MountRoutes mounts HTTP routes under the provided router seam
	MountRoutes(r phttp.Router)
	// Ports returns a module specific port set for cross wiring
	Ports() any
	// Name returns the module name
	Name() string
}

// MountAll mounts every module on r in order
func MountAll(r phttp.Router, mods ...Module) {
	for _, m := range mods {
		m.MountRoutes(r)
	}
}

// PortsAs type asserts a module's port set
func PortsAs[T any](m Module) (T, bool) {
	v, ok := m.Ports().(T)
	return v, ok
}
