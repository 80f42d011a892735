// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package registry implements the frame graph's resource registry: a
// process-lifetime string-keyed map from logical resource names to
// their physical GPU backing, plus support for host-owned external
// resources that the registry does not destroy.
package registry

import (
	"github.com/nyxforge/framegraph/gpu"
)

// Kind tags what a logical resource actually is.
type Kind int

const (
	KindTexture Kind = iota
	KindTextureCube
	KindBuffer
)

// Resource is a logical resource: a name, its kind, and the physical
// handle backing it. Texture and TextureCube resources carry a
// gpu.TextureHandle in Texture; Buffer resources carry a
// gpu.BufferHandle in Buffer.
type Resource struct {
	Name     string
	Kind     Kind
	Texture  gpu.TextureHandle
	Buffer   gpu.BufferHandle

	// external is true for resources registered with AddExternalResource:
	// the registry never destroys their physical backing.
	external bool
}

// Registry maps logical resource names to physical resources.
type Registry struct {
	device *gpu.Device
	byName map[string]*Resource
}

// New returns a Registry that creates physical resources through d.
func New(d *gpu.Device) *Registry {
	return &Registry{device: d, byName: make(map[string]*Resource)}
}

// CreateTexture creates a new texture-backed logical resource and
// registers it under name, delegating to the device wrapper for the
// physical object. If name was already bound, the old physical object
// is destroyed immediately (tie-break: creation replaces).
func (r *Registry) CreateTexture(name string, kind Kind, desc gpu.TextureDesc) (*Resource, error) {
	h, err := r.device.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	r.replace(name, &Resource{Name: name, Kind: kind, Texture: h})
	return r.byName[name], nil
}

// CreateBuffer creates a new buffer-backed logical resource and
// registers it under name.
func (r *Registry) CreateBuffer(name string, desc gpu.BufferDesc) (*Resource, error) {
	h, err := r.device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	r.replace(name, &Resource{Name: name, Kind: KindBuffer, Buffer: h})
	return r.byName[name], nil
}

// replace destroys the physical backing of any prior non-external
// binding of name, then installs res.
func (r *Registry) replace(name string, res *Resource) {
	if old, ok := r.byName[name]; ok && !old.external {
		r.destroyPhysical(old)
	}
	r.byName[name] = res
}

func (r *Registry) destroyPhysical(res *Resource) {
	switch res.Kind {
	case KindBuffer:
		r.device.DestroyBuffer(res.Buffer)
	default:
		r.device.DestroyTexture(res.Texture)
	}
}

// AddExternalResource inserts a caller-owned logical resource. The
// registry never destroys external resources on cleanup or replace.
func (r *Registry) AddExternalResource(name string, res Resource) {
	res.Name = name
	res.external = true
	r.byName[name] = &res
}

// GetResource returns the logical resource registered under name, or
// gpu.ErrResourceNotFound if there is none.
func (r *Registry) GetResource(name string) (*Resource, error) {
	res, ok := r.byName[name]
	if !ok {
		return nil, gpu.ErrResourceNotFound
	}
	return res, nil
}

// Cleanup destroys the physical backing of every non-external
// resource and removes it from the registry; external resources stay
// registered. It is called by the frame graph on Resize, before
// recompiling.
func (r *Registry) Cleanup() {
	for name, res := range r.byName {
		if !res.external {
			r.destroyPhysical(res)
			delete(r.byName, name)
		}
	}
}
