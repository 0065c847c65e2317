package container

import (
	"reflect"
	"time"
)

// ResolveEvent describes a successful contract resolution.
type ResolveEvent struct {
	Container *Container
	Contract  reflect.Type
	Resolver  Resolver
}

// ConstructEvent describes a reflective construction.
type ConstructEvent struct {
	Container *Container
	Type      reflect.Type
	Duration  time.Duration
	Err       error
}

// Observer receives diagnostics from containers. It cannot influence
// resolution.
type Observer interface {
	ContainerBuilt(c *Container)
	ContainerDisposed(c *Container)
	Resolved(e ResolveEvent)
	Constructed(e ConstructEvent)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) ContainerBuilt(*Container)    {}
func (NopObserver) ContainerDisposed(*Container) {}
func (NopObserver) Resolved(ResolveEvent)        {}
func (NopObserver) Constructed(ConstructEvent)   {}

// BindingInfo is a snapshot of one binding for diagnostics.
type BindingInfo struct {
	Contracts   []reflect.Type
	Kind        Kind
	Lifetime    Lifetime
	Resolution  Resolution
	Concrete    reflect.Type
	Resolutions int64
	CallSite    string
}
