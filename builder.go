package container

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// Builder accumulates bindings and freezes them into a Container.
type Builder struct {
	opts     options
	name     string
	parent   *Container
	bindings []*Binding
	onBuilt  []func(c *Container)
	built    bool
}

// NewBuilder creates a builder for a root container.
func NewBuilder(opts ...Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Builder{opts: o}
}

// SetName names the container, shown in diagnostics.
func (b *Builder) SetName(name string) *Builder {
	b.name = name
	return b
}

// SetParent makes the built container a child scope of parent.
func (b *Builder) SetParent(parent *Container) *Builder {
	b.parent = parent
	return b
}

// OnBuilt registers a callback run once the container is built and its eager
// bindings resolved.
func (b *Builder) OnBuilt(fn func(c *Container)) *Builder {
	b.onBuilt = append(b.onBuilt, fn)
	return b
}

// HasBinding reports whether the builder already binds contract.
func (b *Builder) HasBinding(contract interface{}) bool {
	t := contractOf(contract)
	for _, bd := range b.bindings {
		for _, c := range bd.Contracts {
			if c == t {
				return true
			}
		}
	}
	return false
}

// RegisterType binds concrete, constructed reflectively, to contracts.
func (b *Builder) RegisterType(concrete interface{}, contracts []interface{}, lifetime Lifetime, resolution Resolution) error {
	t := contractOf(concrete)
	if t == nil {
		return invalidState("RegisterType requires a concrete type")
	}
	cs := contractsOf(contracts)
	if len(cs) == 0 {
		cs = []reflect.Type{t}
	}
	return b.registerType(t, cs, lifetime, resolution)
}

// RegisterValue binds a pre-built instance to contracts. Without contracts
// the instance's own type is used.
func (b *Builder) RegisterValue(value interface{}, contracts ...interface{}) error {
	if value == nil {
		return invalidState("RegisterValue requires a non-nil value")
	}
	cs := contractsOf(contracts)
	if len(cs) == 0 {
		cs = []reflect.Type{reflect.TypeOf(value)}
	}
	return b.registerValue(value, cs)
}

// RegisterFactory binds fn, of the form func(*Container) T or
// func(*Container) (T, error), to contracts. Without contracts T is used.
func (b *Builder) RegisterFactory(fn interface{}, contracts []interface{}, lifetime Lifetime, resolution Resolution) error {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return invalidState("factory must be a non-nil func, got %T", fn)
	}
	ft := v.Type()
	if ft.NumIn() != 1 || ft.In(0) != containerType ||
		ft.NumOut() < 1 || ft.NumOut() > 2 || (ft.NumOut() == 2 && ft.Out(1) != errorType) {
		return invalidState("factory must be func(*Container) T or func(*Container) (T, error), got %s", ft)
	}

	product := ft.Out(0)
	cs := contractsOf(contracts)
	if len(cs) == 0 {
		cs = []reflect.Type{product}
	}
	factory := func(c *Container) (interface{}, error) {
		outs := v.Call([]reflect.Value{reflect.ValueOf(c)})
		if len(outs) == 2 && !outs[1].IsNil() {
			return nil, outs[1].Interface().(error)
		}
		return outs[0].Interface(), nil
	}

	return b.registerFactory(factory, product, cs, lifetime, resolution)
}

func (b *Builder) registerType(concrete reflect.Type, contracts []reflect.Type, lifetime Lifetime, resolution Resolution) error {
	if concrete.Kind() == reflect.Interface {
		return invalidState("cannot bind interface [%s] as a concrete type", typeName(concrete))
	}
	return b.add(newResolver(KindType, lifetime, resolution, concrete, typeProducer(concrete)), concrete, contracts)
}

func (b *Builder) registerValue(value interface{}, contracts []reflect.Type) error {
	if value == nil {
		return invalidState("instance binding requires a non-nil value")
	}
	r := newValueResolver(value)
	return b.add(r, r.concrete, contracts)
}

func (b *Builder) registerFactory(fn func(c *Container) (interface{}, error), product reflect.Type, contracts []reflect.Type, lifetime Lifetime, resolution Resolution) error {
	return b.add(newResolver(KindFactory, lifetime, resolution, product, factoryProducer(fn)), product, contracts)
}

func (b *Builder) add(r Resolver, concrete reflect.Type, contracts []reflect.Type) error {
	if b.built {
		return invalidState("builder already built")
	}
	if r.Lifetime() == Transient && r.Resolution() == Eager {
		return invalidState("transient binding of [%s] cannot be eager", typeName(concrete))
	}

	bd, e := ValidatedBinding(r, concrete, contracts...)
	if e != nil {
		return e
	}
	if b.opts.callSites {
		if base := baseOf(r); base != nil {
			base.callSite = callSite()
		}
	}
	b.bindings = append(b.bindings, bd)

	return nil
}

// Build freezes the bindings into a container, links it to its parent and
// resolves eager bindings in registration order.
func (b *Builder) Build() (*Container, error) {
	if b.built {
		return nil, invalidState("builder already built")
	}
	if b.parent != nil && b.parent.Disposed() {
		return nil, fmt.Errorf("%w: cannot build a child of [%s]", ErrDisposed, b.parent.Name())
	}
	b.built = true

	s := &scope{
		id:       uuid.New(),
		name:     b.name,
		parent:   b.parent,
		bindings: make(map[reflect.Type][]Resolver),
		list:     b.bindings,
		opts:     b.opts,
		tracked:  make(map[interface{}]struct{}),
	}
	if s.name == "" {
		s.name = s.id.String()
	}
	c := &Container{scope: s}
	s.handle = c

	for _, bd := range b.bindings {
		bd.Resolver.bind(c)
		for _, contract := range bd.Contracts {
			s.bindings[contract] = append(s.bindings[contract], bd.Resolver)
		}
	}
	if b.parent != nil {
		b.parent.addChild(c)
	}

	logger := s.opts.logger.With("container", s.name)
	logger.Debug("container built", "bindings", len(b.bindings), "parent", parentName(b.parent))

	for _, bd := range b.bindings {
		if bd.Resolver.Resolution() != Eager {
			continue
		}
		logger.Debug("eager resolution", "contract", typeName(bd.Contracts[0]))
		if _, e := bd.Resolver.resolve(c, bd.Contracts[0], nil); e != nil {
			_ = c.Dispose()
			return nil, fmt.Errorf("eager resolution of [%s]: %w", typeName(bd.Contracts[0]), e)
		}
	}

	s.opts.observer.ContainerBuilt(c)
	for _, fn := range b.onBuilt {
		fn(c)
	}

	return c, nil
}

func parentName(p *Container) string {
	if p == nil {
		return ""
	}
	return p.Name()
}

func baseOf(r Resolver) *resolverBase {
	switch v := r.(type) {
	case *valueResolver:
		return &v.resolverBase
	case *singletonResolver:
		return &v.resolverBase
	case *scopedResolver:
		return &v.resolverBase
	case *transientResolver:
		return &v.resolverBase
	}
	return nil
}

const pkgPrefix = "github.com/enorith/container/v2."

// callSite returns the first caller outside this package.
func callSite() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, pkgPrefix) {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return ""
		}
	}
}
