package container

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Resolver produces, and for cached lifetimes keeps, the instance of a binding.
type Resolver interface {
	Kind() Kind
	Lifetime() Lifetime
	Resolution() Resolution
	// DeclaringContainer is the container the binding was registered in.
	DeclaringContainer() *Container
	// Concrete is the type the resolver produces.
	Concrete() reflect.Type
	// Resolutions counts how often the resolver was asked for an instance.
	Resolutions() int64
	Resolve(requesting *Container) (interface{}, error)

	resolve(requesting *Container, contract reflect.Type, fr *frame) (interface{}, error)
	bind(declaring *Container)
	dispose() error
}

// producer creates a fresh instance. owner is the container the instance is
// built in, requesting the one that asked for it.
type producer func(owner, requesting *Container, fr *frame) (interface{}, error)

func typeProducer(concrete reflect.Type) producer {
	return func(owner, _ *Container, fr *frame) (interface{}, error) {
		return owner.construct(concrete, fr)
	}
}

func factoryProducer(fn func(c *Container) (interface{}, error)) producer {
	return func(_, requesting *Container, fr *frame) (v interface{}, e error) {
		defer func() {
			if x := recover(); x != nil {
				v, e = nil, recovered(x)
			}
		}()
		return fn(requesting.traced(fr))
	}
}

type resolverBase struct {
	kind       Kind
	lifetime   Lifetime
	resolution Resolution
	concrete   reflect.Type
	produce    producer
	declaring  *Container
	callSite   string

	resolutions atomic.Int64
}

func (r *resolverBase) Kind() Kind                     { return r.kind }
func (r *resolverBase) Lifetime() Lifetime             { return r.lifetime }
func (r *resolverBase) Resolution() Resolution         { return r.resolution }
func (r *resolverBase) DeclaringContainer() *Container { return r.declaring }
func (r *resolverBase) Concrete() reflect.Type         { return r.concrete }
func (r *resolverBase) Resolutions() int64             { return r.resolutions.Load() }

func (r *resolverBase) bind(declaring *Container) {
	if r.declaring != nil {
		panic("container: resolver already bound to a container")
	}
	r.declaring = declaring
}

func (r *resolverBase) dispose() error { return nil }

func newResolver(kind Kind, lifetime Lifetime, resolution Resolution, concrete reflect.Type, produce producer) Resolver {
	var (
		r    Resolver
		base *resolverBase
	)
	switch lifetime {
	case Singleton:
		s := &singletonResolver{}
		r, base = s, &s.resolverBase
	case Scoped:
		s := &scopedResolver{}
		r, base = s, &s.resolverBase
	default:
		t := &transientResolver{}
		r, base = t, &t.resolverBase
	}
	base.kind = kind
	base.lifetime = lifetime
	base.resolution = resolution
	base.concrete = concrete
	base.produce = produce

	return r
}

// valueResolver returns a pre-built instance.
type valueResolver struct {
	resolverBase
	value interface{}
}

func newValueResolver(value interface{}) *valueResolver {
	r := &valueResolver{value: value}
	r.kind = KindValue
	r.lifetime = Singleton
	r.concrete = reflect.TypeOf(value)
	return r
}

func (r *valueResolver) Resolve(requesting *Container) (interface{}, error) {
	return r.resolve(requesting, r.concrete, requesting.frame)
}

func (r *valueResolver) resolve(*Container, reflect.Type, *frame) (interface{}, error) {
	r.resolutions.Add(1)
	return r.value, nil
}

func (r *valueResolver) dispose() error {
	_, e := disposeInstance(r.value)
	return e
}

type box struct {
	v interface{}
}

// cell is a lazily filled, once-only instance slot.
type cell struct {
	mu   sync.Mutex
	slot atomic.Pointer[box]
}

// fill returns the cached instance or produces it exactly once.
func (c *cell) fill(r Resolver, s *scope, contract reflect.Type, fr *frame, produce func(*frame) (interface{}, error)) (interface{}, error) {
	if b := c.slot.Load(); b != nil {
		return b.v, nil
	}
	if e := fr.check(r, s, contract); e != nil {
		return nil, e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b := c.slot.Load(); b != nil {
		return b.v, nil
	}

	next := fr.push(r, s, contract)
	defer next.finish()

	v, e := produce(next)
	if e != nil {
		return nil, e
	}
	c.slot.Store(&box{v})

	return v, nil
}

// singletonResolver keeps one instance per declaring container.
type singletonResolver struct {
	resolverBase
	cell cell
}

func (r *singletonResolver) Resolve(requesting *Container) (interface{}, error) {
	return r.resolve(requesting, r.concrete, requesting.frame)
}

func (r *singletonResolver) resolve(requesting *Container, contract reflect.Type, fr *frame) (interface{}, error) {
	r.resolutions.Add(1)
	owner := r.declaring
	return r.cell.fill(r, owner.scope, contract, fr, func(next *frame) (interface{}, error) {
		v, e := r.produce(owner, requesting, next)
		if e != nil {
			return nil, e
		}
		owner.track(v)
		return v, nil
	})
}

// scopedResolver keeps one instance per resolving container.
type scopedResolver struct {
	resolverBase
	cells sync.Map // *scope -> *cell
}

func (r *scopedResolver) Resolve(requesting *Container) (interface{}, error) {
	return r.resolve(requesting, r.concrete, requesting.frame)
}

func (r *scopedResolver) resolve(requesting *Container, contract reflect.Type, fr *frame) (interface{}, error) {
	r.resolutions.Add(1)
	s := requesting.scope
	v, loaded := r.cells.LoadOrStore(s, &cell{})
	if !loaded {
		requesting.onDispose(func() { r.cells.Delete(s) })
	}

	owner := s.handle
	return v.(*cell).fill(r, s, contract, fr, func(next *frame) (interface{}, error) {
		v, e := r.produce(owner, requesting, next)
		if e != nil {
			return nil, e
		}
		owner.track(v)
		return v, nil
	})
}

// transientResolver produces a new instance on every call. The instance is
// owned by the requesting container.
type transientResolver struct {
	resolverBase
}

func (r *transientResolver) Resolve(requesting *Container) (interface{}, error) {
	return r.resolve(requesting, r.concrete, requesting.frame)
}

func (r *transientResolver) resolve(requesting *Container, contract reflect.Type, fr *frame) (interface{}, error) {
	r.resolutions.Add(1)
	owner := r.declaring
	if e := fr.check(r, owner.scope, contract); e != nil {
		return nil, e
	}

	next := fr.push(r, owner.scope, contract)
	defer next.finish()

	v, e := r.produce(owner, requesting, next)
	if e != nil {
		return nil, e
	}
	requesting.track(v)

	return v, nil
}

// frame is one production in progress on a resolution chain.
type frame struct {
	resolver Resolver
	scope    *scope
	contract reflect.Type
	parent   *frame
	done     atomic.Bool
}

func (f *frame) push(r Resolver, s *scope, contract reflect.Type) *frame {
	return &frame{resolver: r, scope: s, contract: contract, parent: f}
}

func (f *frame) finish() {
	f.done.Store(true)
}

// check fails when (r, s) is still producing further up the chain.
func (f *frame) check(r Resolver, s *scope, contract reflect.Type) error {
	for n := f; n != nil; n = n.parent {
		if n.done.Load() || n.resolver != r || n.scope != s {
			continue
		}
		var path []reflect.Type
		for m := f; m != n.parent; m = m.parent {
			path = append(path, m.contract)
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		return &CyclicDependencyError{Path: append(path, contract)}
	}
	return nil
}
