package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// scope is the state shared by every handle of one container.
type scope struct {
	id       uuid.UUID
	name     string
	parent   *Container
	handle   *Container
	bindings map[reflect.Type][]Resolver
	list     []*Binding
	opts     options

	mu          sync.Mutex
	children    []*Container
	disposables []interface{}
	tracked     map[interface{}]struct{}
	releases    []func()
	disposed    atomic.Bool
}

// Container resolves contracts to instances and owns the disposables of one
// scope. Containers are created by a Builder.
//
// Factories receive a handle of the requesting container that carries the
// resolution chain in progress; it behaves like the container itself.
type Container struct {
	*scope
	frame *frame
}

// ID returns the unique identity of the container.
func (c *Container) ID() uuid.UUID { return c.id }

// Name returns the container name, its ID when none was set.
func (c *Container) Name() string { return c.name }

// Parent returns the parent scope, nil for a root container.
func (c *Container) Parent() *Container { return c.parent }

// Children returns the live child scopes.
func (c *Container) Children() []*Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Container, len(c.children))
	copy(out, c.children)
	return out
}

// Disposed reports whether Dispose was called.
func (c *Container) Disposed() bool { return c.disposed.Load() }

// Resolve returns the instance of contract from the latest binding found in
// this container or, failing that, up the scope chain.
func (c *Container) Resolve(contract interface{}) (interface{}, error) {
	return c.resolve(contractOf(contract), c.frame)
}

// ResolveAll returns an instance from every binding of contract along the
// scope chain, ancestors first and each level in registration order.
func (c *Container) ResolveAll(contract interface{}) ([]interface{}, error) {
	t := contractOf(contract)
	if c.disposed.Load() {
		return nil, fmt.Errorf("%w: cannot resolve [%s]", ErrDisposed, typeName(t))
	}

	var chain []*Container
	for s := c.handle; s != nil; s = s.parent {
		chain = append(chain, s)
	}

	var out []interface{}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, r := range chain[i].bindings[t] {
			v, e := r.resolve(c, t, c.frame)
			if e != nil {
				return nil, e
			}
			c.opts.observer.Resolved(ResolveEvent{Container: c.handle, Contract: t, Resolver: r})
			out = append(out, v)
		}
	}

	return out, nil
}

// HasBinding reports whether contract is bound anywhere in the scope chain.
func (c *Container) HasBinding(contract interface{}) bool {
	return c.lookup(contractOf(contract)) != nil
}

// Lifetime returns the lifetime of the binding Resolve would use.
func (c *Container) Lifetime(contract interface{}) (Lifetime, bool) {
	r := c.lookup(contractOf(contract))
	if r == nil {
		return Transient, false
	}
	return r.Lifetime(), true
}

// Construct builds concrete reflectively, bypassing contract lookup. The
// instance is not tracked for disposal.
func (c *Container) Construct(concrete interface{}) (interface{}, error) {
	t := contractOf(concrete)
	if t == nil {
		return nil, errors.New("construct requires a type")
	}
	return c.construct(t, c.frame)
}

// Populate resolves the element type of out and stores the instance in it.
//
//	var logger Logger
//	err := c.Populate(&logger)
func (c *Container) Populate(out interface{}) error {
	o := reflect.ValueOf(out)
	if !o.IsValid() || o.Kind() != reflect.Ptr || o.IsNil() {
		return fmt.Errorf("populate requires a non-nil pointer, got %T", out)
	}
	t := o.Elem().Type()
	v, e := c.resolve(t, c.frame)
	if e != nil {
		return e
	}
	o.Elem().Set(valueOf(t, v))

	return nil
}

// Invoke calls f with every parameter resolved from the container. A non-nil
// error as the last result is returned as the error as well.
func (c *Container) Invoke(f interface{}) (outs []reflect.Value, e error) {
	fun, ok := f.(reflect.Value)
	if !ok {
		fun = reflect.ValueOf(f)
	}
	if !fun.IsValid() || fun.Kind() != reflect.Func {
		return nil, fmt.Errorf("invoke failed, expect func, got %T", f)
	}

	t := fun.Type()
	in := make([]reflect.Value, t.NumIn())
	for i := range in {
		v, e := c.resolve(t.In(i), c.frame)
		if e != nil {
			return nil, fmt.Errorf("invoke %s, parameter [%d]: %w", t, i, e)
		}
		in[i] = valueOf(t.In(i), v)
	}

	defer func() {
		if x := recover(); x != nil {
			outs, e = nil, recovered(x)
		}
	}()
	outs = fun.Call(in)
	if n := len(outs); n > 0 && t.Out(n-1) == errorType && !outs[n-1].IsNil() {
		return outs, outs[n-1].Interface().(error)
	}

	return outs, nil
}

// Child starts a builder for a child scope. The child inherits the options
// of this container.
func (c *Container) Child() *Builder {
	return &Builder{opts: c.opts, parent: c.handle}
}

// CreateChild builds a child scope with the bindings installed by install.
func (c *Container) CreateChild(install func(b *Builder) error) (*Container, error) {
	b := c.Child()
	if install != nil {
		if e := install(b); e != nil {
			return nil, e
		}
	}
	return b.Build()
}

// Bindings returns a snapshot of the container's own bindings in
// registration order.
func (c *Container) Bindings() []BindingInfo {
	out := make([]BindingInfo, 0, len(c.list))
	for _, bd := range c.list {
		info := BindingInfo{
			Contracts:   bd.Contracts,
			Kind:        bd.Resolver.Kind(),
			Lifetime:    bd.Resolver.Lifetime(),
			Resolution:  bd.Resolver.Resolution(),
			Concrete:    bd.Resolver.Concrete(),
			Resolutions: bd.Resolver.Resolutions(),
		}
		if base := baseOf(bd.Resolver); base != nil {
			info.CallSite = base.callSite
		}
		out = append(out, info)
	}
	return out
}

// Dispose releases every tracked disposable exactly once, in reverse order of
// creation, disposes instance bindings and detaches from the parent. Child
// scopes are left alone; use DisposeTree to cascade.
func (c *Container) Dispose() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}
	if c.parent != nil {
		c.parent.removeChild(c.handle)
	}

	c.mu.Lock()
	disposables := c.disposables
	releases := c.releases
	c.disposables, c.releases = nil, nil
	c.tracked = make(map[interface{}]struct{})
	c.mu.Unlock()

	logger := c.opts.logger.With("container", c.name)
	var errs []error
	for i := len(disposables) - 1; i >= 0; i-- {
		if e := safeDispose(func() error {
			_, e := disposeInstance(disposables[i])
			return e
		}); e != nil {
			logger.Warn("dispose failed", "instance", fmt.Sprintf("%T", disposables[i]), "error", e)
			errs = append(errs, fmt.Errorf("dispose [%T]: %w", disposables[i], e))
		}
	}
	for i := len(c.list) - 1; i >= 0; i-- {
		r := c.list[i].Resolver
		if e := safeDispose(r.dispose); e != nil {
			logger.Warn("dispose failed", "instance", typeName(r.Concrete()), "error", e)
			errs = append(errs, fmt.Errorf("dispose [%s]: %w", typeName(r.Concrete()), e))
		}
	}
	for _, release := range releases {
		release()
	}

	logger.Debug("container disposed", "disposables", len(disposables))
	c.opts.observer.ContainerDisposed(c.handle)

	return errors.Join(errs...)
}

// DisposeTree disposes the child scopes, latest first, then the container.
func (c *Container) DisposeTree() error {
	children := c.Children()
	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if e := children[i].DisposeTree(); e != nil {
			errs = append(errs, e)
		}
	}
	if e := c.Dispose(); e != nil {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func (c *Container) resolve(t reflect.Type, fr *frame) (interface{}, error) {
	if t == nil {
		return nil, &UnknownContractError{}
	}
	if c.disposed.Load() {
		return nil, fmt.Errorf("%w: cannot resolve [%s]", ErrDisposed, typeName(t))
	}

	r := c.lookup(t)
	if r == nil {
		if t == containerType {
			return c, nil
		}
		return nil, &UnknownContractError{Contract: t}
	}

	v, e := r.resolve(c, t, fr)
	if e != nil {
		return nil, e
	}
	c.opts.observer.Resolved(ResolveEvent{Container: c.handle, Contract: t, Resolver: r})

	return v, nil
}

// lookup returns the latest resolver of t along the scope chain.
func (c *Container) lookup(t reflect.Type) Resolver {
	for s := c.handle; s != nil; s = s.parent {
		if rs := s.bindings[t]; len(rs) > 0 {
			return rs[len(rs)-1]
		}
	}
	return nil
}

func (c *Container) construct(t reflect.Type, fr *frame) (interface{}, error) {
	if c.disposed.Load() {
		return nil, fmt.Errorf("%w: cannot construct [%s]", ErrDisposed, typeName(t))
	}

	start := time.Now()
	v, e := c.build(t, fr)
	c.opts.observer.Constructed(ConstructEvent{Container: c.handle, Type: t, Duration: time.Since(start), Err: e})

	return v, e
}

func (c *Container) build(t reflect.Type, fr *frame) (interface{}, error) {
	plan, e := c.opts.activator.Plan(t)
	if e != nil {
		return nil, fmt.Errorf("activation plan of [%s]: %w", typeName(t), e)
	}

	instance, e := c.activate(plan, fr)
	if e != nil {
		return nil, &ConstructorInjectionError{Type: t, Params: plan.ParamTypes(), Err: e}
	}
	if instance.Kind() == reflect.Struct && !instance.CanAddr() {
		addressable := reflect.New(instance.Type()).Elem()
		addressable.Set(instance)
		instance = addressable
	}
	if e := c.inject(instance, plan, fr); e != nil {
		return nil, e
	}

	return instance.Interface(), nil
}

func (c *Container) activate(plan *Plan, fr *frame) (v reflect.Value, e error) {
	defer func() {
		if x := recover(); x != nil {
			v, e = reflect.Value{}, recovered(x)
		}
	}()

	args := make([]reflect.Value, len(plan.Params))
	for i, p := range plan.Params {
		if args[i], e = c.argument(p, fr); e != nil {
			return reflect.Value{}, e
		}
	}

	return plan.Activate(args)
}

// argument resolves p, falling back to its default when p's own contract is
// unknown.
func (c *Container) argument(p Param, fr *frame) (reflect.Value, error) {
	v, e := c.resolve(p.Type, fr)
	if e != nil {
		if uc, ok := e.(*UnknownContractError); ok && p.HasDefault && uc.Contract == p.Type {
			return p.Default, nil
		}
		return reflect.Value{}, e
	}
	return valueOf(p.Type, v), nil
}

// traced returns a handle of c carrying the resolution chain fr.
func (c *Container) traced(fr *frame) *Container {
	if fr == c.frame {
		return c
	}
	return &Container{scope: c.scope, frame: fr}
}

// track records instance for disposal if it is disposable.
func (c *Container) track(instance interface{}) {
	if instance == nil || !isDisposable(instance) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if reflect.TypeOf(instance).Kind() == reflect.Ptr {
		if _, ok := c.tracked[instance]; ok {
			return
		}
		c.tracked[instance] = struct{}{}
	}
	c.disposables = append(c.disposables, instance)
}

func (c *Container) onDispose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases = append(c.releases, fn)
}

func (c *Container) addChild(child *Container) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, child)
}

func (c *Container) removeChild(child *Container) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ch := range c.children {
		if ch == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}

func safeDispose(fn func() error) (e error) {
	defer func() {
		if x := recover(); x != nil {
			e = recovered(x)
		}
	}()
	return fn()
}

func valueOf(t reflect.Type, v interface{}) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}
