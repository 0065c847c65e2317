package container

import (
	"fmt"
	"reflect"
)

// Binding associates one or more contracts with exactly one resolver.
type Binding struct {
	Resolver  Resolver
	Contracts []reflect.Type
}

// ValidatedBinding checks that concrete satisfies every contract.
func ValidatedBinding(r Resolver, concrete reflect.Type, contracts ...reflect.Type) (*Binding, error) {
	if concrete == nil {
		return nil, invalidState("binding has no concrete type")
	}
	if len(contracts) == 0 {
		return nil, invalidState("binding of [%s] has no contracts", typeName(concrete))
	}

	seen := make(map[reflect.Type]bool, len(contracts))
	unique := make([]reflect.Type, 0, len(contracts))
	for _, contract := range contracts {
		if contract == nil {
			return nil, invalidState("binding of [%s] has a nil contract", typeName(concrete))
		}
		if !concrete.AssignableTo(contract) {
			return nil, &ContractDefinitionError{Concrete: concrete, Contract: contract}
		}
		if !seen[contract] {
			seen[contract] = true
			unique = append(unique, contract)
		}
	}

	return &Binding{Resolver: r, Contracts: unique}, nil
}

// BindingBuilder accumulates one binding for contract T.
//
//	container.Bind[Logger](b).To((*ConsoleLogger)(nil)).AsSingleton()
//	container.Bind[Repo](b).FromInstance(repo).AsSingle()
type BindingBuilder[T interface{}] struct {
	builder *Builder

	concrete    reflect.Type
	instance    interface{}
	hasInstance bool
	factory     func(c *Container) (interface{}, error)

	interfaces []reflect.Type
	expand     bool
	self       bool

	lifetime   Lifetime
	resolution Resolution
	committed  bool
	err        error
}

// Bind starts a binding for contract T with transient lifetime and lazy
// resolution.
func Bind[T interface{}](b *Builder) *BindingBuilder[T] {
	return &BindingBuilder[T]{builder: b, lifetime: Transient, resolution: Lazy}
}

// To sets the concrete type, given as reflect.Type or sample value.
func (bb *BindingBuilder[T]) To(concrete interface{}) *BindingBuilder[T] {
	if bb.hasInstance || bb.factory != nil {
		bb.fail("To cannot be combined with FromInstance or FromFactory")
		return bb
	}
	bb.concrete = contractOf(concrete)
	if bb.concrete == nil {
		bb.fail("To requires a concrete type")
	}
	return bb
}

// FromInstance binds a pre-built instance. Instance bindings are singletons.
func (bb *BindingBuilder[T]) FromInstance(instance T) *BindingBuilder[T] {
	if bb.concrete != nil || bb.factory != nil {
		bb.fail("FromInstance cannot be combined with To or FromFactory")
		return bb
	}
	bb.instance = instance
	bb.hasInstance = true
	bb.lifetime = Singleton
	return bb
}

// FromFactory binds a production function called with the requesting
// container.
func (bb *BindingBuilder[T]) FromFactory(fn func(c *Container) (T, error)) *BindingBuilder[T] {
	if bb.concrete != nil || bb.hasInstance {
		bb.fail("FromFactory cannot be combined with To or FromInstance")
		return bb
	}
	if fn == nil {
		bb.fail("FromFactory requires a function")
		return bb
	}
	bb.factory = func(c *Container) (interface{}, error) {
		return fn(c)
	}
	return bb
}

// BindInterfaces replaces the bound contracts with the given interfaces, plus
// T when T is itself an interface.
func (bb *BindingBuilder[T]) BindInterfaces(interfaces ...interface{}) *BindingBuilder[T] {
	bb.expand = true
	for _, t := range contractsOf(interfaces) {
		if t.Kind() != reflect.Interface {
			bb.fail(fmt.Sprintf("BindInterfaces expects interfaces, got [%s]", typeName(t)))
			return bb
		}
		bb.interfaces = append(bb.interfaces, t)
	}
	return bb
}

// BindInterfacesAndSelf is BindInterfaces plus the concrete type itself.
func (bb *BindingBuilder[T]) BindInterfacesAndSelf(interfaces ...interface{}) *BindingBuilder[T] {
	bb.self = true
	return bb.BindInterfaces(interfaces...)
}

func (bb *BindingBuilder[T]) AsSingle() error { return bb.AsSingleton() }

func (bb *BindingBuilder[T]) AsSingleton() error { return bb.commit(Singleton, Lazy) }

func (bb *BindingBuilder[T]) AsTransient() error { return bb.commit(Transient, Lazy) }

func (bb *BindingBuilder[T]) AsScoped() error { return bb.commit(Scoped, Lazy) }

func (bb *BindingBuilder[T]) AsEagerSingleton() error { return bb.commit(Singleton, Eager) }

func (bb *BindingBuilder[T]) fail(msg string) {
	if bb.err == nil {
		bb.err = invalidState("%s", msg)
	}
}

func (bb *BindingBuilder[T]) commit(lifetime Lifetime, resolution Resolution) error {
	if bb.committed {
		return invalidState("binding of [%s] already committed", typeName(reflect.TypeFor[T]()))
	}
	if bb.err != nil {
		return bb.err
	}
	if lifetime == Transient && resolution == Eager {
		return invalidState("transient binding cannot be eager")
	}
	bb.committed = true

	contract := reflect.TypeFor[T]()
	product := contract
	switch {
	case bb.hasInstance:
		product = reflect.TypeOf(bb.instance)
	case bb.concrete != nil:
		product = bb.concrete
	}

	contracts := []reflect.Type{contract}
	if bb.expand {
		contracts = contracts[:0]
		if contract.Kind() == reflect.Interface {
			contracts = append(contracts, contract)
		}
		contracts = append(contracts, bb.interfaces...)
		if bb.self && product != nil {
			contracts = append(contracts, product)
		}
	}

	switch {
	case bb.hasInstance:
		return bb.builder.registerValue(bb.instance, contracts)
	case bb.factory != nil:
		return bb.builder.registerFactory(bb.factory, contract, contracts, lifetime, resolution)
	}
	return bb.builder.registerType(product, contracts, lifetime, resolution)
}
