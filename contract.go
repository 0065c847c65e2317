package container

import (
	"io"
	"reflect"

	"github.com/enorith/supports/reflection"
)

// Interface is the resolving surface of a container.
type Interface interface {
	Resolve(contract interface{}) (interface{}, error)
	ResolveAll(contract interface{}) ([]interface{}, error)
	Construct(concrete interface{}) (interface{}, error)
	Inject(instance interface{}) error
	Invoke(f interface{}) ([]reflect.Value, error)
	Populate(out interface{}) error
	HasBinding(contract interface{}) bool
}

var _ Interface = (*Container)(nil)

// Disposable is implemented by instances that release resources when their
// owning container is disposed. Instances with Dispose() or Close() error
// are tracked as well.
type Disposable interface {
	Dispose() error
}

// Wireable is implemented by types that inject their own dependencies.
// The injector calls Wire instead of walking the type's injectable members.
type Wireable interface {
	Wire(c *Container) error
}

var containerType = reflect.TypeFor[*Container]()

// contractOf normalises a contract given as reflect.Type, sample value or
// typed nil pointer to an interface.
func contractOf(abs interface{}) reflect.Type {
	if abs == nil {
		return nil
	}
	t, ok := abs.(reflect.Type)
	if !ok {
		t = reflection.TypeOf(abs)
	}
	if t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Interface {
		return t.Elem()
	}
	return t
}

func contractsOf(abs []interface{}) []reflect.Type {
	out := make([]reflect.Type, 0, len(abs))
	for _, a := range abs {
		if t := contractOf(a); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// disposeInstance releases instance if it is disposable. It reports whether
// the instance was disposable.
func disposeInstance(instance interface{}) (bool, error) {
	switch d := instance.(type) {
	case Disposable:
		return true, d.Dispose()
	case interface{ Dispose() }:
		d.Dispose()
		return true, nil
	case io.Closer:
		return true, d.Close()
	}
	return false, nil
}

func isDisposable(instance interface{}) bool {
	switch instance.(type) {
	case Disposable, interface{ Dispose() }, io.Closer:
		return true
	}
	return false
}
