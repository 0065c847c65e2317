package container

import (
	"fmt"
	"reflect"
)

// Resolve resolves contract T and asserts the result.
//
//	logger, err := container.Resolve[Logger](c)
func Resolve[T interface{}](c Interface) (T, error) {
	var zero T
	v, e := c.Resolve(reflect.TypeFor[T]())
	if e != nil {
		return zero, e
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("contract [%s] resolved to %T", typeName(reflect.TypeFor[T]()), v)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure. Meant for startup wiring.
func MustResolve[T interface{}](c Interface) T {
	v, e := Resolve[T](c)
	if e != nil {
		panic(e)
	}
	return v
}

// ResolveAll resolves every binding of contract T.
func ResolveAll[T interface{}](c Interface) ([]T, error) {
	vs, e := c.ResolveAll(reflect.TypeFor[T]())
	if e != nil {
		return nil, e
	}
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		typed, _ := v.(T)
		out = append(out, typed)
	}
	return out, nil
}

// Construct builds concrete type T reflectively.
func Construct[T interface{}](c Interface) (T, error) {
	var zero T
	v, e := c.Construct(reflect.TypeFor[T]())
	if e != nil {
		return zero, e
	}
	return v.(T), nil
}
