package container

import (
	"fmt"
	"reflect"
)

// ActivateFunc produces an instance from resolved constructor arguments.
type ActivateFunc func(args []reflect.Value) (reflect.Value, error)

// Allocator prepares the activation function of a type. ctor is nil when the
// type has no registered constructor and must be allocated as a zero value.
type Allocator interface {
	Prepare(t reflect.Type, ctor *Constructor) ActivateFunc
}

// ReflectAllocator allocates through reflect.New and reflect.Value.Call.
type ReflectAllocator struct{}

func (ReflectAllocator) Prepare(t reflect.Type, ctor *Constructor) ActivateFunc {
	if ctor == nil {
		if t.Kind() == reflect.Ptr {
			elem := t.Elem()
			return func([]reflect.Value) (reflect.Value, error) {
				return reflect.New(elem), nil
			}
		}
		return func([]reflect.Value) (reflect.Value, error) {
			return reflect.New(t).Elem(), nil
		}
	}

	fn := ctor.Func
	returnsError := ctor.returnsError
	return func(args []reflect.Value) (reflect.Value, error) {
		outs := fn.Call(args)
		if returnsError && !outs[1].IsNil() {
			return reflect.Value{}, outs[1].Interface().(error)
		}
		v := outs[0]
		if (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil() {
			return reflect.Value{}, fmt.Errorf("constructor of [%s] returned nil", typeName(t))
		}
		return v, nil
	}
}
