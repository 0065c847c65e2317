package container

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/enorith/supports/reflection"
)

var (
	ErrUnknownContract      = errors.New("unknown contract")
	ErrContractDefinition   = errors.New("contract definition")
	ErrConstructorInjection = errors.New("constructor injection")
	ErrFieldInjection       = errors.New("field injection")
	ErrPropertyInjection    = errors.New("property injection")
	ErrMethodInjection      = errors.New("method injection")
	ErrInvalidBindingState  = errors.New("invalid binding state")
	ErrCyclicDependency     = errors.New("cyclic dependency")
	ErrDisposed             = errors.New("container disposed")
)

// UnknownContractError is returned when no resolver for a contract exists
// anywhere in the scope chain.
type UnknownContractError struct {
	Contract reflect.Type
}

func (e *UnknownContractError) Error() string {
	return fmt.Sprintf("cannot resolve contract [%s]", typeName(e.Contract))
}

func (e *UnknownContractError) Is(target error) bool { return target == ErrUnknownContract }

// ContractDefinitionError is returned at commit time when a concrete type does
// not satisfy one of its bound contracts.
type ContractDefinitionError struct {
	Concrete reflect.Type
	Contract reflect.Type
}

func (e *ContractDefinitionError) Error() string {
	return fmt.Sprintf("[%s] does not implement contract [%s]", typeName(e.Concrete), typeName(e.Contract))
}

func (e *ContractDefinitionError) Is(target error) bool { return target == ErrContractDefinition }

// ConstructorInjectionError wraps a failure raised while resolving constructor
// arguments or invoking the constructor.
type ConstructorInjectionError struct {
	Type   reflect.Type
	Params []reflect.Type
	Err    error
}

// Signature renders the constructor as Type(Param, ...).
func (e *ConstructorInjectionError) Signature() string {
	names := make([]string, len(e.Params))
	for i, p := range e.Params {
		names[i] = typeName(p)
	}
	return fmt.Sprintf("%s(%s)", typeName(e.Type), strings.Join(names, ", "))
}

func (e *ConstructorInjectionError) Error() string {
	return fmt.Sprintf("%v occurred while instantiating [%s] using constructor %s", e.Err, typeName(e.Type), e.Signature())
}

func (e *ConstructorInjectionError) Unwrap() error { return e.Err }

func (e *ConstructorInjectionError) Is(target error) bool { return target == ErrConstructorInjection }

// MemberKind tells which injectable member failed.
type MemberKind int

const (
	FieldMember MemberKind = iota
	PropertyMember
	MethodMember
)

func (k MemberKind) String() string {
	switch k {
	case FieldMember:
		return "field"
	case PropertyMember:
		return "property"
	case MethodMember:
		return "method"
	}
	return "member"
}

// MemberInjectionError wraps a resolution or assignment failure of one
// injectable field, property or method.
type MemberInjectionError struct {
	Kind  MemberKind
	Owner reflect.Type
	Name  string
	Type  reflect.Type
	Err   error
}

func (e *MemberInjectionError) Error() string {
	return fmt.Sprintf("inject %s [%s.%s] of type [%s]: %v", e.Kind, typeName(e.Owner), e.Name, typeName(e.Type), e.Err)
}

func (e *MemberInjectionError) Unwrap() error { return e.Err }

func (e *MemberInjectionError) Is(target error) bool {
	switch e.Kind {
	case FieldMember:
		return target == ErrFieldInjection
	case PropertyMember:
		return target == ErrPropertyInjection
	case MethodMember:
		return target == ErrMethodInjection
	}
	return false
}

// CyclicDependencyError is returned when a resolver is re-entered in the same
// scope while it is still producing its instance.
type CyclicDependencyError struct {
	// Path lists the contracts from the first occurrence of the cycle to the
	// re-entered one.
	Path []reflect.Type
}

func (e *CyclicDependencyError) Error() string {
	names := make([]string, len(e.Path))
	for i, p := range e.Path {
		names[i] = typeName(p)
	}
	return fmt.Sprintf("cyclic dependency %s", strings.Join(names, " -> "))
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclicDependency }

func invalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidBindingState, fmt.Sprintf(format, args...))
}

// recovered turns a recovered panic value into an error.
func recovered(x interface{}) error {
	switch v := x.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	}
	return fmt.Errorf("panic: %v", x)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return reflection.TypeString(t)
}
