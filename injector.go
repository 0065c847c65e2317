package container

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

// Inject fills the injectable members of instance, which must be a non-nil
// pointer. Instances implementing Wireable are wired by their Wire method.
func (c *Container) Inject(instance interface{}) error {
	if w, ok := instance.(Wireable); ok {
		return c.wire(w, c.frame)
	}

	v := reflect.ValueOf(instance)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("inject requires a non-nil pointer, got %T", instance)
	}
	plan, e := c.opts.activator.Plan(v.Type())
	if e != nil {
		return fmt.Errorf("activation plan of [%s]: %w", typeName(v.Type()), e)
	}

	return c.inject(v, plan, c.frame)
}

// inject runs member injection on a pointer or an addressable struct.
func (c *Container) inject(v reflect.Value, plan *Plan, fr *frame) error {
	if w, ok := wireable(v); ok {
		return c.wire(w, fr)
	}
	if !plan.HasMembers() {
		return nil
	}

	root := v
	if root.Kind() == reflect.Ptr {
		if root.IsNil() {
			return nil
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return nil
	}

	for _, f := range plan.Fields {
		if e := c.injectField(root, f, fr); e != nil {
			return &MemberInjectionError{Kind: FieldMember, Owner: f.Owner, Name: f.Name, Type: f.Type, Err: e}
		}
	}
	for _, p := range plan.Properties {
		if e := c.injectProperty(root, p, fr); e != nil {
			return &MemberInjectionError{Kind: PropertyMember, Owner: p.Owner, Name: p.Name, Type: p.Type, Err: e}
		}
	}
	for _, m := range plan.Methods {
		if e := c.injectMethod(root, m, fr); e != nil {
			return &MemberInjectionError{Kind: MethodMember, Owner: m.Owner, Name: m.Name, Type: reflect.PointerTo(m.Owner), Err: e}
		}
	}

	return nil
}

func (c *Container) injectField(root reflect.Value, f FieldPlan, fr *frame) error {
	lv, e := levelOf(root, f.Level)
	if e != nil {
		return e
	}
	target := lv.Field(f.Index)
	if !target.CanSet() {
		return errors.New("field is not settable")
	}

	v, e := c.resolve(f.Type, fr)
	if e != nil {
		if optionalMiss(e, f.Type, f.Optional) {
			return nil
		}
		return e
	}
	target.Set(valueOf(f.Type, v))

	return nil
}

func (c *Container) injectProperty(root reflect.Value, p PropertyPlan, fr *frame) error {
	if _, e := levelOf(root, p.Level); e != nil {
		return e
	}

	v, e := c.resolve(p.Type, fr)
	if e != nil {
		if optionalMiss(e, p.Type, p.Optional) {
			return nil
		}
		return e
	}
	_, e = call(root.Addr().MethodByName(p.Setter), []reflect.Value{valueOf(p.Type, v)})

	return e
}

// injectMethod calls through the method set of the root so that promotion
// and shadowing follow Go's rules.
func (c *Container) injectMethod(root reflect.Value, m MethodPlan, fr *frame) error {
	if _, e := levelOf(root, m.Level); e != nil {
		return e
	}

	var e error
	args := make([]reflect.Value, len(m.Params))
	for i, p := range m.Params {
		if args[i], e = c.argument(p, fr); e != nil {
			return e
		}
	}
	outs, e := call(root.Addr().MethodByName(m.Name), args)
	if e != nil {
		return e
	}
	if len(outs) == 1 && !outs[0].IsNil() {
		return outs[0].Interface().(error)
	}

	return nil
}

func (c *Container) wire(w Wireable, fr *frame) (e error) {
	defer func() {
		if x := recover(); x != nil {
			e = recovered(x)
		}
	}()
	if e := w.Wire(c.traced(fr)); e != nil {
		return fmt.Errorf("wire [%T]: %w", w, e)
	}
	return nil
}

func wireable(v reflect.Value) (Wireable, bool) {
	if v.Kind() == reflect.Struct && v.CanAddr() {
		v = v.Addr()
	}
	if !v.CanInterface() {
		return nil, false
	}
	w, ok := v.Interface().(Wireable)
	return w, ok
}

// levelOf walks the embedded path from root, allocating nil embedded
// pointers on the way. Unexported embedded fields are reached through
// their address.
func levelOf(root reflect.Value, path []int) (reflect.Value, error) {
	v := root
	for _, i := range path {
		f := v.Field(i)
		if !f.CanSet() {
			if !f.CanAddr() {
				return reflect.Value{}, fmt.Errorf("embedded [%s] is not addressable", typeName(f.Type()))
			}
			f = reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
		}
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				f.Set(reflect.New(f.Type().Elem()))
			}
			f = f.Elem()
		}
		v = f
	}
	return v, nil
}

func optionalMiss(e error, t reflect.Type, optional bool) bool {
	uc, ok := e.(*UnknownContractError)
	return ok && optional && uc.Contract == t
}

func call(fn reflect.Value, args []reflect.Value) (outs []reflect.Value, e error) {
	defer func() {
		if x := recover(); x != nil {
			outs, e = nil, recovered(x)
		}
	}()
	return fn.Call(args), nil
}
