package container

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FieldPlan is an injectable struct field.
type FieldPlan struct {
	Owner    reflect.Type
	Level    []int
	Index    int
	Name     string
	Type     reflect.Type
	Optional bool
}

// PropertyPlan is an injectable field written through its setter method.
type PropertyPlan struct {
	Owner    reflect.Type
	Level    []int
	Name     string
	Setter   string
	Type     reflect.Type
	Optional bool
}

// MethodPlan is an injection method called with resolved arguments.
type MethodPlan struct {
	Owner  reflect.Type
	Level  []int
	Name   string
	Params []Param
}

// Plan is the cached activation metadata of one concrete type.
type Plan struct {
	Type        reflect.Type
	Constructor *Constructor
	Params      []Param
	Fields      []FieldPlan
	Properties  []PropertyPlan
	Methods     []MethodPlan

	activate ActivateFunc
}

// ParamTypes lists the constructor parameter types.
func (p *Plan) ParamTypes() []reflect.Type {
	out := make([]reflect.Type, len(p.Params))
	for i, param := range p.Params {
		out[i] = param.Type
	}
	return out
}

// Activate invokes the prepared allocation function.
func (p *Plan) Activate(args []reflect.Value) (reflect.Value, error) {
	return p.activate(args)
}

// HasMembers reports whether instances of the plan need member injection.
func (p *Plan) HasMembers() bool {
	return len(p.Fields)+len(p.Properties)+len(p.Methods) > 0
}

// Activator caches activation plans per concrete type. It is safe for
// concurrent use and shared by every container configured with it.
type Activator struct {
	inspector Inspector
	allocator Allocator

	plans sync.Map
	group singleflight.Group
}

// NewActivator creates an activator. Nil arguments fall back to the default
// annotations and the reflect allocator.
func NewActivator(inspector Inspector, allocator Allocator) *Activator {
	if inspector == nil {
		inspector = defaultAnnotations
	}
	if allocator == nil {
		allocator = ReflectAllocator{}
	}
	return &Activator{inspector: inspector, allocator: allocator}
}

var defaultActivator = NewActivator(defaultAnnotations, ReflectAllocator{})

// DefaultActivator returns the process-wide activator.
func DefaultActivator() *Activator {
	return defaultActivator
}

// Plan returns the activation plan of t, building it on first use.
func (a *Activator) Plan(t reflect.Type) (*Plan, error) {
	if p, ok := a.plans.Load(t); ok {
		return p.(*Plan), nil
	}

	v, e, _ := a.group.Do(fmt.Sprintf("%p", t), func() (interface{}, error) {
		if p, ok := a.plans.Load(t); ok {
			return p, nil
		}
		p, e := a.build(t)
		if e != nil {
			return nil, e
		}
		a.plans.Store(t, p)
		return p, nil
	})
	if e != nil {
		return nil, e
	}

	return v.(*Plan), nil
}

// Cached reports whether a plan for t is cached.
func (a *Activator) Cached(t reflect.Type) bool {
	_, ok := a.plans.Load(t)
	return ok
}

// Forget drops the cached plan of t.
func (a *Activator) Forget(t reflect.Type) {
	a.plans.Delete(t)
}

// Reset drops every cached plan.
func (a *Activator) Reset() {
	a.plans.Range(func(k, _ interface{}) bool {
		a.plans.Delete(k)
		return true
	})
}

func (a *Activator) build(t reflect.Type) (*Plan, error) {
	if t == nil {
		return nil, errors.New("cannot activate nil type")
	}
	if t.Kind() == reflect.Interface {
		return nil, fmt.Errorf("cannot activate interface [%s]", typeName(t))
	}

	p := &Plan{Type: t}
	if ctor := selectConstructor(a.inspector.Constructors(t)); ctor != nil {
		p.Constructor = ctor
		p.Params = ctor.Params
	}
	p.activate = a.allocator.Prepare(t, p.Constructor)

	var s reflect.Type
	switch {
	case t.Kind() == reflect.Struct:
		s = t
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		s = t.Elem()
	}
	if s != nil {
		if e := a.collect(p, s, nil, map[reflect.Type]bool{}); e != nil {
			return nil, e
		}
		if e := a.methods(p, s); e != nil {
			return nil, e
		}
	}

	return p, nil
}

// selectConstructor prefers the designated constructor, then the one with the
// most parameters, then the first registered.
func selectConstructor(ctors []*Constructor) *Constructor {
	var best *Constructor
	for _, c := range ctors {
		if c.Designated {
			return c
		}
		if best == nil || len(c.Params) > len(best.Params) {
			best = c
		}
	}
	return best
}

// collect walks level s and then its embedded structs. Each level contributes
// the fields declared on it.
func (a *Activator) collect(p *Plan, s reflect.Type, level []int, seen map[reflect.Type]bool) error {
	if seen[s] {
		return nil
	}
	seen[s] = true

	var embedded []int
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		m, tagged := a.inspector.InjectableField(s, f)

		if f.Anonymous && !tagged && structType(f.Type) != nil {
			embedded = append(embedded, i)
			continue
		}
		if !tagged {
			continue
		}

		if m.Setter != "" {
			prop, e := property(s, f, level, m)
			if e != nil {
				return e
			}
			p.Properties = append(p.Properties, prop)
			continue
		}

		if !f.IsExported() {
			return &MemberInjectionError{
				Kind:  FieldMember,
				Owner: s,
				Name:  f.Name,
				Type:  f.Type,
				Err:   errors.New("unexported field cannot be injected, use a setter"),
			}
		}
		p.Fields = append(p.Fields, FieldPlan{
			Owner:    s,
			Level:    level,
			Index:    i,
			Name:     f.Name,
			Type:     f.Type,
			Optional: m.Optional,
		})
	}

	for _, i := range embedded {
		sub := append(append([]int(nil), level...), i)
		if e := a.collect(p, structType(s.Field(i).Type), sub, seen); e != nil {
			return e
		}
	}

	return nil
}

// methods collects the injection methods of the method set of *root. A name
// shadowed by a shallower level belongs to that level, and methods run
// shallowest level first.
func (a *Activator) methods(p *Plan, root reflect.Type) error {
	pt := reflect.PointerTo(root)
	for _, prop := range p.Properties {
		if _, ok := pt.MethodByName(prop.Setter); !ok {
			return &MemberInjectionError{
				Kind:  PropertyMember,
				Owner: prop.Owner,
				Name:  prop.Name,
				Type:  prop.Type,
				Err:   fmt.Errorf("setter %s is ambiguous on [%s]", prop.Setter, typeName(root)),
			}
		}
	}

	for j := 0; j < pt.NumMethod(); j++ {
		m := pt.Method(j)
		owner, level, ok := a.locate(root, nil, m.Name, map[reflect.Type]bool{})
		if !ok {
			continue
		}
		declared, _ := reflect.PointerTo(owner).MethodByName(m.Name)
		defaults, ok := a.inspector.InjectableMethod(owner, declared)
		if !ok {
			continue
		}
		in := make([]reflect.Type, m.Type.NumIn()-1)
		for k := range in {
			in[k] = m.Type.In(k + 1)
		}
		p.Methods = append(p.Methods, MethodPlan{
			Owner:  owner,
			Level:  level,
			Name:   m.Name,
			Params: params(in, defaults),
		})
	}
	sort.SliceStable(p.Methods, func(i, j int) bool {
		return len(p.Methods[i].Level) < len(p.Methods[j].Level)
	})

	return nil
}

// locate finds the level declaring method name as seen from s, following
// Go's depth rule. Names reached through injected embedded fields are not
// owned by any level.
func (a *Activator) locate(s reflect.Type, level []int, name string, seen map[reflect.Type]bool) (reflect.Type, []int, bool) {
	if seen[s] {
		return nil, nil, false
	}
	seen[s] = true

	var walk []int
	foreign := false
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.Anonymous || !hasMethod(f.Type, name) {
			continue
		}
		if _, tagged := a.inspector.InjectableField(s, f); !tagged && structType(f.Type) != nil {
			walk = append(walk, i)
		} else {
			foreign = true
		}
	}
	if declares(s, name) || (len(walk) == 0 && !foreign) {
		return s, level, true
	}

	var (
		owner reflect.Type
		at    []int
	)
	for _, i := range walk {
		sub := append(append([]int(nil), level...), i)
		t, l, ok := a.locate(structType(s.Field(i).Type), sub, name, seen)
		if ok && (owner == nil || len(l) < len(at)) {
			owner, at = t, l
		}
	}

	return owner, at, owner != nil
}

func hasMethod(t reflect.Type, name string) bool {
	if _, ok := t.MethodByName(name); ok {
		return true
	}
	if t.Kind() == reflect.Interface || t.Kind() == reflect.Ptr {
		return false
	}
	_, ok := reflect.PointerTo(t).MethodByName(name)
	return ok
}

// declares reports whether s itself declares method name. Methods promoted
// from embedded fields are compiler generated wrappers.
func declares(s reflect.Type, name string) bool {
	for _, t := range []reflect.Type{reflect.PointerTo(s), s} {
		m, ok := t.MethodByName(name)
		if !ok {
			continue
		}
		fn := runtime.FuncForPC(m.Func.Pointer())
		if fn == nil {
			continue
		}
		if file, _ := fn.FileLine(fn.Entry()); file != "<autogenerated>" {
			return true
		}
	}
	return false
}

func property(s reflect.Type, f reflect.StructField, level []int, m Member) (PropertyPlan, error) {
	setter, ok := reflect.PointerTo(s).MethodByName(m.Setter)
	if !ok || setter.Type.NumIn() != 2 {
		return PropertyPlan{}, &MemberInjectionError{
			Kind:  PropertyMember,
			Owner: s,
			Name:  f.Name,
			Type:  f.Type,
			Err:   fmt.Errorf("setter %s(v) not found", m.Setter),
		}
	}

	return PropertyPlan{
		Owner:    s,
		Level:    level,
		Name:     f.Name,
		Setter:   m.Setter,
		Type:     setter.Type.In(1),
		Optional: m.Optional,
	}, nil
}

func structType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		return t
	}
	return nil
}
