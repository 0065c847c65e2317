package container

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Param describes one argument of a constructor or injectable method.
type Param struct {
	Type       reflect.Type
	HasDefault bool
	Default    reflect.Value
}

// Constructor is a function producing a concrete type, registered for
// constructor injection. It has the form func(deps...) T or
// func(deps...) (T, error).
type Constructor struct {
	Func       reflect.Value
	Out        reflect.Type
	Params     []Param
	Designated bool

	returnsError bool
}

// Member describes how an injectable struct field is written.
type Member struct {
	// Setter names the method used to write a property. Empty for fields.
	Setter   string
	Optional bool
}

// Inspector is the host capability telling the activator which constructor
// to use and which members are injectable.
type Inspector interface {
	// Constructors returns the candidate constructors of t in declaration order.
	Constructors(t reflect.Type) []*Constructor
	// InjectableField reports whether f, declared directly on owner, is injected.
	InjectableField(owner reflect.Type, f reflect.StructField) (Member, bool)
	// InjectableMethod reports whether m, declared directly on owner, is an
	// injection method and returns its parameter defaults by index.
	InjectableMethod(owner reflect.Type, m reflect.Method) (map[int]reflect.Value, bool)
}

// Mark annotates a registered constructor or method.
type Mark func(*marks)

type marks struct {
	designated bool
	defaults   map[int]interface{}
}

// Designated marks a constructor as the one to use for injection.
func Designated() Mark {
	return func(m *marks) { m.designated = true }
}

// DefaultArg declares the value used for parameter index when its contract
// cannot be resolved. A nil value means the parameter type's zero value.
func DefaultArg(index int, value interface{}) Mark {
	return func(m *marks) {
		if m.defaults == nil {
			m.defaults = make(map[int]interface{})
		}
		m.defaults[index] = value
	}
}

type methodKey struct {
	owner reflect.Type
	name  string
}

// Annotations is the default Inspector. Constructors and method defaults are
// registered explicitly; fields are marked with the `inject` struct tag:
//
//	Logger Logger  `inject:""`
//	Cache  Cache   `inject:"optional"`
//	store  Store   `inject:"setter"` // written through SetStore
//
// Methods whose name starts with "Inject" followed by an upper-case letter
// are injection methods.
type Annotations struct {
	mu      sync.RWMutex
	ctors   map[reflect.Type][]*Constructor
	methods map[methodKey]map[int]reflect.Value

	tag    string
	prefix string
}

// NewAnnotations creates an empty annotation registry.
func NewAnnotations() *Annotations {
	return &Annotations{
		ctors:   make(map[reflect.Type][]*Constructor),
		methods: make(map[methodKey]map[int]reflect.Value),
		tag:     "inject",
		prefix:  "Inject",
	}
}

// Constructor registers fn as a constructor of the type it returns.
func (a *Annotations) Constructor(fn interface{}, opts ...Mark) (*Constructor, error) {
	ctor, e := newConstructor(fn, opts...)
	if e != nil {
		return nil, e
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ctor.Designated {
		for _, c := range a.ctors[ctor.Out] {
			if c.Designated {
				return nil, fmt.Errorf("constructor of [%s] already designated", typeName(ctor.Out))
			}
		}
	}
	a.ctors[ctor.Out] = append(a.ctors[ctor.Out], ctor)

	return ctor, nil
}

// Method declares parameter defaults for the injection method name of owner.
func (a *Annotations) Method(owner interface{}, name string, opts ...Mark) error {
	t := contractOf(owner)
	if t == nil {
		return fmt.Errorf("method owner is nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok {
		return fmt.Errorf("[%s] has no method [%s]", typeName(t), name)
	}

	var mk marks
	for _, o := range opts {
		o(&mk)
	}
	in := make([]reflect.Type, m.Type.NumIn()-1)
	for i := range in {
		in[i] = m.Type.In(i + 1)
	}
	defaults, e := defaultValues(in, mk.defaults)
	if e != nil {
		return fmt.Errorf("method [%s.%s]: %w", typeName(t), name, e)
	}

	a.mu.Lock()
	a.methods[methodKey{t, name}] = defaults
	a.mu.Unlock()

	return nil
}

func (a *Annotations) Constructors(t reflect.Type) []*Constructor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ctors := a.ctors[t]
	out := make([]*Constructor, len(ctors))
	copy(out, ctors)
	return out
}

func (a *Annotations) InjectableField(_ reflect.Type, f reflect.StructField) (Member, bool) {
	tag, ok := f.Tag.Lookup(a.tag)
	if !ok || tag == "-" {
		return Member{}, false
	}

	var m Member
	for _, opt := range strings.Split(tag, ",") {
		switch strings.TrimSpace(opt) {
		case "optional":
			m.Optional = true
		case "setter":
			m.Setter = "Set" + upperFirst(f.Name)
		}
	}
	return m, true
}

func (a *Annotations) InjectableMethod(owner reflect.Type, m reflect.Method) (map[int]reflect.Value, bool) {
	if !strings.HasPrefix(m.Name, a.prefix) {
		return nil, false
	}
	rest := m.Name[len(a.prefix):]
	r, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsUpper(r) {
		return nil, false
	}
	// receiver plus at least one dependency
	if m.Type.NumIn() < 2 || m.Type.IsVariadic() {
		return nil, false
	}
	switch m.Type.NumOut() {
	case 0:
	case 1:
		if m.Type.Out(0) != errorType {
			return nil, false
		}
	default:
		return nil, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.methods[methodKey{owner, m.Name}], true
}

var errorType = reflect.TypeFor[error]()

func newConstructor(fn interface{}, opts ...Mark) (*Constructor, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("constructor must be a non-nil func, got %T", fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("constructor [%s] must not be variadic", t)
	}

	ctor := &Constructor{Func: v}
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("constructor [%s] second result must be error", t)
		}
		ctor.returnsError = true
	default:
		return nil, fmt.Errorf("constructor [%s] must return T or (T, error)", t)
	}
	ctor.Out = t.Out(0)

	var mk marks
	for _, o := range opts {
		o(&mk)
	}
	ctor.Designated = mk.designated

	in := make([]reflect.Type, t.NumIn())
	for i := range in {
		in[i] = t.In(i)
	}
	defaults, e := defaultValues(in, mk.defaults)
	if e != nil {
		return nil, fmt.Errorf("constructor [%s]: %w", t, e)
	}
	ctor.Params = params(in, defaults)

	return ctor, nil
}

func defaultValues(in []reflect.Type, raw map[int]interface{}) (map[int]reflect.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[int]reflect.Value, len(raw))
	for i, v := range raw {
		if i < 0 || i >= len(in) {
			return nil, fmt.Errorf("default for parameter %d out of range", i)
		}
		if v == nil {
			out[i] = reflect.Zero(in[i])
			continue
		}
		dv := reflect.ValueOf(v)
		if !dv.Type().AssignableTo(in[i]) {
			return nil, fmt.Errorf("default %T for parameter %d is not assignable to [%s]", v, i, typeName(in[i]))
		}
		out[i] = dv
	}
	return out, nil
}

func params(in []reflect.Type, defaults map[int]reflect.Value) []Param {
	ps := make([]Param, len(in))
	for i, t := range in {
		ps[i] = Param{Type: t}
		if d, ok := defaults[i]; ok {
			ps[i].HasDefault = true
			ps[i].Default = d
		}
	}
	return ps
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}

var defaultAnnotations = NewAnnotations()

// DefaultAnnotations returns the process-wide annotation registry used by
// the default activator.
func DefaultAnnotations() *Annotations {
	return defaultAnnotations
}

// RegisterConstructor registers fn on the default annotations and drops any
// activation plan already cached for the type it returns.
func RegisterConstructor(fn interface{}, opts ...Mark) error {
	ctor, e := defaultAnnotations.Constructor(fn, opts...)
	if e != nil {
		return e
	}
	defaultActivator.Forget(ctor.Out)
	return nil
}

// RegisterMethod declares injection method defaults on the default
// annotations. Cached plans are dropped since the method may be promoted
// into any embedding type.
func RegisterMethod(owner interface{}, name string, opts ...Mark) error {
	if e := defaultAnnotations.Method(owner, name, opts...); e != nil {
		return e
	}
	defaultActivator.Reset()
	return nil
}
