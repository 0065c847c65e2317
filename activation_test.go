package container_test

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enorith/container/v2"
)

type ctorPick struct {
	via string
}

func TestActivator_ConstructorSelection(t *testing.T) {
	t.Parallel()

	none := func() *ctorPick { return &ctorPick{via: "none"} }
	one := func(Logger) *ctorPick { return &ctorPick{via: "one"} }
	oneClock := func(Clock) *ctorPick { return &ctorPick{via: "one clock"} }
	two := func(Logger, Clock) *ctorPick { return &ctorPick{via: "two"} }

	tests := []struct {
		name     string
		register func(a *container.Annotations) error
		want     string
	}{
		{"most parameters", func(a *container.Annotations) error {
			return registerAll(a, none, two, one)
		}, "two"},
		{"first of equally long", func(a *container.Annotations) error {
			return registerAll(a, oneClock, one)
		}, "one clock"},
		{"designated", func(a *container.Annotations) error {
			if e := registerAll(a, two); e != nil {
				return e
			}
			_, e := a.Constructor(none, container.Designated())
			return e
		}, "none"},
		{"default allocation", func(*container.Annotations) error { return nil }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ann := container.NewAnnotations()
			require.NoError(t, tt.register(ann))

			b := isolated(t, ann)
			require.NoError(t, b.RegisterValue(&ConsoleLogger{}, (*Logger)(nil)))
			require.NoError(t, b.RegisterValue(&fixedClock{}, (*Clock)(nil)))
			c, e := b.Build()
			require.NoError(t, e)
			defer c.Dispose()

			v, e := container.Construct[*ctorPick](c)
			require.NoError(t, e)
			assert.Equal(t, tt.want, v.via)
		})
	}
}

func registerAll(a *container.Annotations, fns ...interface{}) error {
	for _, fn := range fns {
		if _, e := a.Constructor(fn); e != nil {
			return e
		}
	}
	return nil
}

func TestAnnotations_ConstructorValidation(t *testing.T) {
	t.Parallel()

	a := container.NewAnnotations()

	_, e := a.Constructor(func() *ctorPick { return nil }, container.Designated())
	require.NoError(t, e)
	_, e = a.Constructor(func(Logger) *ctorPick { return nil }, container.Designated())
	assert.Error(t, e, "second designated constructor")

	_, e = a.Constructor("not a func")
	assert.Error(t, e)
	_, e = a.Constructor(func(...Logger) *ctorPick { return nil })
	assert.Error(t, e)
	_, e = a.Constructor(func() (*ctorPick, int) { return nil, 0 })
	assert.Error(t, e)
	_, e = a.Constructor(func(Logger) *ctorPick { return nil }, container.DefaultArg(3, nil))
	assert.Error(t, e)
	_, e = a.Constructor(func(Logger) *ctorPick { return nil }, container.DefaultArg(0, 12))
	assert.Error(t, e)

	ctor, e := a.Constructor(func(Logger, int) (*ctorPick, error) { return nil, nil }, container.DefaultArg(1, 12))
	require.NoError(t, e)
	require.Len(t, ctor.Params, 2)
	assert.False(t, ctor.Params[0].HasDefault)
	assert.True(t, ctor.Params[1].HasDefault)
	assert.EqualValues(t, 12, ctor.Params[1].Default.Int())
	assert.Equal(t, reflect.TypeFor[*ctorPick](), ctor.Out)
}

type failing struct{}

func TestActivator_ConstructorFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   interface{}
		want string
	}{
		{"error result", func() (*failing, error) { return nil, assert.AnError }, assert.AnError.Error()},
		{"panic", func() *failing { panic("constructor panicked") }, "constructor panicked"},
		{"nil result", func() *failing { return nil }, "returned nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ann := container.NewAnnotations()
			_, e := ann.Constructor(tt.fn)
			require.NoError(t, e)

			c, e := isolated(t, ann).Build()
			require.NoError(t, e)
			defer c.Dispose()

			_, e = c.Construct((*failing)(nil))
			require.Error(t, e)
			assert.ErrorIs(t, e, container.ErrConstructorInjection)
			assert.Contains(t, e.Error(), tt.want)
		})
	}
}

type countingInspector struct {
	*container.Annotations
	calls atomic.Int32
}

func (i *countingInspector) Constructors(t reflect.Type) []*container.Constructor {
	i.calls.Add(1)
	return i.Annotations.Constructors(t)
}

func TestActivator_PlanCachedOnce(t *testing.T) {
	t.Parallel()

	insp := &countingInspector{Annotations: container.NewAnnotations()}
	a := container.NewActivator(insp, nil)
	typ := reflect.TypeFor[*ctorPick]()

	var wg sync.WaitGroup
	plans := make([]*container.Plan, 32)
	for i := range plans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plans[i], _ = a.Plan(typ)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, insp.calls.Load())
	for _, p := range plans {
		assert.Same(t, plans[0], p)
	}
	assert.True(t, a.Cached(typ))

	a.Forget(typ)
	assert.False(t, a.Cached(typ))
	_, e := a.Plan(typ)
	require.NoError(t, e)
	assert.EqualValues(t, 2, insp.calls.Load())

	a.Reset()
	assert.False(t, a.Cached(typ))
}

func TestActivator_PlanErrors(t *testing.T) {
	t.Parallel()

	a := container.NewActivator(container.NewAnnotations(), nil)

	_, e := a.Plan(reflect.TypeFor[Logger]())
	assert.Error(t, e)

	_, e = a.Plan(reflect.TypeFor[*unexportedTarget]())
	assert.ErrorIs(t, e, container.ErrFieldInjection)

	_, e = a.Plan(reflect.TypeFor[*missingSetter]())
	assert.ErrorIs(t, e, container.ErrPropertyInjection)
	var me *container.MemberInjectionError
	require.ErrorAs(t, e, &me)
	assert.Equal(t, "clock", me.Name)
}

type unexportedTarget struct {
	logger Logger `inject:""`
}

type missingSetter struct {
	clock Clock `inject:"setter"`
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

type Base struct {
	Log Logger `inject:""`
}

func (b *Base) InjectBase(j *journal) { j.add("base") }

type Mid struct {
	*Base
	Clock Clock `inject:""`
}

func (m *Mid) InjectMid(j *journal) { j.add("mid") }

type Leaf struct {
	Mid
	Named Named `inject:"optional"`
}

func (l *Leaf) InjectLeaf(j *journal) { j.add("leaf") }

func TestActivator_AncestryPlan(t *testing.T) {
	t.Parallel()

	a := container.NewActivator(container.NewAnnotations(), nil)
	p, e := a.Plan(reflect.TypeFor[*Leaf]())
	require.NoError(t, e)

	fields := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		fields[i] = f.Owner.Name() + "." + f.Name
	}
	assert.Equal(t, []string{"Leaf.Named", "Mid.Clock", "Base.Log"}, fields)
	assert.True(t, p.Fields[0].Optional)
	assert.Equal(t, []int{0, 0}, p.Fields[2].Level)

	methods := make([]string, len(p.Methods))
	for i, m := range p.Methods {
		methods[i] = m.Owner.Name() + "." + m.Name
	}
	assert.Equal(t, []string{"Leaf.InjectLeaf", "Mid.InjectMid", "Base.InjectBase"}, methods)
	assert.Nil(t, p.Constructor)
	assert.True(t, p.HasMembers())
}

func TestActivator_AncestryInjection(t *testing.T) {
	t.Parallel()

	j := &journal{}
	b := isolated(t, container.NewAnnotations())
	require.NoError(t, b.RegisterValue(j))
	require.NoError(t, container.Bind[Logger](b).To((*ConsoleLogger)(nil)).AsSingleton())
	require.NoError(t, container.Bind[Clock](b).To((*fixedClock)(nil)).AsSingleton())
	require.NoError(t, b.RegisterType((*Leaf)(nil), nil, container.Transient, container.Lazy))
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	leaf, e := container.Resolve[*Leaf](c)
	require.NoError(t, e)
	require.NotNil(t, leaf.Base)
	assert.NotNil(t, leaf.Log)
	assert.NotNil(t, leaf.Clock)
	assert.Nil(t, leaf.Named)
	assert.Equal(t, []string{"leaf", "mid", "base"}, j.entries)
}

type auditTrail struct {
	Log   Logger `inject:""`
	clock Clock  `inject:"setter"`
	j     *journal
}

func (a *auditTrail) SetClock(c Clock) { a.clock = c }

func (a *auditTrail) InjectJournal(j *journal) {
	a.j = j
	j.add("trail")
}

type AuditedValue struct {
	auditTrail
}

type AuditedPointer struct {
	*auditTrail
}

func TestActivator_UnexportedEmbeddedBase(t *testing.T) {
	t.Parallel()

	j := &journal{}
	b := isolated(t, container.NewAnnotations())
	require.NoError(t, b.RegisterValue(j))
	require.NoError(t, container.Bind[Logger](b).To((*ConsoleLogger)(nil)).AsSingleton())
	require.NoError(t, container.Bind[Clock](b).To((*fixedClock)(nil)).AsSingleton())
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	v, e := container.Construct[*AuditedValue](c)
	require.NoError(t, e)
	assert.Same(t, container.MustResolve[Logger](c), v.Log)
	assert.Same(t, container.MustResolve[Clock](c), v.clock)
	assert.Same(t, j, v.j)

	p, e := container.Construct[*AuditedPointer](c)
	require.NoError(t, e)
	require.NotNil(t, p.auditTrail)
	assert.NotNil(t, p.Log)
	assert.NotNil(t, p.clock)
	assert.Same(t, j, p.j)

	existing := &AuditedPointer{auditTrail: &auditTrail{}}
	kept := existing.auditTrail
	require.NoError(t, c.Inject(existing))
	assert.Same(t, kept, existing.auditTrail)
	assert.NotNil(t, kept.clock)

	assert.Equal(t, []string{"trail", "trail", "trail"}, j.entries)
}

type shadowedBase struct{}

func (b *shadowedBase) InjectJournal(j *journal) { j.add("base") }

type Shadowing struct {
	shadowedBase
}

func (s *Shadowing) InjectJournal(j *journal) { j.add("derived") }

func TestActivator_DerivedMethodShadowsEmbedded(t *testing.T) {
	t.Parallel()

	a := container.NewActivator(container.NewAnnotations(), nil)
	p, e := a.Plan(reflect.TypeFor[*Shadowing]())
	require.NoError(t, e)
	require.Len(t, p.Methods, 1)
	assert.Equal(t, "Shadowing", p.Methods[0].Owner.Name())
	assert.Empty(t, p.Methods[0].Level)

	j := &journal{}
	b := isolated(t, container.NewAnnotations())
	require.NoError(t, b.RegisterValue(j))
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	_, e = container.Construct[*Shadowing](c)
	require.NoError(t, e)
	assert.Equal(t, []string{"derived"}, j.entries)
}
