package container_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enorith/container/v2"
)

type controller struct {
	Logger  Logger `inject:""`
	Named   Named  `inject:"optional"`
	Ignored Logger
	repo    Repo `inject:"setter"`
	limit   int
	clock   Clock
}

func (c *controller) SetRepo(r Repo) { c.repo = r }

func (c *controller) InjectLimits(clock Clock, limit int) {
	c.clock = clock
	c.limit = limit
}

func TestInjector_Members(t *testing.T) {
	t.Parallel()

	ann := container.NewAnnotations()
	require.NoError(t, ann.Method((*controller)(nil), "InjectLimits", container.DefaultArg(1, 25)))

	b := isolated(t, ann)
	require.NoError(t, container.Bind[Logger](b).To((*ConsoleLogger)(nil)).AsSingleton())
	require.NoError(t, container.Bind[Repo](b).To((*memRepo)(nil)).AsScoped())
	require.NoError(t, container.Bind[Clock](b).To((*fixedClock)(nil)).AsSingleton())
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	ctl := &controller{}
	require.NoError(t, c.Inject(ctl))

	assert.Same(t, container.MustResolve[Logger](c), ctl.Logger)
	assert.Nil(t, ctl.Named)
	assert.Nil(t, ctl.Ignored)
	assert.Same(t, container.MustResolve[Repo](c), ctl.repo)
	assert.Same(t, container.MustResolve[Clock](c), ctl.clock)
	assert.Equal(t, 25, ctl.limit)
}

func TestInjector_ResolvedTypesAreInjected(t *testing.T) {
	t.Parallel()

	b := isolated(t, container.NewAnnotations())
	require.NoError(t, container.Bind[Logger](b).To((*ConsoleLogger)(nil)).AsSingleton())
	require.NoError(t, container.Bind[Repo](b).To((*memRepo)(nil)).AsSingleton())
	require.NoError(t, container.Bind[Clock](b).To((*fixedClock)(nil)).AsSingleton())
	require.NoError(t, b.RegisterValue(7))
	require.NoError(t, b.RegisterType((*controller)(nil), nil, container.Transient, container.Lazy))
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	ctl, e := container.Resolve[*controller](c)
	require.NoError(t, e)
	assert.NotNil(t, ctl.Logger)
	assert.NotNil(t, ctl.repo)
	assert.Equal(t, 7, ctl.limit)
}

type valueTarget struct {
	Logger Logger `inject:""`
}

func TestInjector_StructValue(t *testing.T) {
	t.Parallel()

	b := isolated(t, container.NewAnnotations())
	require.NoError(t, container.Bind[Logger](b).To((*ConsoleLogger)(nil)).AsSingleton())
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	v, e := container.Construct[valueTarget](c)
	require.NoError(t, e)
	assert.NotNil(t, v.Logger)

	assert.Error(t, c.Inject(valueTarget{}))
	assert.Error(t, c.Inject((*valueTarget)(nil)))
}

func TestInjector_MemberErrors(t *testing.T) {
	t.Parallel()

	c, e := isolated(t, container.NewAnnotations()).Build()
	require.NoError(t, e)
	defer c.Dispose()

	e = c.Inject(&valueTarget{})
	require.Error(t, e)
	assert.ErrorIs(t, e, container.ErrFieldInjection)
	assert.ErrorIs(t, e, container.ErrUnknownContract)
	var me *container.MemberInjectionError
	require.ErrorAs(t, e, &me)
	assert.Equal(t, container.FieldMember, me.Kind)
	assert.Equal(t, "Logger", me.Name)

	e = c.Inject(&controller{})
	assert.ErrorIs(t, e, container.ErrFieldInjection)

	e = c.Inject(&setterTarget{})
	assert.ErrorIs(t, e, container.ErrPropertyInjection)

	e = c.Inject(&methodTarget{})
	assert.ErrorIs(t, e, container.ErrMethodInjection)
	assert.ErrorIs(t, e, container.ErrUnknownContract)
}

type setterTarget struct {
	clock Clock `inject:"setter"`
}

func (s *setterTarget) SetClock(c Clock) { s.clock = c }

type methodTarget struct{}

func (m *methodTarget) InjectClock(Clock) {}

type failingMethod struct{}

func (f *failingMethod) InjectLogger(Logger) error { return errors.New("refused") }

type panickingSetter struct {
	logger Logger `inject:"setter"`
}

func (p *panickingSetter) SetLogger(Logger) { panic("setter panicked") }

func TestInjector_MemberFailures(t *testing.T) {
	t.Parallel()

	b := isolated(t, container.NewAnnotations())
	require.NoError(t, container.Bind[Logger](b).To((*ConsoleLogger)(nil)).AsSingleton())
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	e = c.Inject(&failingMethod{})
	assert.ErrorIs(t, e, container.ErrMethodInjection)
	assert.Contains(t, e.Error(), "refused")

	e = c.Inject(&panickingSetter{})
	assert.ErrorIs(t, e, container.ErrPropertyInjection)
	assert.Contains(t, e.Error(), "setter panicked")
}

type optionalBroken struct {
	Service Service `inject:"optional"`
}

func TestInjector_OptionalDoesNotHideNestedFailures(t *testing.T) {
	t.Parallel()

	ann := container.NewAnnotations()
	_, e := ann.Constructor(NewServiceImpl)
	require.NoError(t, e)

	b := isolated(t, ann)
	require.NoError(t, container.Bind[Service](b).To((*ServiceImpl)(nil)).AsTransient())
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	e = c.Inject(&optionalBroken{})
	require.Error(t, e)
	assert.ErrorIs(t, e, container.ErrFieldInjection)
	assert.ErrorIs(t, e, container.ErrConstructorInjection)
}

type selfWired struct {
	Logger  Logger `inject:""`
	clock   Clock
	wiredBy *container.Container
}

func (s *selfWired) Wire(c *container.Container) error {
	s.wiredBy = c
	clock, e := container.Resolve[Clock](c)
	if e != nil {
		return e
	}
	s.clock = clock
	return nil
}

func TestInjector_Wireable(t *testing.T) {
	t.Parallel()

	b := isolated(t, container.NewAnnotations())
	require.NoError(t, container.Bind[Clock](b).To((*fixedClock)(nil)).AsSingleton())
	require.NoError(t, b.RegisterType((*selfWired)(nil), nil, container.Transient, container.Lazy))
	c, e := b.Build()
	require.NoError(t, e)
	defer c.Dispose()

	s, e := container.Resolve[*selfWired](c)
	require.NoError(t, e)
	assert.Nil(t, s.Logger)
	assert.NotNil(t, s.clock)
	require.NotNil(t, s.wiredBy)
	assert.Equal(t, c.ID(), s.wiredBy.ID())

	direct := &selfWired{}
	require.NoError(t, c.Inject(direct))
	assert.Same(t, s.clock, direct.clock)

	child, e := c.CreateChild(nil)
	require.NoError(t, e)
	defer child.Dispose()
	_, e = container.Resolve[*selfWired](child)
	require.NoError(t, e)

	empty, e := isolated(t, container.NewAnnotations()).Build()
	require.NoError(t, e)
	defer empty.Dispose()
	e = empty.Inject(&selfWired{})
	assert.ErrorIs(t, e, container.ErrUnknownContract)
}

type pagedList struct {
	size int
}

func (p *pagedList) InjectPageSize(size int) { p.size = size }

func TestInjector_RegisteredMethodDefaults(t *testing.T) {
	t.Parallel()

	require.NoError(t, container.RegisterMethod((*pagedList)(nil), "InjectPageSize", container.DefaultArg(0, 50)))
	assert.Error(t, container.RegisterMethod((*pagedList)(nil), "InjectMissing"))

	c, e := container.NewBuilder().Build()
	require.NoError(t, e)
	defer c.Dispose()

	p, e := container.Construct[*pagedList](c)
	require.NoError(t, e)
	assert.Equal(t, 50, p.size)
}
