package container_test

import (
	"sync"
	"sync/atomic"

	"github.com/enorith/container/v2"
)

type Logger interface {
	Log(msg string)
}

type ConsoleLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *ConsoleLogger) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

type Service interface {
	Logger() Logger
}

type ServiceImpl struct {
	logger Logger
}

func NewServiceImpl(logger Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger}
}

func (s *ServiceImpl) Logger() Logger { return s.logger }

type Repo interface {
	Find(id int) string
}

type memRepo struct {
	disposed atomic.Int32
}

func (r *memRepo) Find(id int) string { return "item" }

func (r *memRepo) Dispose() error {
	r.disposed.Add(1)
	return nil
}

type NotBound interface {
	Nope()
}

type Optional interface {
	Enabled() bool
}

type withOptional struct {
	logger   Logger
	optional Optional
}

func newWithOptional(logger Logger, optional Optional) *withOptional {
	return &withOptional{logger: logger, optional: optional}
}

// closer counts Close calls and is tracked like a Disposable.
type closer struct {
	closed atomic.Int32
}

func (c *closer) Close() error {
	c.closed.Add(1)
	return nil
}

func init() {
	mustRegister(NewServiceImpl)
	mustRegister(newWithOptional, container.DefaultArg(1, nil))
}

func mustRegister(fn interface{}, marks ...container.Mark) {
	if e := container.RegisterConstructor(fn, marks...); e != nil {
		panic(e)
	}
}
