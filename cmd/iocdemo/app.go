package main

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/enorith/container/v2"
)

type Logger interface {
	Log(msg string, args ...interface{})
}

type Service interface {
	Greet(name string) string
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Log(msg string, args ...interface{}) {
	l.logger.Info(msg, args...)
}

var greeted atomic.Int64

// greeter is resolved once per request scope.
type greeter struct {
	Logger Logger `inject:""`

	request int64
}

func newGreeter() *greeter {
	return &greeter{request: greeted.Add(1)}
}

func (g *greeter) Greet(name string) string {
	g.Logger.Log("greeting", "scope", name, "instance", g.request)
	return fmt.Sprintf("hello from %s (instance %d)", name, g.request)
}

func (g *greeter) Dispose() error {
	g.Logger.Log("greeter released", "instance", g.request)
	return nil
}

func newApp(logger *slog.Logger, opts ...container.Option) (*container.Container, error) {
	if e := container.RegisterConstructor(newGreeter); e != nil {
		return nil, e
	}

	b := container.NewBuilder(opts...).SetName("app")
	if e := container.Bind[Logger](b).FromInstance(&slogLogger{logger: logger}).AsSingle(); e != nil {
		return nil, e
	}
	if e := container.Bind[Service](b).To((*greeter)(nil)).AsScoped(); e != nil {
		return nil, e
	}

	return b.Build()
}
