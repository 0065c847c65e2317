package diagnostics

import (
	"context"
	"log/slog"

	"github.com/enorith/container/v2"
)

type logObserver struct {
	logger *slog.Logger
}

// Logger returns an observer writing container events to logger. Resolutions
// and constructions are logged at debug level, failed constructions at warn.
func Logger(logger *slog.Logger) container.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logObserver{logger: logger}
}

func (o *logObserver) ContainerBuilt(c *container.Container) {
	attrs := []interface{}{"container", c.Name(), "id", c.ID().String(), "bindings", len(c.Bindings())}
	if p := c.Parent(); p != nil {
		attrs = append(attrs, "parent", p.Name())
	}
	o.logger.Info("container built", attrs...)
}

func (o *logObserver) ContainerDisposed(c *container.Container) {
	o.logger.Info("container disposed", "container", c.Name(), "id", c.ID().String())
}

func (o *logObserver) Resolved(e container.ResolveEvent) {
	if !o.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	o.logger.Debug("resolved",
		"container", e.Container.Name(),
		"contract", typeName(e.Contract),
		"lifetime", e.Resolver.Lifetime().String(),
		"declared_in", e.Resolver.DeclaringContainer().Name(),
	)
}

func (o *logObserver) Constructed(e container.ConstructEvent) {
	if e.Err != nil {
		o.logger.Warn("construction failed",
			"container", e.Container.Name(),
			"type", typeName(e.Type),
			"duration", e.Duration,
			"error", e.Err,
		)
		return
	}
	o.logger.Debug("constructed", "container", e.Container.Name(), "type", typeName(e.Type), "duration", e.Duration)
}
