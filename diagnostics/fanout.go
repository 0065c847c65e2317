package diagnostics

import "github.com/enorith/container/v2"

type fanout []container.Observer

// Fanout forwards every event to each observer in order. Nil observers are
// skipped.
func Fanout(observers ...container.Observer) container.Observer {
	out := make(fanout, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (f fanout) ContainerBuilt(c *container.Container) {
	for _, o := range f {
		o.ContainerBuilt(c)
	}
}

func (f fanout) ContainerDisposed(c *container.Container) {
	for _, o := range f {
		o.ContainerDisposed(c)
	}
}

func (f fanout) Resolved(e container.ResolveEvent) {
	for _, o := range f {
		o.Resolved(e)
	}
}

func (f fanout) Constructed(e container.ConstructEvent) {
	for _, o := range f {
		o.Constructed(e)
	}
}
