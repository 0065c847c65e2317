package container

// Lifetime controls how long a produced instance survives relative to its scope.
type Lifetime int

const (
	// Transient produces a new instance on every resolution.
	Transient Lifetime = iota
	// Scoped produces one instance per resolving container.
	Scoped
	// Singleton produces one instance per declaring container.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	case Singleton:
		return "singleton"
	}
	return "unknown"
}

// Resolution controls when a cached instance is first produced.
type Resolution int

const (
	// Lazy produces on first use.
	Lazy Resolution = iota
	// Eager produces right after the container is built.
	Eager
)

func (r Resolution) String() string {
	if r == Eager {
		return "eager"
	}
	return "lazy"
}

// Kind is the production strategy of a resolver.
type Kind int

const (
	KindValue Kind = iota
	KindType
	KindFactory
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindType:
		return "type"
	case KindFactory:
		return "factory"
	}
	return "unknown"
}
