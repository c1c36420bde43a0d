package repokit

// Binder builds a repo over a Queryer, either the pool or an open transaction
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor to Binder, handy for swapping in fakes
type BindFunc[T any] func(Queryer) T

// Bind implements Binder
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// RequireQueryer is called by Bind implementations; a nil q is a wiring bug
func RequireQueryer(q Queryer) Queryer {
	if q == nil {
		panic("repokit: bind on nil Queryer")
	}
	return q
}
