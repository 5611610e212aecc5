package answer

// Option holds a value or nothing. Derivation rules return None to
// decline, so the next rule in order can try.
type Option[T any] struct {
	value T
	ok    bool
}

// Some wraps a value.
func Some[T any](v T) Option[T] { return Option[T]{value: v, ok: true} }

// None returns an empty option.
func None[T any]() Option[T] { return Option[T]{} }

// Get returns the value and whether there is one.
func (o Option[T]) Get() (T, bool) { return o.value, o.ok }
