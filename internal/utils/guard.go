package utils

// Swap sets *target to v and returns a function restoring the previous value.
// Use with defer so the old value comes back on every exit path.
func Swap[T any](target *T, v T) func() {
	old := *target
	*target = v
	return func() { *target = old }
}

// Counter is a reentrant scope marker. Nested Enter calls compose by
// counting; the marker is active while any scope is open.
type Counter struct {
	n int
}

// Enter opens a scope and returns its release function.
func (c *Counter) Enter() func() {
	c.n++
	released := false
	return func() {
		if !released {
			released = true
			c.n--
		}
	}
}

// Active reports whether at least one scope is open.
func (c *Counter) Active() bool {
	return c.n > 0
}

// Depth returns the number of open scopes.
func (c *Counter) Depth() int {
	return c.n
}

// Stack is a LIFO of markers with scoped push.
type Stack[T comparable] struct {
	items []T
}

// Push adds v and returns a function popping it again.
func (s *Stack[T]) Push(v T) func() {
	s.items = append(s.items, v)
	n := len(s.items)
	return func() {
		if len(s.items) >= n {
			s.items = s.items[:n-1]
		}
	}
}

// Top returns the most recent marker.
func (s *Stack[T]) Top() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Contains reports whether v is anywhere on the stack.
func (s *Stack[T]) Contains(v T) bool {
	for _, it := range s.items {
		if it == v {
			return true
		}
	}
	return false
}

// Len returns the stack depth.
func (s *Stack[T]) Len() int {
	return len(s.items)
}
