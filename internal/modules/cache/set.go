package cache

import "github.com/samber/lo"

// set is an ordered collection keyed by id. Callers hold the cache lock.
type set[T any] struct {
	items []T
	id    func(T) string
	clone func(T) T
}

func newSet[T any](id func(T) string, clone func(T) T) *set[T] {
	return &set[T]{items: []T{}, id: id, clone: clone}
}

func (s *set[T]) all() []T {
	return lo.Map(s.items, func(x T, _ int) T { return s.clone(x) })
}

func (s *set[T]) get(id string) (T, bool) {
	x, ok := lo.Find(s.items, func(x T) bool { return s.id(x) == id })
	if !ok {
		return x, false
	}
	return s.clone(x), true
}

func (s *set[T]) replace(items []T) {
	s.items = lo.Map(items, func(x T, _ int) T { return s.clone(x) })
}

// upsert replaces the item in place or appends it.
func (s *set[T]) upsert(x T) {
	_, i, ok := lo.FindIndexOf(s.items, func(y T) bool { return s.id(y) == s.id(x) })
	if ok {
		s.items[i] = s.clone(x)
		return
	}
	s.items = append(s.items, s.clone(x))
}

func (s *set[T]) remove(id string) {
	s.items = lo.Reject(s.items, func(x T, _ int) bool { return s.id(x) == id })
}
