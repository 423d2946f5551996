// Package registry is a concurrent name-keyed cache for values that are costly
// to build, such as vendor clients.
package registry

import "github.com/alphadose/haxmap"

type Registry[T any] interface {
	// GetOrCreate returns the cached value for name, building it with create on a
	// miss. A failed create caches nothing. When two callers race on a miss, both
	// may call create but only the first stored value is ever returned.
	GetOrCreate(name string, create func() (T, error)) (T, error)
	Names() []string
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) GetOrCreate(name string, create func() (T, error)) (T, error) {
	if v, ok := r.values.Get(name); ok {
		return v, nil
	}

	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	actual, _ := r.values.GetOrSet(name, v)
	return actual, nil
}

func (r *registry[T]) Names() []string {
	names := make([]string, 0, r.values.Len())
	r.values.ForEach(func(k string, _ T) bool {
		names = append(names, k)
		return true
	})
	return names
}
