package ports

import "context"

// EntityLocker serializes mutating operations per entity identifier
// ("event:<id>", "order:<id>"). Acquire blocks until the lock is held or ctx
// is done; the returned function releases it. Operations on different
// entities proceed fully in parallel.
type EntityLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
