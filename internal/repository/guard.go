package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// GuardedStore is a Store handle that may only write to an explicit allow-list of
// tables. Reads pass through. A write to any other table fails with
// ErrWriteBoundaryViolation before reaching the underlying store.
type GuardedStore struct {
	inner   Store
	allowed map[string]struct{}
}

// NewGuardedStore wraps inner with the given write allow-list.
func NewGuardedStore(inner Store, allowed ...string) *GuardedStore {
	set := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		set[t] = struct{}{}
	}
	return &GuardedStore{inner: inner, allowed: set}
}

// NewSimulationStore is the handle handed to the simulation core.
func NewSimulationStore(inner Store) *GuardedStore {
	return NewGuardedStore(inner, SimulationTables...)
}

func (g *GuardedStore) FindOne(ctx context.Context, table string, filter bson.M, out any) error {
	return g.inner.FindOne(ctx, table, filter, out)
}

func (g *GuardedStore) Insert(ctx context.Context, table string, doc any) error {
	if err := g.check("insert", table); err != nil {
		return err
	}
	return g.inner.Insert(ctx, table, doc)
}

func (g *GuardedStore) Update(ctx context.Context, table string, filter bson.M, patch bson.M) error {
	if err := g.check("update", table); err != nil {
		return err
	}
	return g.inner.Update(ctx, table, filter, patch)
}

// Allows reports whether table is writable through this handle.
func (g *GuardedStore) Allows(table string) bool {
	_, ok := g.allowed[table]
	return ok
}

func (g *GuardedStore) check(op, table string) error {
	if g.Allows(table) {
		return nil
	}
	return fmt.Errorf("%w: %s on %q", ErrWriteBoundaryViolation, op, table)
}
