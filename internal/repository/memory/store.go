// Package memory is an in-process repository.Store. Rows are round-tripped through
// BSON so decoding behaves like the MongoDB store. Used by tests and offline batch runs.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"alcyxob/climb-sim/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type table struct {
	order []string
	rows  map[string]bson.M
}

// Store keeps tables in memory.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) FindOne(ctx context.Context, name string, filter bson.M, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	want, err := normalize(filter)
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range t.order {
		row := t.rows[id]
		if matches(row, want) {
			raw, err := bson.Marshal(row)
			if err != nil {
				return fmt.Errorf("encode row: %w", err)
			}
			return bson.Unmarshal(raw, out)
		}
	}
	return repository.ErrNotFound
}

func (s *Store) Insert(ctx context.Context, name string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row, err := normalize(doc)
	if err != nil {
		return err
	}
	if _, ok := row["_id"]; !ok {
		row["_id"] = primitive.NewObjectID()
	}
	key := fmt.Sprint(row["_id"])

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[name]
	if t == nil {
		t = &table{rows: make(map[string]bson.M)}
		s.tables[name] = t
	}
	if _, dup := t.rows[key]; dup {
		return repository.ErrDuplicate
	}
	t.rows[key] = row
	t.order = append(t.order, key)
	return nil
}

// Update applies a {"$set": {...}} patch to the first row matching filter.
func (s *Store) Update(ctx context.Context, name string, filter bson.M, patch bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	want, err := normalize(filter)
	if err != nil {
		return err
	}
	p, err := normalize(patch)
	if err != nil {
		return err
	}
	set, ok := p["$set"].(bson.M)
	if d, isD := p["$set"].(primitive.D); isD {
		set, ok = d.Map(), true
	}
	if !ok || len(p) != 1 {
		return fmt.Errorf("%w: memory store supports only $set patches", repository.ErrUpdateFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range t.order {
		row := t.rows[id]
		if !matches(row, want) {
			continue
		}
		next := make(bson.M, len(row)+len(set))
		for k, v := range row {
			next[k] = v
		}
		for k, v := range set {
			next[k] = v
		}
		t.rows[id] = next
		return nil
	}
	return repository.ErrNotFound
}

// Count returns the number of rows in a table.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return len(t.order)
	}
	return 0
}

// Rows returns copies of every row of a table in insertion order.
func (s *Store) Rows(name string) []bson.M {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]bson.M, 0, len(t.order))
	for _, id := range t.order {
		cp := make(bson.M, len(t.rows[id]))
		for k, v := range t.rows[id] {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

func normalize(v any) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}

func matches(row, filter bson.M) bool {
	for k, want := range filter {
		got, ok := row[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
