package dbhandle

import (
	"context"

	"github.com/corewire/mongodrv/aggregation"
	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/pack"
)

// CollectionHandle is a DatabaseHandle narrowed to one collection name,
// per this module's `collection(name) -> CollectionHandle`. It carries
// no state of its own beyond the name: every operation dispatches
// through the owning DatabaseHandle, so a CollectionHandle inherits
// whatever session the database handle it was derived from carries.
type CollectionHandle struct {
	db   DatabaseHandle
	name string
}

// Name returns the collection name.
func (c CollectionHandle) Name() string { return c.name }

// Database returns the owning database handle.
func (c CollectionHandle) Database() DatabaseHandle { return c.db }

// WithSession returns a CollectionHandle backed by a DatabaseHandle
// carrying the given database handle in place of this one's, letting a
// caller swap sessions between collection operations without losing the
// collection name.
func (c CollectionHandle) WithSession(db DatabaseHandle) CollectionHandle {
	c.db = db
	return c
}

// Find dispatches a `find` command, materializing the first batch and
// returning a Cursor for any remaining results, per this module's
// "eager first batch, lazy getMore stream" rule.
func (c CollectionHandle) Find(ctx context.Context, filter pack.Value, batchSize int32) (Cursor, error) {
	cmd := command.Find(c.db.pk, c.db.name, c.name, filter, batchSize)
	reply, err := c.db.dispatch(ctx, cmd)
	if err != nil {
		return Cursor{}, err
	}
	return newCursor(c.db, c.name, batchSize, reply)
}

// Aggregate dispatches an `aggregate` command over a pipeline built
// with the aggregation package, materializing the first batch and
// returning a Cursor for the remainder.
func (c CollectionHandle) Aggregate(ctx context.Context, stages []aggregation.Stage, batchSize int32) (Cursor, error) {
	pipeline := aggregation.Pipeline(stages).Compile(c.db.pk)
	cmd := command.Aggregate(c.db.pk, c.db.name, c.name, pipeline, batchSize)
	reply, err := c.db.dispatch(ctx, cmd)
	if err != nil {
		return Cursor{}, err
	}
	return newCursor(c.db, c.name, batchSize, reply)
}

// Insert dispatches an `insert` command.
func (c CollectionHandle) Insert(ctx context.Context, documents ...pack.Value) (pack.Value, error) {
	return c.db.dispatch(ctx, command.Insert(c.db.pk, c.db.name, c.name, documents...))
}

// Update dispatches an `update` command.
func (c CollectionHandle) Update(ctx context.Context, updates ...pack.Value) (pack.Value, error) {
	return c.db.dispatch(ctx, command.Update(c.db.pk, c.db.name, c.name, updates...))
}

// Delete dispatches a `delete` command.
func (c CollectionHandle) Delete(ctx context.Context, deletes ...pack.Value) (pack.Value, error) {
	return c.db.dispatch(ctx, command.Delete(c.db.pk, c.db.name, c.name, deletes...))
}

// Count dispatches a `count` command.
func (c CollectionHandle) Count(ctx context.Context, query pack.Value) (int64, error) {
	reply, err := c.db.dispatch(ctx, command.Count(c.db.pk, c.db.name, c.name, query))
	if err != nil {
		return 0, err
	}
	if v, found := c.db.pk.Lookup(reply, "n"); found {
		if n, ok := c.db.pk.Int32Value(v); ok {
			return int64(n), nil
		}
		if n, ok := c.db.pk.Int64Value(v); ok {
			return n, nil
		}
	}
	return 0, nil
}
