package dbhandle

import (
	"context"

	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/pack"
)

// Cursor is a (cursorId, namespace, batch_size, first_batch) descriptor:
// cursorId == 0 means exhausted. The first batch is materialized eagerly
// at construction;
// Next lazily streams subsequent batches over getMore.
type Cursor struct {
	db         DatabaseHandle
	collection string
	id         int64
	batchSize  int32
	pending    []pack.Value
}

func newCursor(db DatabaseHandle, collection string, batchSize int32, reply pack.Value) (Cursor, error) {
	c := Cursor{db: db, collection: collection, batchSize: batchSize}

	cursorDoc, found := db.pk.Lookup(reply, "cursor")
	if !found {
		return c, nil
	}

	if idVal, found := db.pk.Lookup(cursorDoc, "id"); found {
		if id, ok := db.pk.Int64Value(idVal); ok {
			c.id = id
		}
	}

	batchField := "firstBatch"
	batchVal, found := db.pk.Lookup(cursorDoc, batchField)
	if !found {
		batchVal, found = db.pk.Lookup(cursorDoc, "nextBatch")
	}
	if found {
		if arr, ok := db.pk.Array(batchVal); ok {
			c.pending = arr
		}
	}

	return c, nil
}

// ID returns the server-side cursor id; 0 means exhausted.
func (c Cursor) ID() int64 { return c.id }

// Exhausted reports whether the cursor has no more documents to stream
// and no server-side state left to clean up.
func (c Cursor) Exhausted() bool {
	return c.id == 0 && len(c.pending) == 0
}

// Next returns the next document in the stream, fetching a new batch
// via getMore if the current one is drained and the cursor isn't
// exhausted, per this module's lazy-stream rule.
func (c *Cursor) Next(ctx context.Context) (pack.Value, bool, error) {
	if len(c.pending) == 0 {
		if c.id == 0 {
			return nil, false, nil
		}
		if err := c.fetchMore(ctx); err != nil {
			return nil, false, err
		}
		if len(c.pending) == 0 {
			return nil, false, nil
		}
	}

	doc := c.pending[0]
	c.pending = c.pending[1:]
	return doc, true, nil
}

func (c *Cursor) fetchMore(ctx context.Context) error {
	cmd := command.GetMore(c.db.pk, c.db.name, c.collection, c.id, c.batchSize)
	reply, err := c.db.dispatch(ctx, cmd)
	if err != nil {
		return err
	}

	cursorDoc, found := c.db.pk.Lookup(reply, "cursor")
	if !found {
		c.id = 0
		return nil
	}
	if idVal, found := c.db.pk.Lookup(cursorDoc, "id"); found {
		if id, ok := c.db.pk.Int64Value(idVal); ok {
			c.id = id
		}
	}
	if batchVal, found := c.db.pk.Lookup(cursorDoc, "nextBatch"); found {
		if arr, ok := c.db.pk.Array(batchVal); ok {
			c.pending = arr
		}
	}
	return nil
}

// Close issues killCursors if the cursor id is non-zero: cancelling the
// stream must clean up server-side cursor state whenever one remains
// open. It is safe to call Close on an already-exhausted cursor.
func (c *Cursor) Close(ctx context.Context) error {
	if c.id == 0 {
		return nil
	}
	cmd := command.KillCursors(c.db.pk, c.db.name, c.collection, c.id)
	_, err := c.db.dispatch(ctx, cmd)
	c.id = 0
	return err
}
