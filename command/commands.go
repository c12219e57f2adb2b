package command

import "github.com/corewire/mongodrv/pack"

// Create builds a `create` command, per this module's standard command
// list.
func Create(p pack.Pack, database, collection string) Command {
	return Command{Name: "create", Collection: collection, Database: database}
}

// Drop builds a `drop` command dropping a single collection.
func Drop(p pack.Pack, database, collection string) Command {
	return Command{Name: "drop", Collection: collection, Database: database}
}

// DropDatabase builds a `dropDatabase` command, backing
// DatabaseHandle.Drop's whole-database drop (this module's `drop()`
// takes no collection argument).
func DropDatabase(p pack.Pack, database string) Command {
	return Command{Name: "dropDatabase", Database: database, Primary: p.Int32(1)}
}

// RenameCollection builds a `renameCollection` command. It always
// targets the admin database, by design: "renameCollection
// (targets the admin database)". Its primary value is the full source
// namespace ("db.collection"), not a bare collection name, so it uses
// Command.Primary rather than Command.Collection.
func RenameCollection(p pack.Pack, fromNamespace, toNamespace string, dropTarget bool) Command {
	return Command{
		Name:     "renameCollection",
		Database: "admin",
		Primary:  p.String(fromNamespace),
		Fields: []pack.Element{
			p.ElementProducer("to", p.String(toNamespace)),
			p.ElementProducer("dropTarget", p.Bool(dropTarget)),
		},
	}
}

// Find builds a `find` command. batchSize of 0 omits the field,
// leaving the server's default batch size in effect.
func Find(p pack.Pack, database, collection string, filter pack.Value, batchSize int32) Command {
	fields := []pack.Element{}
	if filter != nil {
		fields = append(fields, p.ElementProducer("filter", filter))
	}
	if batchSize != 0 {
		fields = append(fields, p.ElementProducer("batchSize", p.Int32(batchSize)))
	}
	return Command{Name: "find", Collection: collection, Database: database, Fields: fields}
}

// Insert builds an `insert` command carrying the given documents. At
// least one document is required, matching the server's own rejection
// of an empty documents array.
func Insert(p pack.Pack, database, collection string, documents ...pack.Value) Command {
	arr := p.MakeArray(documents...)
	return Command{
		Name:       "insert",
		Collection: collection,
		Database:   database,
		Fields:     []pack.Element{p.ElementProducer("documents", arr)},
	}
}

// Delete builds a `delete` command. Each element of deletes must be a
// document with `q` (filter) and `limit` fields, matching the server's
// deletes array shape. At least one delete spec is required.
func Delete(p pack.Pack, database, collection string, deletes ...pack.Value) Command {
	arr := p.MakeArray(deletes...)
	return Command{
		Name:       "delete",
		Collection: collection,
		Database:   database,
		Fields:     []pack.Element{p.ElementProducer("deletes", arr)},
	}
}

// Update builds an `update` command. Each element of updates must be a
// document with `q`/`u` (and optional `multi`/`upsert`) fields. At
// least one update spec is required.
func Update(p pack.Pack, database, collection string, updates ...pack.Value) Command {
	arr := p.MakeArray(updates...)
	return Command{
		Name:       "update",
		Collection: collection,
		Database:   database,
		Fields:     []pack.Element{p.ElementProducer("updates", arr)},
	}
}

// Aggregate builds an `aggregate` command; pipeline must be an array
// value produced by the aggregation package.
func Aggregate(p pack.Pack, database, collection string, pipeline pack.Value, batchSize int32) Command {
	cursor := p.MakeDocument(p.ElementProducer("batchSize", p.Int32(batchSize)))
	return Command{
		Name:       "aggregate",
		Collection: collection,
		Database:   database,
		Fields: []pack.Element{
			p.ElementProducer("pipeline", pipeline),
			p.ElementProducer("cursor", cursor),
		},
	}
}

// Count builds a `count` command.
func Count(p pack.Pack, database, collection string, query pack.Value) Command {
	fields := []pack.Element{}
	if query != nil {
		fields = append(fields, p.ElementProducer("query", query))
	}
	return Command{Name: "count", Collection: collection, Database: database, Fields: fields}
}

// StartSession builds a `startSession` command.
func StartSession(p pack.Pack) Command {
	return Command{Name: "startSession", Database: "admin"}
}

// EndSessions builds an `endSessions` command over the given lsid
// documents. At least one lsid is required.
func EndSessions(p pack.Pack, lsids ...pack.Value) Command {
	arr := p.MakeArray(lsids...)
	return Command{Name: "endSessions", Database: "admin", Primary: arr}
}

// KillSessions builds a `killSessions` command over the given lsid
// documents. At least one lsid is required.
func KillSessions(p pack.Pack, lsids ...pack.Value) Command {
	arr := p.MakeArray(lsids...)
	return Command{Name: "killSessions", Database: "admin", Primary: arr}
}

// CommitTransaction builds a `commitTransaction` command; the session's
// lsid/txnNumber are expected to be attached via Command.Session by the
// caller.
func CommitTransaction(p pack.Pack, session *SessionAttachment) Command {
	return Command{Name: "commitTransaction", Database: "admin", Session: session}
}

// AbortTransaction builds an `abortTransaction` command.
func AbortTransaction(p pack.Pack, session *SessionAttachment) Command {
	return Command{Name: "abortTransaction", Database: "admin", Session: session}
}

// GetMore builds a `getMore` command against an open cursor, per
// this module's "lazy stream over getMore calls". Its primary value is
// the cursor id itself (an int64), not the collection name, matching
// the server's getMore command shape.
func GetMore(p pack.Pack, database, collection string, cursorID int64, batchSize int32) Command {
	return Command{
		Name:       "getMore",
		Collection: collection,
		Database:   database,
		Primary:    p.Int64(cursorID),
		Fields:     []pack.Element{p.ElementProducer("batchSize", p.Int32(batchSize))},
	}
}

// ListCollections builds a `listCollections` command, backing
// DatabaseHandle.collectionNames.
func ListCollections(p pack.Pack, database string) Command {
	return Command{Name: "listCollections", Database: database, Primary: p.Int32(1)}
}

// KillCursors builds a `killCursors` command for the given cursor ids.
// At least one cursor id is required.
func KillCursors(p pack.Pack, database, collection string, cursorIDs ...int64) Command {
	values := make([]pack.Value, len(cursorIDs))
	for i, id := range cursorIDs {
		values[i] = p.Int64(id)
	}
	arr := p.MakeArray(values...)
	return Command{
		Name:       "killCursors",
		Collection: collection,
		Database:   database,
		Fields:     []pack.Element{p.ElementProducer("cursors", arr)},
	}
}
