package dbhandle

import (
	"context"

	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/mongoerr"
)

// Create implements this module's create(name, failsIfExists): when
// failsIfExists is false, a NamespaceExists (code 48) response is
// swallowed as success.
func (d DatabaseHandle) Create(ctx context.Context, name string, failsIfExists bool) error {
	_, err := d.dispatch(ctx, command.Create(d.pk, d.name, name))
	if !failsIfExists && isCode(err, mongoerr.CodeNamespaceExists) {
		return nil
	}
	return err
}

// Drop implements this module's drop(), swallowing NamespaceNotFound
// (code 26).
func (d DatabaseHandle) Drop(ctx context.Context) error {
	_, err := d.dispatch(ctx, command.DropDatabase(d.pk, d.name))
	if isCode(err, mongoerr.CodeNamespaceNotFound) {
		return nil
	}
	return err
}

// CollectionNames implements this module's collectionNames(), decoding
// the listCollections reply's cursor.firstBatch[].name fields.
func (d DatabaseHandle) CollectionNames(ctx context.Context) ([]string, error) {
	reply, err := d.dispatch(ctx, command.ListCollections(d.pk, d.name))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0)
	cursorDoc, found := d.pk.Lookup(reply, "cursor")
	if !found {
		return names, nil
	}
	batch, found := d.pk.Lookup(cursorDoc, "firstBatch")
	if !found {
		return names, nil
	}
	arr, ok := d.pk.Array(batch)
	if !ok {
		return names, nil
	}
	for _, item := range arr {
		nameVal, found := d.pk.Lookup(item, "name")
		if !found {
			continue
		}
		if s, ok := d.pk.StringValue(nameVal); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// RenameCollection implements this module's renameCollection(db, from,
// to): only valid on the admin database handle, since renameCollection
// itself always targets the server's admin database regardless of
// which database's data it moves. Calling it on any other handle fails
// with InvalidArgument without a wire round trip, per this module's Open
// Question resolution ("same database unless targeting admin").
func (d DatabaseHandle) RenameCollection(ctx context.Context, db, from, to string, dropTarget bool) error {
	if d.name != "admin" {
		return invalidArgument("renameCollection is only valid on the admin database handle")
	}
	fromNS := db + "." + from
	toNS := db + "." + to
	_, err := d.dispatch(ctx, command.RenameCollection(d.pk, fromNS, toNS, dropTarget))
	return err
}

func isCode(err error, code int32) bool {
	ce, ok := err.(mongoerr.CommandException)
	return ok && ce.Code == code
}
