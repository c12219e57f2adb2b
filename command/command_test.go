package command_test

import (
	"context"
	"testing"

	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/pack/bsonpack"
	"github.com/corewire/mongodrv/wire"
)

// fakeRoundTripper returns a canned reply regardless of what was sent.
type fakeRoundTripper struct {
	p     pack.Pack
	reply pack.Value
}

func (f fakeRoundTripper) RoundTrip(ctx context.Context, wm []byte) ([]byte, error) {
	return wire.BuildOpMsg(f.p, f.reply, wire.NextRequestID())
}

func TestCommandBuildIncludesDollarDB(t *testing.T) {
	p := bsonpack.New()
	cmd := command.Find(p, "testdb", "widgets", nil, 0)
	doc := cmd.Build(p)

	db, ok := p.Lookup(doc, "$db")
	if !ok {
		t.Fatalf("expected $db field")
	}
	if s, _ := p.StringValue(db); s != "testdb" {
		t.Fatalf("expected $db=testdb, got %s", s)
	}

	find, ok := p.Lookup(doc, "find")
	if !ok {
		t.Fatalf("expected find field")
	}
	if s, _ := p.StringValue(find); s != "widgets" {
		t.Fatalf("expected find=widgets, got %s", s)
	}
}

func TestCommandBuildSessionFields(t *testing.T) {
	p := bsonpack.New()
	autocommit := false
	cmd := command.Command{
		Name:       "insert",
		Collection: "widgets",
		Database:   "testdb",
		Session: &command.SessionAttachment{
			LSID:             p.MakeDocument(p.ElementProducer("id", p.String("abc"))),
			TxnNumber:        3,
			HasTxnNumber:     true,
			Autocommit:       &autocommit,
			StartTransaction: true,
		},
	}
	doc := cmd.Build(p)

	txn, ok := p.Lookup(doc, "txnNumber")
	if !ok {
		t.Fatalf("expected txnNumber field")
	}
	if n, _ := p.Int64Value(txn); n != 3 {
		t.Fatalf("expected txnNumber=3, got %d", n)
	}

	started, ok := p.Lookup(doc, "startTransaction")
	if !ok {
		t.Fatalf("expected startTransaction field")
	}
	if b, _ := p.BoolValue(started); !b {
		t.Fatalf("expected startTransaction=true")
	}
}

func TestRenameCollectionUsesNamespacePrimary(t *testing.T) {
	p := bsonpack.New()
	cmd := command.RenameCollection(p, "testdb.old", "testdb.new", false)
	doc := cmd.Build(p)

	if cmd.Database != "admin" {
		t.Fatalf("expected renameCollection to target admin db, got %s", cmd.Database)
	}

	primary, ok := p.Lookup(doc, "renameCollection")
	if !ok {
		t.Fatalf("expected renameCollection field")
	}
	if s, _ := p.StringValue(primary); s != "testdb.old" {
		t.Fatalf("expected primary=testdb.old, got %s", s)
	}
}

func TestDecodeResultSuccess(t *testing.T) {
	p := bsonpack.New()
	doc := p.MakeDocument(p.ElementProducer("ok", p.Double(1)))

	_, err := command.DecodeResult(p, doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestDecodeResultCommandException(t *testing.T) {
	p := bsonpack.New()
	doc := p.MakeDocument(
		p.ElementProducer("ok", p.Double(0)),
		p.ElementProducer("code", p.Int32(mongoerr.CodeDuplicateKey)),
		p.ElementProducer("codeName", p.String("DuplicateKey")),
		p.ElementProducer("errmsg", p.String("E11000 duplicate key")),
	)

	_, err := command.DecodeResult(p, doc)
	var cmdErr mongoerr.CommandException
	if !asCommandException(err, &cmdErr) {
		t.Fatalf("expected CommandException, got %T: %v", err, err)
	}
	if cmdErr.Code != mongoerr.CodeDuplicateKey {
		t.Fatalf("expected code %d, got %d", mongoerr.CodeDuplicateKey, cmdErr.Code)
	}
}

func TestDecodeResultWriteCommandException(t *testing.T) {
	p := bsonpack.New()
	writeErr := p.MakeDocument(
		p.ElementProducer("index", p.Int32(0)),
		p.ElementProducer("code", p.Int32(mongoerr.CodeWriteConflict)),
		p.ElementProducer("errmsg", p.String("write conflict")),
	)
	doc := p.MakeDocument(
		p.ElementProducer("ok", p.Double(1)),
		p.ElementProducer("writeErrors", p.MakeArray(writeErr)),
	)

	_, err := command.DecodeResult(p, doc)
	wcErr, ok := err.(mongoerr.WriteCommandException)
	if !ok {
		t.Fatalf("expected WriteCommandException, got %T: %v", err, err)
	}
	if len(wcErr.WriteErrors) != 1 || wcErr.WriteErrors[0].Code != mongoerr.CodeWriteConflict {
		t.Fatalf("unexpected write errors: %+v", wcErr.WriteErrors)
	}
}

func TestDispatchSuccess(t *testing.T) {
	p := bsonpack.New()
	reply := p.MakeDocument(
		p.ElementProducer("ok", p.Double(1)),
		p.ElementProducer("n", p.Int32(1)),
	)

	rt := fakeRoundTripper{p: p, reply: reply}
	doc := p.MakeDocument(p.ElementProducer("w", p.String("w1")))
	cmd := command.Insert(p, "testdb", "widgets", doc)

	result, err := command.Dispatch(context.Background(), p, rt, cmd)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	n, ok := p.Lookup(result, "n")
	if !ok {
		t.Fatalf("missing n in result")
	}
	if v, _ := p.Int32Value(n); v != 1 {
		t.Fatalf("expected n=1, got %d", v)
	}
}

func asCommandException(err error, target *mongoerr.CommandException) bool {
	ce, ok := err.(mongoerr.CommandException)
	if !ok {
		return false
	}
	*target = ce
	return true
}
