package pack_test

import (
	"testing"

	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/pack/bsonpack"
	"github.com/corewire/mongodrv/pack/jsonpack"
)

// roundTrip exercises this module's invariant: for every value v produced,
// reader(writer(v)) == v, here specialized to Encode/Decode on a document.
func roundTrip(t *testing.T, p pack.Pack) {
	t.Helper()

	doc := p.MakeDocument(
		p.ElementProducer("name", p.String("widgets")),
		p.ElementProducer("count", p.Int32(7)),
		p.ElementProducer("total", p.Int64(9000000000)),
		p.ElementProducer("price", p.Double(19.99)),
		p.ElementProducer("active", p.Bool(true)),
		p.ElementProducer("deleted", p.Null()),
		p.ElementProducer("tags", p.MakeArray(p.String("a"), p.String("b"))),
		p.ElementProducer("nested", p.MakeDocument(
			p.ElementProducer("inner", p.Int32(1)),
		)),
	)

	b, err := p.Encode(doc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := p.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	fields, ok := p.Document(decoded)
	if !ok {
		t.Fatalf("decoded value is not a document")
	}
	if len(fields) != 8 {
		t.Fatalf("expected 8 fields, got %d", len(fields))
	}

	name, ok := p.Lookup(decoded, "name")
	if !ok {
		t.Fatalf("missing name field")
	}
	if s, ok := p.StringValue(name); !ok || s != "widgets" {
		t.Fatalf("expected name=widgets, got %v (ok=%v)", s, ok)
	}

	count, ok := p.Lookup(decoded, "count")
	if !ok {
		t.Fatalf("missing count field")
	}
	if n, ok := p.Int32Value(count); !ok || n != 7 {
		t.Fatalf("expected count=7, got %v (ok=%v)", n, ok)
	}

	total, _ := p.Lookup(decoded, "total")
	if n, ok := p.Int64Value(total); !ok || n != 9000000000 {
		t.Fatalf("expected total=9000000000, got %v (ok=%v)", n, ok)
	}

	price, _ := p.Lookup(decoded, "price")
	if f, ok := p.DoubleValue(price); !ok || f != 19.99 {
		t.Fatalf("expected price=19.99, got %v (ok=%v)", f, ok)
	}

	active, _ := p.Lookup(decoded, "active")
	if b, ok := p.BoolValue(active); !ok || !b {
		t.Fatalf("expected active=true, got %v (ok=%v)", b, ok)
	}

	tags, _ := p.Lookup(decoded, "tags")
	tagValues, ok := p.Array(tags)
	if !ok || len(tagValues) != 2 {
		t.Fatalf("expected 2-element tags array, got %v (ok=%v)", tagValues, ok)
	}

	nested, _ := p.Lookup(decoded, "nested")
	inner, ok := p.Lookup(nested, "inner")
	if !ok {
		t.Fatalf("missing nested.inner")
	}
	if n, ok := p.Int32Value(inner); !ok || n != 1 {
		t.Fatalf("expected nested.inner=1, got %v (ok=%v)", n, ok)
	}
}

func TestRoundTripBSON(t *testing.T) {
	roundTrip(t, bsonpack.New())
}

func TestRoundTripJSON(t *testing.T) {
	roundTrip(t, jsonpack.New())
}

func TestAsFloat64Coercion(t *testing.T) {
	for _, p := range []pack.Pack{bsonpack.New(), jsonpack.New()} {
		if f, ok := p.AsFloat64(p.Int32(1)); !ok || f != 1 {
			t.Errorf("int32 coercion failed: %v %v", f, ok)
		}
		if f, ok := p.AsFloat64(p.Int64(1)); !ok || f != 1 {
			t.Errorf("int64 coercion failed: %v %v", f, ok)
		}
		if f, ok := p.AsFloat64(p.Double(1.0)); !ok || f != 1 {
			t.Errorf("double coercion failed: %v %v", f, ok)
		}
	}
}
