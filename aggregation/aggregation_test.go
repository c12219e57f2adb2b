package aggregation_test

import (
	"testing"

	"github.com/corewire/mongodrv/aggregation"
	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/pack/bsonpack"
)

func singleKey(t *testing.T, p pack.Pack, doc pack.Value) (string, pack.Value) {
	t.Helper()
	fields, ok := p.Document(doc)
	if !ok {
		t.Fatalf("expected a document, got %v", doc)
	}
	if len(fields) != 1 {
		t.Fatalf("expected a single-key stage document, got %d keys", len(fields))
	}
	return fields[0].Name, fields[0].Value
}

func TestMatchStageShape(t *testing.T) {
	p := bsonpack.New()
	filter := p.MakeDocument(p.ElementProducer("status", p.String("active")))
	stage := aggregation.Match(filter)

	pl := aggregation.Pipeline{stage}
	arr := pl.Compile(p)
	values, ok := p.Array(arr)
	if !ok || len(values) != 1 {
		t.Fatalf("expected single-element pipeline array")
	}

	key, _ := singleKey(t, p, values[0])
	if key != "$match" {
		t.Fatalf("expected $match, got %s", key)
	}
}

func TestEmptyPipelineCompilesToEmptyArray(t *testing.T) {
	p := bsonpack.New()
	arr := aggregation.Pipeline{}.Compile(p)
	values, ok := p.Array(arr)
	if !ok || len(values) != 0 {
		t.Fatalf("expected empty array, got %v", values)
	}
}

func TestGroupWithAccumulators(t *testing.T) {
	p := bsonpack.New()
	id := p.String("$category")
	stage := aggregation.Group(id,
		aggregation.Accum("total", aggregation.SumAll()),
		aggregation.Accum("avgPrice", aggregation.AvgField("price")),
	)

	pl := aggregation.Pipeline{stage}
	arr := pl.Compile(p)
	values, _ := p.Array(arr)
	_, groupDoc := singleKey(t, p, values[0])

	idVal, ok := p.Lookup(groupDoc, "_id")
	if !ok {
		t.Fatalf("expected _id field")
	}
	if s, _ := p.StringValue(idVal); s != "$category" {
		t.Fatalf("expected _id=$category, got %s", s)
	}

	total, ok := p.Lookup(groupDoc, "total")
	if !ok {
		t.Fatalf("expected total field")
	}
	sumVal, ok := p.Lookup(total, "$sum")
	if !ok {
		t.Fatalf("expected $sum accumulator")
	}
	if n, ok := p.Int32Value(sumVal); !ok || n != 1 {
		t.Fatalf("expected SumAll to emit {$sum: 1}, got %v (ok=%v)", n, ok)
	}

	avg, ok := p.Lookup(groupDoc, "avgPrice")
	if !ok {
		t.Fatalf("expected avgPrice field")
	}
	avgVal, ok := p.Lookup(avg, "$avg")
	if !ok {
		t.Fatalf("expected $avg accumulator")
	}
	if s, ok := p.StringValue(avgVal); !ok || s != "$price" {
		t.Fatalf("expected $avg field ref $price, got %s", s)
	}
}

func TestSortOrders(t *testing.T) {
	p := bsonpack.New()
	stage := aggregation.Sort(
		aggregation.Ascending("name"),
		aggregation.Descending("age"),
		aggregation.MetadataSort("score", aggregation.MetaTextScore),
	)

	pl := aggregation.Pipeline{stage}
	arr := pl.Compile(p)
	values, _ := p.Array(arr)
	_, sortDoc := singleKey(t, p, values[0])

	name, _ := p.Lookup(sortDoc, "name")
	if n, _ := p.Int32Value(name); n != 1 {
		t.Fatalf("expected name: 1, got %d", n)
	}
	age, _ := p.Lookup(sortDoc, "age")
	if n, _ := p.Int32Value(age); n != -1 {
		t.Fatalf("expected age: -1, got %d", n)
	}
	score, _ := p.Lookup(sortDoc, "score")
	meta, ok := p.Lookup(score, "$meta")
	if !ok {
		t.Fatalf("expected $meta field for score")
	}
	if s, _ := p.StringValue(meta); s != aggregation.MetaTextScore {
		t.Fatalf("expected textScore, got %s", s)
	}
}

func TestUnwindFieldAndFullForm(t *testing.T) {
	p := bsonpack.New()

	fieldStage := aggregation.Unwind("tags")
	pl := aggregation.Pipeline{fieldStage}
	arr := pl.Compile(p)
	values, _ := p.Array(arr)
	key, payload := singleKey(t, p, values[0])
	if key != "$unwind" {
		t.Fatalf("expected $unwind, got %s", key)
	}
	if s, ok := p.StringValue(payload); !ok || s != "$tags" {
		t.Fatalf("expected $tags, got %s", s)
	}

	fullStage := aggregation.UnwindFull("tags", aggregation.UnwindOptions{
		IncludeArrayIndex:          "idx",
		HasIncludeArrayIndex:       true,
		PreserveNullAndEmptyArrays: true,
	})
	pl2 := aggregation.Pipeline{fullStage}
	arr2 := pl2.Compile(p)
	values2, _ := p.Array(arr2)
	_, fullPayload := singleKey(t, p, values2[0])

	path, ok := p.Lookup(fullPayload, "path")
	if !ok {
		t.Fatalf("expected path field")
	}
	if s, _ := p.StringValue(path); s != "$tags" {
		t.Fatalf("expected path=$tags, got %s", s)
	}
	preserve, ok := p.Lookup(fullPayload, "preserveNullAndEmptyArrays")
	if !ok {
		t.Fatalf("expected preserveNullAndEmptyArrays field")
	}
	if b, _ := p.BoolValue(preserve); !b {
		t.Fatalf("expected preserveNullAndEmptyArrays=true")
	}
}

func TestLookupAndGraphLookup(t *testing.T) {
	p := bsonpack.New()

	lookup := aggregation.Lookup("orders", "_id", "customerId", "orders")
	pl := aggregation.Pipeline{lookup}
	arr := pl.Compile(p)
	values, _ := p.Array(arr)
	_, payload := singleKey(t, p, values[0])
	from, _ := p.Lookup(payload, "from")
	if s, _ := p.StringValue(from); s != "orders" {
		t.Fatalf("expected from=orders, got %s", s)
	}

	maxDepth := int32(3)
	graph := aggregation.GraphLookup("employees", p.String("$reportsTo"), "reportsTo", "_id", "hierarchy",
		aggregation.GraphLookupOptions{MaxDepth: &maxDepth, DepthField: "depth"})
	pl2 := aggregation.Pipeline{graph}
	arr2 := pl2.Compile(p)
	values2, _ := p.Array(arr2)
	_, graphPayload := singleKey(t, p, values2[0])

	depth, ok := p.Lookup(graphPayload, "maxDepth")
	if !ok {
		t.Fatalf("expected maxDepth field")
	}
	if n, _ := p.Int32Value(depth); n != 3 {
		t.Fatalf("expected maxDepth=3, got %d", n)
	}
}

func TestBucketAutoOmitsOptionalFields(t *testing.T) {
	p := bsonpack.New()
	stage := aggregation.BucketAuto(p.String("$price"), 4, "", nil)
	pl := aggregation.Pipeline{stage}
	arr := pl.Compile(p)
	values, _ := p.Array(arr)
	_, payload := singleKey(t, p, values[0])

	if _, ok := p.Lookup(payload, "granularity"); ok {
		t.Fatalf("expected granularity to be omitted")
	}
	if _, ok := p.Lookup(payload, "output"); ok {
		t.Fatalf("expected output to be omitted")
	}
	buckets, _ := p.Lookup(payload, "buckets")
	if n, _ := p.Int32Value(buckets); n != 4 {
		t.Fatalf("expected buckets=4, got %d", n)
	}
}

func TestRawEscapeHatch(t *testing.T) {
	p := bsonpack.New()
	custom := p.MakeDocument(p.ElementProducer("$customStage", p.Int32(1)))
	pl := aggregation.Pipeline{aggregation.Raw(custom)}
	arr := pl.Compile(p)
	values, _ := p.Array(arr)
	key, _ := singleKey(t, p, values[0])
	if key != "$customStage" {
		t.Fatalf("expected $customStage passed through unchanged, got %s", key)
	}
}
