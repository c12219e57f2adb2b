// Package bsonpack is the concrete, production Serialization Pack (pack.Pack)
// backed by go.mongodb.org/mongo-driver/v2/bson. The rest of this core
// treats the bson package as an external collaborator: it only ever
// calls through the pack.Pack interface, never the bson package
// directly.
package bsonpack

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/corewire/mongodrv/pack"
)

// New returns the BSON-backed Pack.
func New() pack.Pack {
	return bsonPack{}
}

type bsonPack struct{}

// value is the concrete pack.Value: a Kind tag plus the underlying bson.D /
// bson.A / scalar it wraps.
type value struct {
	kind pack.Kind
	raw  interface{}
}

func (v *value) Kind() pack.Kind { return v.kind }

func wrap(kind pack.Kind, raw interface{}) pack.Value {
	return &value{kind: kind, raw: raw}
}

func asValue(v pack.Value) *value {
	bv, ok := v.(*value)
	if !ok {
		panic(fmt.Sprintf("bsonpack: foreign pack.Value %T", v))
	}
	return bv
}

func (bsonPack) MakeDocument(elements ...pack.Element) pack.Value {
	d := make(bson.D, 0, len(elements))
	for _, e := range elements {
		d = append(d, bson.E{Key: e.Name, Value: asValue(e.Value).raw})
	}
	return wrap(pack.KindDocument, d)
}

func (bsonPack) MakeArray(elements ...pack.Value) pack.Value {
	a := make(bson.A, 0, len(elements))
	for _, v := range elements {
		a = append(a, asValue(v).raw)
	}
	return wrap(pack.KindArray, a)
}

func (bsonPack) ElementProducer(name string, v pack.Value) pack.Element {
	return pack.Element{Name: name, Value: v}
}

func (bsonPack) Bool(v bool) pack.Value      { return wrap(pack.KindBool, v) }
func (bsonPack) Int32(v int32) pack.Value    { return wrap(pack.KindInt32, v) }
func (bsonPack) Int64(v int64) pack.Value    { return wrap(pack.KindInt64, v) }
func (bsonPack) Double(v float64) pack.Value { return wrap(pack.KindDouble, v) }
func (bsonPack) String(v string) pack.Value  { return wrap(pack.KindString, v) }
func (bsonPack) Null() pack.Value            { return wrap(pack.KindNull, nil) }
func (bsonPack) Binary(b []byte) pack.Value  { return wrap(pack.KindBinary, bson.Binary{Data: b}) }

// Encode serializes a document Value to BSON bytes. Non-document values are
// wrapped in a single-field document so Encode/Decode still round-trip them,
// since every wire-level use of a Pack in this core encodes full command
// documents, never bare scalars.
func (bsonPack) Encode(v pack.Value) ([]byte, error) {
	bv := asValue(v)
	if bv.kind == pack.KindDocument {
		return bson.Marshal(bv.raw)
	}
	return bson.Marshal(bson.D{{Key: scalarWrapperKey, Value: bv.raw}})
}

const scalarWrapperKey = "$v"

func (bsonPack) Decode(b []byte) (pack.Value, error) {
	var d bson.D
	if err := bson.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	if len(d) == 1 && d[0].Key == scalarWrapperKey {
		return fromRaw(d[0].Value), nil
	}
	return wrap(pack.KindDocument, d), nil
}

func (bsonPack) Document(v pack.Value) ([]pack.Element, bool) {
	bv := asValue(v)
	d, ok := bv.raw.(bson.D)
	if !ok {
		return nil, false
	}
	elements := make([]pack.Element, 0, len(d))
	for _, e := range d {
		elements = append(elements, pack.Element{Name: e.Key, Value: fromRaw(e.Value)})
	}
	return elements, true
}

func (bsonPack) Array(v pack.Value) ([]pack.Value, bool) {
	bv := asValue(v)
	a, ok := bv.raw.(bson.A)
	if !ok {
		return nil, false
	}
	values := make([]pack.Value, 0, len(a))
	for _, e := range a {
		values = append(values, fromRaw(e))
	}
	return values, true
}

func (bsonPack) Lookup(v pack.Value, name string) (pack.Value, bool) {
	bv := asValue(v)
	d, ok := bv.raw.(bson.D)
	if !ok {
		return nil, false
	}
	for _, e := range d {
		if e.Key == name {
			return fromRaw(e.Value), true
		}
	}
	return nil, false
}

func (bsonPack) StringValue(v pack.Value) (string, bool) {
	s, ok := asValue(v).raw.(string)
	return s, ok
}

func (bsonPack) Int32Value(v pack.Value) (int32, bool) {
	n, ok := asValue(v).raw.(int32)
	return n, ok
}

func (bsonPack) Int64Value(v pack.Value) (int64, bool) {
	n, ok := asValue(v).raw.(int64)
	return n, ok
}

func (bsonPack) DoubleValue(v pack.Value) (float64, bool) {
	n, ok := asValue(v).raw.(float64)
	return n, ok
}

func (bsonPack) BoolValue(v pack.Value) (bool, bool) {
	b, ok := asValue(v).raw.(bool)
	return b, ok
}

func (bsonPack) BinaryValue(v pack.Value) ([]byte, bool) {
	b, ok := asValue(v).raw.(bson.Binary)
	if !ok {
		return nil, false
	}
	return b.Data, true
}

func (bsonPack) AsFloat64(v pack.Value) (float64, bool) {
	switch raw := asValue(v).raw.(type) {
	case int32:
		return float64(raw), true
	case int64:
		return float64(raw), true
	case float64:
		return raw, true
	default:
		return 0, false
	}
}

// fromRaw infers a Kind for a value decoded off the wire by bson.Unmarshal,
// which hands back bson.D/bson.A/string/int32/int64/float64/bool/nil for the
// generic `interface{}` shape this pack uses.
func fromRaw(raw interface{}) pack.Value {
	switch r := raw.(type) {
	case bson.D:
		return wrap(pack.KindDocument, r)
	case bson.A:
		return wrap(pack.KindArray, r)
	case string:
		return wrap(pack.KindString, r)
	case int32:
		return wrap(pack.KindInt32, r)
	case int64:
		return wrap(pack.KindInt64, r)
	case float64:
		return wrap(pack.KindDouble, r)
	case bool:
		return wrap(pack.KindBool, r)
	case bson.Binary:
		return wrap(pack.KindBinary, r)
	case nil:
		return wrap(pack.KindNull, nil)
	default:
		return wrap(pack.KindInvalid, r)
	}
}
