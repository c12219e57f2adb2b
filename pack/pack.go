// Package pack defines the Serialization Pack contract: the narrow
// interface the core uses to build and decode documents without ever
// assuming a concrete wire format. A concrete BSON implementation lives in
// pack/bsonpack; a JSON-backed implementation for tests lives in
// pack/jsonpack. Both satisfy the same Pack interface, and the core never
// imports either directly — it is handed a Pack at construction time.
package pack

// Value is an opaque atom produced by a Pack: a document, array, string,
// int32, int64, double, boolean, or other scalar. The core never inspects
// the representation; it only ever composes values through a Pack's
// constructors and reads them back through a Reader.
type Value interface {
	// Kind reports the value's scalar/document/array class, for callers
	// that branch on shape (e.g. the command layer deciding whether a
	// reply field is a document or a plain string).
	Kind() Kind
}

// Kind enumerates the shapes a Value can take.
type Kind int

const (
	KindInvalid Kind = iota
	KindDocument
	KindArray
	KindString
	KindInt32
	KindInt64
	KindDouble
	KindBool
	KindBinary
	KindNull
	KindTimestamp
)

// Element is a (name, value) pair used to build a document. Document
// construction is the ordered concatenation of elements.
type Element struct {
	Name  string
	Value Value
}

// Pack is the capability set a serialization backend must provide. All
// methods are total: construction and read-back never return an error,
// only Encode/Decode do (the only operations that cross a byte boundary).
type Pack interface {
	// MakeDocument builds an ordered document from elements, preserving
	// field order (MongoDB commands are order-sensitive: "find" must be
	// the first key in a find command, etc).
	MakeDocument(elements ...Element) Value

	// MakeArray builds an array (possibly empty, e.g. an identity
	// aggregation pipeline) from zero or more elements.
	MakeArray(elements ...Value) Value

	// ElementProducer pairs a name with a value to build document
	// elements.
	ElementProducer(name string, value Value) Element

	Bool(v bool) Value
	Int32(v int32) Value
	Int64(v int64) Value
	Double(v float64) Value
	String(v string) Value
	Null() Value
	Binary(b []byte) Value

	// Encode serializes a Value into the wire-ready byte representation
	// (BSON bytes, JSON bytes, whatever the backend speaks).
	Encode(v Value) ([]byte, error)

	// Decode parses bytes produced by Encode back into a Value.
	Decode(b []byte) (Value, error)

	// Document gives read access to a document Value's fields in order.
	// ok is false if v is not a document.
	Document(v Value) (fields []Element, ok bool)

	// Array gives read access to an array Value's elements in order. ok
	// is false if v is not an array.
	Array(v Value) (elements []Value, ok bool)

	// Lookup finds the first top-level field named name in a document
	// Value. ok is false if v is not a document or the field is absent.
	Lookup(v Value, name string) (value Value, ok bool)

	StringValue(v Value) (string, bool)
	Int32Value(v Value) (int32, bool)
	Int64Value(v Value) (int64, bool)
	DoubleValue(v Value) (float64, bool)
	BoolValue(v Value) (bool, bool)
	BinaryValue(v Value) ([]byte, bool)

	// AsFloat64 coerces any numeric Value (int32/int64/double) to a
	// float64, used for the tolerant "ok" field comparison: a command
	// reply's ok field can arrive as 1, 1.0, or int64(1) depending on
	// the server and the backend encoding it.
	AsFloat64(v Value) (float64, bool)
}

// Writer marshals a domain type T into a Value. Writer[T] and Reader[T] are
// opaque (T -> Value) and (Value -> T-or-failure) hooks, letting callers
// like command build typed request/response helpers on top of Pack
// without Pack itself knowing about any domain type.
type Writer[T any] func(Pack, T) Value

// Reader decodes a Value back into a domain type T, failing with ok=false
// if the shape doesn't match.
type Reader[T any] func(Pack, Value) (T, bool)
