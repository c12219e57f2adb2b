// Package jsonpack is a test-only Serialization Pack (pack.Pack) backed by
// encoding/json: the core never assumes BSON, so a test pack may emit
// JSON instead — this is that pack, used to exercise the core's
// pack-agnostic round-trip invariant without a BSON dependency in test code.
package jsonpack

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/corewire/mongodrv/pack"
)

// New returns the JSON-backed test Pack.
func New() pack.Pack {
	return jsonPack{}
}

type jsonPack struct{}

type element struct {
	name  string
	value pack.Value
}

type value struct {
	kind pack.Kind
	raw  interface{} // []element for document, []pack.Value for array, scalar otherwise
}

func (v *value) Kind() pack.Kind { return v.kind }

func wrap(kind pack.Kind, raw interface{}) pack.Value {
	return &value{kind: kind, raw: raw}
}

func asValue(v pack.Value) *value {
	jv, ok := v.(*value)
	if !ok {
		panic(fmt.Sprintf("jsonpack: foreign pack.Value %T", v))
	}
	return jv
}

func (jsonPack) MakeDocument(elements ...pack.Element) pack.Value {
	elems := make([]element, 0, len(elements))
	for _, e := range elements {
		elems = append(elems, element{name: e.Name, value: e.Value})
	}
	return wrap(pack.KindDocument, elems)
}

func (jsonPack) MakeArray(elements ...pack.Value) pack.Value {
	values := append([]pack.Value{}, elements...)
	return wrap(pack.KindArray, values)
}

func (jsonPack) ElementProducer(name string, v pack.Value) pack.Element {
	return pack.Element{Name: name, Value: v}
}

func (jsonPack) Bool(v bool) pack.Value      { return wrap(pack.KindBool, v) }
func (jsonPack) Int32(v int32) pack.Value    { return wrap(pack.KindInt32, v) }
func (jsonPack) Int64(v int64) pack.Value    { return wrap(pack.KindInt64, v) }
func (jsonPack) Double(v float64) pack.Value { return wrap(pack.KindDouble, v) }
func (jsonPack) String(v string) pack.Value  { return wrap(pack.KindString, v) }
func (jsonPack) Null() pack.Value            { return wrap(pack.KindNull, nil) }
func (jsonPack) Binary(b []byte) pack.Value  { return wrap(pack.KindBinary, append([]byte{}, b...)) }

// Encode writes v as JSON, preserving document field order by hand (Go's
// encoding/json has no ordered-map support) and tagging int64/int32 values
// so Decode can tell them apart from a plain JSON number.
func (jsonPack) Encode(v pack.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v pack.Value) error {
	jv := asValue(v)
	switch jv.kind {
	case pack.KindDocument:
		buf.WriteByte('{')
		elems := jv.raw.([]element)
		for i, e := range elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(e.name)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := encodeValue(buf, e.value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case pack.KindArray:
		buf.WriteByte('[')
		values := jv.raw.([]pack.Value)
		for i, e := range values {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case pack.KindInt64:
		fmt.Fprintf(buf, `{"$i64":%d}`, jv.raw.(int64))
		return nil
	case pack.KindInt32:
		fmt.Fprintf(buf, `{"$i32":%d}`, jv.raw.(int32))
		return nil
	case pack.KindNull:
		buf.WriteString("null")
		return nil
	case pack.KindBinary:
		b, err := json.Marshal(base64.StdEncoding.EncodeToString(jv.raw.([]byte)))
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, `{"$bin":%s}`, b)
		return nil
	default:
		b, err := json.Marshal(jv.raw)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// Decode parses JSON bytes back into a Value, preserving document field
// order using json.Decoder's token stream.
func (jsonPack) Decode(b []byte) (pack.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (pack.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (pack.Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			elems, int64Wrapped, err := decodeObjectBody(dec)
			if err != nil {
				return nil, err
			}
			if int64Wrapped != nil {
				return int64Wrapped, nil
			}
			return wrap(pack.KindDocument, elems), nil
		case '[':
			var values []pack.Value
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return wrap(pack.KindArray, values), nil
		}
		return nil, fmt.Errorf("jsonpack: unexpected delimiter %v", t)
	case string:
		return wrap(pack.KindString, t), nil
	case bool:
		return wrap(pack.KindBool, t), nil
	case float64:
		return wrap(pack.KindDouble, t), nil
	case nil:
		return wrap(pack.KindNull, nil), nil
	default:
		return nil, fmt.Errorf("jsonpack: unsupported token %T", tok)
	}
}

// decodeObjectBody reads {...} field by field. If the object is exactly the
// int64-wrapper shape {"$i64": N} emitted by Encode, it returns the decoded
// int64 Value directly instead of a document.
func decodeObjectBody(dec *json.Decoder) ([]element, pack.Value, error) {
	var elems []element
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := keyTok.(string)
		v, err := decodeValue(dec)
		if err != nil {
			return nil, nil, err
		}
		elems = append(elems, element{name: key, value: v})
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return nil, nil, err
	}
	if len(elems) == 1 {
		switch elems[0].name {
		case "$i64":
			if f, ok := asValue(elems[0].value).raw.(float64); ok {
				return nil, wrap(pack.KindInt64, int64(f)), nil
			}
		case "$i32":
			if f, ok := asValue(elems[0].value).raw.(float64); ok {
				return nil, wrap(pack.KindInt32, int32(f)), nil
			}
		case "$bin":
			if s, ok := asValue(elems[0].value).raw.(string); ok {
				b, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return nil, nil, err
				}
				return nil, wrap(pack.KindBinary, b), nil
			}
		}
	}
	return elems, nil, nil
}

func (jsonPack) Document(v pack.Value) ([]pack.Element, bool) {
	jv := asValue(v)
	elems, ok := jv.raw.([]element)
	if !ok {
		return nil, false
	}
	out := make([]pack.Element, 0, len(elems))
	for _, e := range elems {
		out = append(out, pack.Element{Name: e.name, Value: e.value})
	}
	return out, true
}

func (jsonPack) Array(v pack.Value) ([]pack.Value, bool) {
	jv := asValue(v)
	values, ok := jv.raw.([]pack.Value)
	return values, ok
}

func (p jsonPack) Lookup(v pack.Value, name string) (pack.Value, bool) {
	elems, ok := p.Document(v)
	if !ok {
		return nil, false
	}
	for _, e := range elems {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

func (jsonPack) StringValue(v pack.Value) (string, bool) {
	s, ok := asValue(v).raw.(string)
	return s, ok
}

func (jsonPack) Int32Value(v pack.Value) (int32, bool) {
	n, ok := asValue(v).raw.(int32)
	return n, ok
}

func (jsonPack) Int64Value(v pack.Value) (int64, bool) {
	n, ok := asValue(v).raw.(int64)
	return n, ok
}

func (jsonPack) DoubleValue(v pack.Value) (float64, bool) {
	jv := asValue(v)
	if jv.kind != pack.KindDouble {
		return 0, false
	}
	f, ok := jv.raw.(float64)
	return f, ok
}

func (jsonPack) BoolValue(v pack.Value) (bool, bool) {
	b, ok := asValue(v).raw.(bool)
	return b, ok
}

func (jsonPack) BinaryValue(v pack.Value) ([]byte, bool) {
	b, ok := asValue(v).raw.([]byte)
	return b, ok
}

func (jsonPack) AsFloat64(v pack.Value) (float64, bool) {
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
