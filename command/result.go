package command

import (
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack"
)

// DecodeResult inspects a reply document's "ok" field and classifies
// failure into a mongoerr exception, grounded on
// x/mongo/driverx/driver.go's extractError. The document is always
// returned alongside the error so a caller that wants to inspect
// partial results (e.g. a bulk write's successfully-applied items) can.
func DecodeResult(p pack.Pack, doc pack.Value) (pack.Value, error) {
	ok := false
	if okVal, found := p.Lookup(doc, "ok"); found {
		if f, isNum := p.AsFloat64(okVal); isNum {
			ok = f == 1
		}
	}

	if !ok {
		return doc, decodeCommandException(p, doc)
	}

	if wcErr, hasWriteErrors := decodeWriteCommandException(p, doc); hasWriteErrors {
		return doc, wcErr
	}

	return doc, nil
}

func decodeCommandException(p pack.Pack, doc pack.Value) error {
	var code int32
	var name, msg string

	if v, found := p.Lookup(doc, "code"); found {
		code, _ = p.Int32Value(v)
	}
	if v, found := p.Lookup(doc, "codeName"); found {
		name, _ = p.StringValue(v)
	}
	if v, found := p.Lookup(doc, "errmsg"); found {
		msg, _ = p.StringValue(v)
	}
	if msg == "" {
		msg = "command failed"
	}

	return mongoerr.CommandException{
		Code:    code,
		Name:    name,
		Message: msg,
		Labels:  decodeLabels(p, doc),
	}
}

func decodeLabels(p pack.Pack, doc pack.Value) []string {
	v, found := p.Lookup(doc, "errorLabels")
	if !found {
		return nil
	}
	arr, ok := p.Array(v)
	if !ok {
		return nil
	}
	labels := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := p.StringValue(el); ok {
			labels = append(labels, s)
		}
	}
	return labels
}

func decodeWriteCommandException(p pack.Pack, doc pack.Value) (mongoerr.WriteCommandException, bool) {
	var wcErr mongoerr.WriteCommandException

	if v, found := p.Lookup(doc, "writeErrors"); found {
		if arr, ok := p.Array(v); ok {
			for _, item := range arr {
				var we mongoerr.WriteError
				if iv, ok := p.Lookup(item, "index"); ok {
					if n, ok := p.Int32Value(iv); ok {
						we.Index = int64(n)
					}
				}
				if cv, ok := p.Lookup(item, "code"); ok {
					if n, ok := p.Int32Value(cv); ok {
						we.Code = int64(n)
					}
				}
				if mv, ok := p.Lookup(item, "errmsg"); ok {
					we.Message, _ = p.StringValue(mv)
				}
				wcErr.WriteErrors = append(wcErr.WriteErrors, we)
			}
		}
	}

	if v, found := p.Lookup(doc, "writeConcernError"); found {
		wce := &mongoerr.WriteConcernError{}
		if cv, ok := p.Lookup(v, "code"); ok {
			if n, ok := p.Int32Value(cv); ok {
				wce.Code = int64(n)
			}
		}
		if mv, ok := p.Lookup(v, "errmsg"); ok {
			wce.Message, _ = p.StringValue(mv)
		}
		wcErr.WriteConcernError = wce
	}

	return wcErr, len(wcErr.WriteErrors) > 0 || wcErr.WriteConcernError != nil
}
