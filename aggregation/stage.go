// Package aggregation implements the closed pipeline-stage/accumulator
// algebra: each stage compiles to a one-key document `{"$<stage>":
// <payload>}`, grounded in spirit on mongo/mongo.go's
// transformAggregatePipeline (which accepts *bson.Array/[]*bson.Document/
// []interface{} and normalizes them into a pipeline array) but replacing
// that reflection-driven transform with a typed sum type.
package aggregation

import "github.com/corewire/mongodrv/pack"

// Stage is a single pipeline stage. The unexported compile method keeps
// the sum type closed to this package: callers build stages only
// through the constructors below, or through Raw for anything this
// algebra doesn't name.
type Stage interface {
	compile(p pack.Pack) pack.Value
}

type stageFunc func(p pack.Pack) pack.Value

func (f stageFunc) compile(p pack.Pack) pack.Value { return f(p) }

func dollarDoc(p pack.Pack, name string, payload pack.Value) pack.Value {
	return p.MakeDocument(p.ElementProducer(name, payload))
}

// Raw is the escape hatch: an already-built single-key stage document,
// passed through unchanged. Used for stages this algebra doesn't model
// directly (e.g. `$geoNear`'s large option set, server-version-specific
// stages).
func Raw(doc pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return doc })
}

// Project builds `{$project: fields}`.
func Project(fields pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$project", fields) })
}

// Match builds `{$match: filter}`.
func Match(filter pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$match", filter) })
}

// Redact builds `{$redact: expr}`.
func Redact(expr pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$redact", expr) })
}

// Limit builds `{$limit: n}`.
func Limit(n int64) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$limit", p.Int64(n)) })
}

// Skip builds `{$skip: n}`.
func Skip(n int64) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$skip", p.Int64(n)) })
}

// Sample builds `{$sample: {size: n}}`.
func Sample(size int32) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		payload := p.MakeDocument(p.ElementProducer("size", p.Int32(size)))
		return dollarDoc(p, "$sample", payload)
	})
}

// AddFields builds `{$addFields: fields}`.
func AddFields(fields pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$addFields", fields) })
}

// BucketAuto builds `{$bucketAuto: {groupBy, buckets, granularity?, output?}}`.
// An empty granularity or nil output omits the corresponding field.
func BucketAuto(groupBy pack.Value, buckets int32, granularity string, output pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		elems := []pack.Element{
			p.ElementProducer("groupBy", groupBy),
			p.ElementProducer("buckets", p.Int32(buckets)),
		}
		if granularity != "" {
			elems = append(elems, p.ElementProducer("granularity", p.String(granularity)))
		}
		if output != nil {
			elems = append(elems, p.ElementProducer("output", output))
		}
		return dollarDoc(p, "$bucketAuto", p.MakeDocument(elems...))
	})
}

// Lookup builds `{$lookup: {from, localField, foreignField, as}}`.
func Lookup(from, localField, foreignField, as string) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		payload := p.MakeDocument(
			p.ElementProducer("from", p.String(from)),
			p.ElementProducer("localField", p.String(localField)),
			p.ElementProducer("foreignField", p.String(foreignField)),
			p.ElementProducer("as", p.String(as)),
		)
		return dollarDoc(p, "$lookup", payload)
	})
}

// GraphLookupOptions carries $graphLookup's optional fields. A nil
// MaxDepth, empty DepthField, or nil RestrictSearchWithMatch omits the
// corresponding field.
type GraphLookupOptions struct {
	MaxDepth                *int32
	DepthField              string
	RestrictSearchWithMatch pack.Value
}

// GraphLookup builds `{$graphLookup: {from, startWith, connectFromField,
// connectToField, as, maxDepth?, depthField?, restrictSearchWithMatch?}}`.
func GraphLookup(from string, startWith pack.Value, connectFromField, connectToField, as string, opts GraphLookupOptions) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		elems := []pack.Element{
			p.ElementProducer("from", p.String(from)),
			p.ElementProducer("startWith", startWith),
			p.ElementProducer("connectFromField", p.String(connectFromField)),
			p.ElementProducer("connectToField", p.String(connectToField)),
			p.ElementProducer("as", p.String(as)),
		}
		if opts.MaxDepth != nil {
			elems = append(elems, p.ElementProducer("maxDepth", p.Int32(*opts.MaxDepth)))
		}
		if opts.DepthField != "" {
			elems = append(elems, p.ElementProducer("depthField", p.String(opts.DepthField)))
		}
		if opts.RestrictSearchWithMatch != nil {
			elems = append(elems, p.ElementProducer("restrictSearchWithMatch", opts.RestrictSearchWithMatch))
		}
		return dollarDoc(p, "$graphLookup", p.MakeDocument(elems...))
	})
}

// Filter builds `{$filter: {input, as, cond}}`.
func Filter(input pack.Value, as string, cond pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		payload := p.MakeDocument(
			p.ElementProducer("input", input),
			p.ElementProducer("as", p.String(as)),
			p.ElementProducer("cond", cond),
		)
		return dollarDoc(p, "$filter", payload)
	})
}

// Unwind builds the field-form `{$unwind: "$field"}`.
func Unwind(field string) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$unwind", p.String("$"+field)) })
}

// UnwindOptions carries the full-form $unwind's optional fields.
type UnwindOptions struct {
	IncludeArrayIndex          string
	HasIncludeArrayIndex       bool
	PreserveNullAndEmptyArrays bool
}

// UnwindFull builds the full-form `{$unwind: {path, includeArrayIndex?,
// preserveNullAndEmptyArrays?}}`.
func UnwindFull(path string, opts UnwindOptions) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		elems := []pack.Element{p.ElementProducer("path", p.String("$"+path))}
		if opts.HasIncludeArrayIndex {
			elems = append(elems, p.ElementProducer("includeArrayIndex", p.String(opts.IncludeArrayIndex)))
		}
		if opts.PreserveNullAndEmptyArrays {
			elems = append(elems, p.ElementProducer("preserveNullAndEmptyArrays", p.Bool(true)))
		}
		return dollarDoc(p, "$unwind", p.MakeDocument(elems...))
	})
}

// GeoNear builds `{$geoNear: spec}`; this module leaves $geoNear's option
// set unspecified beyond naming the stage, so its payload is taken as a
// caller-built document rather than modeled field-by-field.
func GeoNear(spec pack.Value) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$geoNear", spec) })
}

// IndexStats builds `{$indexStats: {}}`.
func IndexStats() Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		return dollarDoc(p, "$indexStats", p.MakeDocument())
	})
}

// Out builds `{$out: collection}`.
func Out(collection string) Stage {
	return stageFunc(func(p pack.Pack) pack.Value { return dollarDoc(p, "$out", p.String(collection)) })
}

// GroupField pairs an output field name with the accumulator expression
// that computes it, for use with Group.
type GroupField struct {
	Name        string
	Accumulator Accumulator
}

// Accum is a convenience constructor for a GroupField.
func Accum(name string, acc Accumulator) GroupField {
	return GroupField{Name: name, Accumulator: acc}
}

// Group builds `{$group: {_id: id, <name>: <accumulator>, ...}}`.
func Group(id pack.Value, fields ...GroupField) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		elems := make([]pack.Element, 0, len(fields)+1)
		elems = append(elems, p.ElementProducer("_id", id))
		for _, f := range fields {
			elems = append(elems, p.ElementProducer(f.Name, f.Accumulator.compile(p)))
		}
		return dollarDoc(p, "$group", p.MakeDocument(elems...))
	})
}

// Sort builds `{$sort: {f1: ±1, ...}}` from one or more SortOrder
// terms.
func Sort(orders ...SortOrder) Stage {
	return stageFunc(func(p pack.Pack) pack.Value {
		elems := make([]pack.Element, len(orders))
		for i, o := range orders {
			elems[i] = o.compile(p)
		}
		return dollarDoc(p, "$sort", p.MakeDocument(elems...))
	})
}

// Pipeline is an ordered sequence of stages.
type Pipeline []Stage

// Compile renders the pipeline into the array value the `aggregate`
// command's `pipeline` field expects. An empty pipeline compiles to an
// empty array, the identity pipeline.
func (pl Pipeline) Compile(p pack.Pack) pack.Value {
	compiled := make([]pack.Value, len(pl))
	for i, s := range pl {
		compiled[i] = s.compile(p)
	}
	return p.MakeArray(compiled...)
}
