package aggregation

import "github.com/corewire/mongodrv/pack"

// Accumulator is a $group stage's per-output-field expression. Like
// Stage, its compile method is unexported to keep the sum type closed
// to this package's constructors.
type Accumulator interface {
	compile(p pack.Pack) pack.Value
}

type accumulatorFunc func(p pack.Pack) pack.Value

func (f accumulatorFunc) compile(p pack.Pack) pack.Value { return f(p) }

// fieldRef builds the `"$<field>"` reference form every accumulator
// below supports.
func fieldRef(name string, field string) Accumulator {
	return accumulatorFunc(func(p pack.Pack) pack.Value {
		return p.MakeDocument(p.ElementProducer(name, p.String("$"+field)))
	})
}

// exprForm builds the arbitrary-expression form every accumulator below
// also supports.
func exprForm(name string, expr pack.Value) Accumulator {
	return accumulatorFunc(func(p pack.Pack) pack.Value {
		return p.MakeDocument(p.ElementProducer(name, expr))
	})
}

// SumField builds `{$sum: "$field"}`.
func SumField(field string) Accumulator { return fieldRef("$sum", field) }

// SumExpr builds `{$sum: expr}`.
func SumExpr(expr pack.Value) Accumulator { return exprForm("$sum", expr) }

// SumAll builds `{$sum: 1}`, the per-group document-count idiom.
func SumAll() Accumulator {
	return accumulatorFunc(func(p pack.Pack) pack.Value {
		return p.MakeDocument(p.ElementProducer("$sum", p.Int32(1)))
	})
}

// AvgField builds `{$avg: "$field"}`.
func AvgField(field string) Accumulator { return fieldRef("$avg", field) }

// AvgExpr builds `{$avg: expr}`.
func AvgExpr(expr pack.Value) Accumulator { return exprForm("$avg", expr) }

// FirstField builds `{$first: "$field"}`.
func FirstField(field string) Accumulator { return fieldRef("$first", field) }

// FirstExpr builds `{$first: expr}`.
func FirstExpr(expr pack.Value) Accumulator { return exprForm("$first", expr) }

// LastField builds `{$last: "$field"}`.
func LastField(field string) Accumulator { return fieldRef("$last", field) }

// LastExpr builds `{$last: expr}`.
func LastExpr(expr pack.Value) Accumulator { return exprForm("$last", expr) }

// MaxField builds `{$max: "$field"}`.
func MaxField(field string) Accumulator { return fieldRef("$max", field) }

// MaxExpr builds `{$max: expr}`.
func MaxExpr(expr pack.Value) Accumulator { return exprForm("$max", expr) }

// MinField builds `{$min: "$field"}`.
func MinField(field string) Accumulator { return fieldRef("$min", field) }

// MinExpr builds `{$min: expr}`.
func MinExpr(expr pack.Value) Accumulator { return exprForm("$min", expr) }

// PushField builds `{$push: "$field"}`.
func PushField(field string) Accumulator { return fieldRef("$push", field) }

// PushExpr builds `{$push: expr}`.
func PushExpr(expr pack.Value) Accumulator { return exprForm("$push", expr) }

// AddToSetField builds `{$addToSet: "$field"}`.
func AddToSetField(field string) Accumulator { return fieldRef("$addToSet", field) }

// AddToSetExpr builds `{$addToSet: expr}`.
func AddToSetExpr(expr pack.Value) Accumulator { return exprForm("$addToSet", expr) }

// StdDevPopField builds `{$stdDevPop: "$field"}`.
func StdDevPopField(field string) Accumulator { return fieldRef("$stdDevPop", field) }

// StdDevPopExpr builds `{$stdDevPop: expr}`.
func StdDevPopExpr(expr pack.Value) Accumulator { return exprForm("$stdDevPop", expr) }

// StdDevSampField builds `{$stdDevSamp: "$field"}`.
func StdDevSampField(field string) Accumulator { return fieldRef("$stdDevSamp", field) }

// StdDevSampExpr builds `{$stdDevSamp: expr}`.
func StdDevSampExpr(expr pack.Value) Accumulator { return exprForm("$stdDevSamp", expr) }
