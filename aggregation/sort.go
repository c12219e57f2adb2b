package aggregation

import "github.com/corewire/mongodrv/pack"

// SortOrder is one field's direction within a $sort stage.
type SortOrder interface {
	compile(p pack.Pack) pack.Element
}

type sortOrderFunc func(p pack.Pack) pack.Element

func (f sortOrderFunc) compile(p pack.Pack) pack.Element { return f(p) }

// Ascending builds `f: 1`.
func Ascending(field string) SortOrder {
	return sortOrderFunc(func(p pack.Pack) pack.Element {
		return p.ElementProducer(field, p.Int32(1))
	})
}

// Descending builds `f: -1`.
func Descending(field string) SortOrder {
	return sortOrderFunc(func(p pack.Pack) pack.Element {
		return p.ElementProducer(field, p.Int32(-1))
	})
}

// Metadata sort keywords. textScore is the only one this module names.
const MetaTextScore = "textScore"

// MetadataSort builds `f: {$meta: keyword}`.
func MetadataSort(field string, keyword string) SortOrder {
	return sortOrderFunc(func(p pack.Pack) pack.Element {
		meta := p.MakeDocument(p.ElementProducer("$meta", p.String(keyword)))
		return p.ElementProducer(field, meta)
	})
}
