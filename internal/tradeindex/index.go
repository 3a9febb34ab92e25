// Package tradeindex answers "what was traded between A and B for product P
// in year Y" regardless of which side the caller names first.
//
// Every record is stored under its own direction and mirrored under the
// reverse direction. A record's own key always keeps its own value: a
// mirrored write never replaces a direct one, and among writes of the same
// kind the first one wins.
package tradeindex

import (
	"strings"

	"tradelens/internal/model"
)

type Key struct {
	Year    int
	Product string
	A       string
	B       string
}

func NewKey(year int, product, a, b string) Key {
	return Key{
		Year:    year,
		Product: strings.TrimSpace(product),
		A:       strings.ToUpper(strings.TrimSpace(a)),
		B:       strings.ToUpper(strings.TrimSpace(b)),
	}
}

type entry struct {
	value  float64
	direct bool
}

type Index struct {
	entries map[Key]entry
}

func Build(records []model.TradeRecord) *Index {
	idx := &Index{entries: make(map[Key]entry, len(records)*2)}
	for _, record := range records {
		idx.put(NewKey(record.Year, record.Product, record.Exporter, record.Importer), record.ValueUSDBillion, true)
		idx.put(NewKey(record.Year, record.Product, record.Importer, record.Exporter), record.ValueUSDBillion, false)
	}
	return idx
}

func (idx *Index) put(key Key, value float64, direct bool) {
	existing, ok := idx.entries[key]
	if ok && (existing.direct || !direct) {
		return
	}
	idx.entries[key] = entry{value: value, direct: direct}
}

func (idx *Index) Lookup(year int, product, a, b string) (float64, bool) {
	if idx == nil {
		return 0, false
	}
	e, ok := idx.entries[NewKey(year, product, a, b)]
	return e.value, ok
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}
