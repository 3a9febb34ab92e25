package tradeindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradelens/internal/model"
)

func TestLookupIsSymmetric(t *testing.T) {
	records := []model.TradeRecord{
		{Year: 2018, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
		{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 12},
		{Year: 2019, Product: "Soybeans", Exporter: "US", Importer: "CN", ValueUSDBillion: 8},
		{Year: 2019, Product: "Autos", Exporter: "EU", Importer: "US", ValueUSDBillion: 43.5},
	}
	idx := Build(records)

	for _, r := range records {
		v, ok := idx.Lookup(r.Year, r.Product, r.Exporter, r.Importer)
		assert.True(t, ok)
		assert.Equal(t, r.ValueUSDBillion, v)

		v, ok = idx.Lookup(r.Year, r.Product, r.Importer, r.Exporter)
		assert.True(t, ok)
		assert.Equal(t, r.ValueUSDBillion, v)
	}
	assert.Equal(t, 8, idx.Len())
}

func TestLookupMiss(t *testing.T) {
	idx := Build([]model.TradeRecord{
		{Year: 2018, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
	})

	_, ok := idx.Lookup(2017, "Steel", "US", "CN")
	assert.False(t, ok)
	_, ok = idx.Lookup(2018, "Aluminum", "US", "CN")
	assert.False(t, ok)
	_, ok = idx.Lookup(2018, "Steel", "US", "EU")
	assert.False(t, ok)

	var empty *Index
	_, ok = empty.Lookup(2018, "Steel", "US", "CN")
	assert.False(t, ok)
}

func TestLookupNormalizesCountryCase(t *testing.T) {
	idx := Build([]model.TradeRecord{
		{Year: 2018, Product: "Steel", Exporter: "us", Importer: "cn", ValueUSDBillion: 10},
	})
	v, ok := idx.Lookup(2018, "Steel", "CN", "US")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
}

func TestDirectEntriesSurviveMirroredWrites(t *testing.T) {
	idx := Build([]model.TradeRecord{
		{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
		{Year: 2019, Product: "Steel", Exporter: "CN", Importer: "US", ValueUSDBillion: 7},
	})

	v, _ := idx.Lookup(2019, "Steel", "US", "CN")
	assert.Equal(t, 10.0, v)
	v, _ = idx.Lookup(2019, "Steel", "CN", "US")
	assert.Equal(t, 7.0, v)
}

func TestDuplicateDirectKeyKeepsFirstWrite(t *testing.T) {
	idx := Build([]model.TradeRecord{
		{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
		{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 99},
	})

	v, _ := idx.Lookup(2019, "Steel", "US", "CN")
	assert.Equal(t, 10.0, v)
	v, _ = idx.Lookup(2019, "Steel", "CN", "US")
	assert.Equal(t, 10.0, v)
}
