package model

import (
	"sort"
	"strings"
)

type Flow string

const (
	FlowExport Flow = "export"
	FlowImport Flow = "import"
)

type Table string

const (
	TableTariffs Table = "tariffs"
	TableTrade   Table = "trade_volumes"
	TableMacro   Table = "macro"
)

func (t Table) FileName() string {
	return string(t) + ".csv"
}

type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

func (l LatLng) Add(other LatLng) LatLng {
	return LatLng{Lat: l.Lat + other.Lat, Lng: l.Lng + other.Lng}
}

type CaseStudy struct {
	ID            string            `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	MapCenter     LatLng            `json:"map_center" yaml:"map_center"`
	MapZoom       int               `json:"map_zoom" yaml:"map_zoom"`
	DataPath      string            `json:"-" yaml:"data_path"`
	Countries     []string          `json:"countries" yaml:"countries"`
	CountryColors map[string]string `json:"country_colors" yaml:"country_colors"`
	Insights      []string          `json:"insights" yaml:"insights"`
	DefaultYear   int               `json:"default_year" yaml:"default_year"`
}

// FocalCountry is the side of the dispute whose exports and imports the
// bar chart reports when no country filter is active.
func (c CaseStudy) FocalCountry() string {
	if len(c.Countries) == 0 {
		return ""
	}
	return c.Countries[0]
}

type TariffRecord struct {
	Country    string  `json:"country"`
	Product    string  `json:"product"`
	Year       int     `json:"year"`
	TariffRate float64 `json:"tariff_rate"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	// HasGeo reports whether Lat and Lng came from the source table rather
	// than from deterministic placement.
	HasGeo     bool    `json:"-"`
}

type TradeRecord struct {
	Year            int     `json:"year"`
	Product         string  `json:"product"`
	Exporter        string  `json:"exporter"`
	Importer        string  `json:"importer"`
	ValueUSDBillion float64 `json:"value_usd_billion"`
}

// MacroRecord holds one country-year of indicators. A nil value is a blank
// source cell, not zero.
type MacroRecord struct {
	Country         string   `json:"country"`
	Year            int      `json:"year"`
	GDPGrowthPct    *float64 `json:"gdp_growth_pct"`
	InflationPct    *float64 `json:"inflation_pct"`
	UnemploymentPct *float64 `json:"unemployment_pct"`
}

type Dataset struct {
	Study   CaseStudy      `json:"study"`
	Tariffs []TariffRecord `json:"tariffs"`
	Trade   []TradeRecord  `json:"trade"`
	Macro   []MacroRecord  `json:"macro"`
}

func (d Dataset) IsEmpty() bool {
	return len(d.Tariffs) == 0 && len(d.Trade) == 0 && len(d.Macro) == 0
}

// Years returns the sorted union of tariff and trade years.
func (d Dataset) Years() []int {
	set := make(map[int]struct{})
	for _, record := range d.Tariffs {
		set[record.Year] = struct{}{}
	}
	for _, record := range d.Trade {
		set[record.Year] = struct{}{}
	}
	return sortedYears(set)
}

func (d Dataset) TradeYears() []int {
	set := make(map[int]struct{})
	for _, record := range d.Trade {
		set[record.Year] = struct{}{}
	}
	return sortedYears(set)
}

func (d Dataset) Products() []string {
	set := make(map[string]struct{})
	for _, record := range d.Trade {
		set[record.Product] = struct{}{}
	}
	for _, record := range d.Tariffs {
		set[record.Product] = struct{}{}
	}
	return sortedKeys(set)
}

func (d Dataset) Countries() []string {
	set := make(map[string]struct{})
	for _, record := range d.Trade {
		set[strings.ToUpper(record.Exporter)] = struct{}{}
		set[strings.ToUpper(record.Importer)] = struct{}{}
	}
	for _, record := range d.Tariffs {
		set[strings.ToUpper(record.Country)] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedYears(set map[int]struct{}) []int {
	years := make([]int, 0, len(set))
	for year := range set {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
