package filter

import (
	"strings"

	"tradelens/internal/model"
)

const All = "ALL"

type State struct {
	Year    int    `json:"year"`
	Country string `json:"country"`
	Product string `json:"product"`
}

func (s State) AllCountries() bool {
	country := strings.TrimSpace(s.Country)
	return country == "" || strings.EqualFold(country, All)
}

func (s State) ProductSet() bool {
	product := strings.TrimSpace(s.Product)
	return product != "" && !strings.EqualFold(product, All)
}

func (s State) MatchesCountry(country string) bool {
	return s.AllCountries() || strings.EqualFold(strings.TrimSpace(s.Country), strings.TrimSpace(country))
}

func (s State) MatchesProduct(product string) bool {
	return !s.ProductSet() || strings.EqualFold(strings.TrimSpace(s.Product), strings.TrimSpace(product))
}

// Apply returns the trade rows that involve the selected country on either
// side and match the selected product. The year is not applied here; views
// that are bound to the selected year narrow the rows themselves.
func Apply(ds model.Dataset, s State) []model.TradeRecord {
	rows := make([]model.TradeRecord, 0, len(ds.Trade))
	for _, record := range ds.Trade {
		if !s.MatchesCountry(record.Exporter) && !s.MatchesCountry(record.Importer) {
			continue
		}
		if !s.MatchesProduct(record.Product) {
			continue
		}
		rows = append(rows, record)
	}
	return rows
}

func ForYear(rows []model.TradeRecord, year int) []model.TradeRecord {
	out := make([]model.TradeRecord, 0, len(rows))
	for _, record := range rows {
		if record.Year == year {
			out = append(out, record)
		}
	}
	return out
}

func Default(ds model.Dataset) State {
	return Normalize(State{Year: ds.Study.DefaultYear, Country: All}, ds)
}

// Normalize clamps the year into the dataset's year domain and canonicalizes
// the country and product selectors. Values that do not occur in the dataset
// are kept; they simply select nothing.
func Normalize(s State, ds model.Dataset) State {
	years := ds.Years()
	if len(years) > 0 {
		switch {
		case s.Year == 0:
			s.Year = years[0]
		case s.Year < years[0]:
			s.Year = years[0]
		case s.Year > years[len(years)-1]:
			s.Year = years[len(years)-1]
		}
	}
	if s.AllCountries() {
		s.Country = All
	} else {
		s.Country = strings.ToUpper(strings.TrimSpace(s.Country))
	}
	if !s.ProductSet() {
		s.Product = ""
	} else {
		s.Product = strings.TrimSpace(s.Product)
	}
	return s
}
