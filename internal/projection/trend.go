package projection

import (
	"fmt"
	"sort"
	"strings"

	"tradelens/internal/casestudy"
	"tradelens/internal/filter"
	"tradelens/internal/model"
)

type TrendPoint struct {
	X            int     `json:"x"`
	Y            float64 `json:"y"`
	Label        string  `json:"label"`
	TariffActive bool    `json:"tariff_active"`
}

type TrendSeries struct {
	Name     string       `json:"name"`
	Exporter string       `json:"exporter"`
	Importer string       `json:"importer"`
	Color    string       `json:"color"`
	Points   []TrendPoint `json:"points"`
}

type TrendChart struct {
	Product string        `json:"product"`
	Series  []TrendSeries `json:"series"`
	Message string        `json:"message,omitempty"`
}

type direction struct {
	exporter string
	importer string
}

// Trend follows one product across every year, one line per trade
// direction. The selected year does not narrow it. Without a product
// selection the first product in alphabetical order is used.
func Trend(ds model.Dataset, s filter.State) TrendChart {
	product := strings.TrimSpace(s.Product)
	if !s.ProductSet() {
		product = firstTradedProduct(ds)
	}
	chart := TrendChart{Product: product, Series: []TrendSeries{}}
	if product == "" {
		chart.Message = "No trade data"
		return chart
	}

	selection := s
	selection.Product = product
	rows := filter.Apply(ds, selection)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Year < rows[j].Year
	})

	tariffYears := make(map[string]map[int]bool)
	for _, record := range ds.Tariffs {
		if record.TariffRate <= 0 {
			continue
		}
		country := strings.ToUpper(record.Country)
		if tariffYears[country] == nil {
			tariffYears[country] = make(map[int]bool)
		}
		tariffYears[country][record.Year] = true
	}

	series := make(map[direction]*TrendSeries)
	order := make([]direction, 0)
	for _, record := range rows {
		dir := direction{exporter: strings.ToUpper(record.Exporter), importer: strings.ToUpper(record.Importer)}
		line, ok := series[dir]
		if !ok {
			line = &TrendSeries{
				Name:     fmt.Sprintf("%s → %s", dir.exporter, dir.importer),
				Exporter: dir.exporter,
				Importer: dir.importer,
				Color:    casestudy.Color(ds.Study, dir.exporter),
				Points:   []TrendPoint{},
			}
			series[dir] = line
			order = append(order, dir)
		}
		line.Points = append(line.Points, TrendPoint{
			X:            record.Year,
			Y:            record.ValueUSDBillion,
			Label:        formatUSDBillion(record.ValueUSDBillion),
			TariffActive: tariffYears[dir.exporter][record.Year],
		})
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].exporter != order[j].exporter {
			return order[i].exporter < order[j].exporter
		}
		return order[i].importer < order[j].importer
	})
	for _, dir := range order {
		chart.Series = append(chart.Series, *series[dir])
	}
	if len(chart.Series) == 0 {
		chart.Message = fmt.Sprintf("No trade data for %s", product)
	}
	return chart
}

func firstTradedProduct(ds model.Dataset) string {
	first := ""
	for _, record := range ds.Trade {
		if first == "" || record.Product < first {
			first = record.Product
		}
	}
	return first
}
