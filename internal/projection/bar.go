package projection

import (
	"fmt"
	"sort"
	"strings"

	"tradelens/internal/casestudy"
	"tradelens/internal/filter"
	"tradelens/internal/model"
)

type BarPoint struct {
	X       string     `json:"x"`
	Y       float64    `json:"y"`
	Flow    model.Flow `json:"flow"`
	Partner string     `json:"partner"`
	Color   string     `json:"color"`
	Label   string     `json:"label"`
}

type BarChart struct {
	Year     int        `json:"year"`
	Focal    string     `json:"focal"`
	Products []string   `json:"products"`
	Bars     []BarPoint `json:"bars"`
	Message  string     `json:"message,omitempty"`
}

type flowTotals struct {
	export   float64
	imported float64
	partners map[model.Flow]map[string]float64
}

// Bar builds one export/import bar pair per product for the selected year,
// seen from the focal country: the selected country, or the study's first
// country when all countries are selected.
func Bar(ds model.Dataset, s filter.State) BarChart {
	focal := ds.Study.FocalCountry()
	if !s.AllCountries() {
		focal = strings.ToUpper(strings.TrimSpace(s.Country))
	}
	chart := BarChart{
		Year:     s.Year,
		Focal:    focal,
		Products: []string{},
		Bars:     []BarPoint{},
	}

	totals := make(map[string]*flowTotals)
	for _, record := range filter.ForYear(filter.Apply(ds, s), s.Year) {
		exporter := strings.ToUpper(record.Exporter)
		importer := strings.ToUpper(record.Importer)
		var flow model.Flow
		var partner string
		switch focal {
		case exporter:
			flow, partner = model.FlowExport, importer
		case importer:
			flow, partner = model.FlowImport, exporter
		default:
			continue
		}
		t, ok := totals[record.Product]
		if !ok {
			t = &flowTotals{partners: map[model.Flow]map[string]float64{
				model.FlowExport: {},
				model.FlowImport: {},
			}}
			totals[record.Product] = t
		}
		if flow == model.FlowExport {
			t.export += record.ValueUSDBillion
		} else {
			t.imported += record.ValueUSDBillion
		}
		t.partners[flow][partner] += record.ValueUSDBillion
	}

	if len(totals) == 0 {
		chart.Message = fmt.Sprintf("No trade data for %d", s.Year)
		return chart
	}

	for product := range totals {
		chart.Products = append(chart.Products, product)
	}
	sort.Strings(chart.Products)

	focalColor := casestudy.Color(ds.Study, focal)
	for _, product := range chart.Products {
		t := totals[product]
		exportPartner := mainPartner(t.partners[model.FlowExport])
		importPartner := mainPartner(t.partners[model.FlowImport])
		chart.Bars = append(chart.Bars,
			BarPoint{
				X:       product,
				Y:       t.export,
				Flow:    model.FlowExport,
				Partner: exportPartner,
				Color:   focalColor,
				Label:   formatUSDBillion(t.export),
			},
			BarPoint{
				X:       product,
				Y:       t.imported,
				Flow:    model.FlowImport,
				Partner: importPartner,
				Color:   casestudy.Color(ds.Study, importPartner),
				Label:   formatUSDBillion(t.imported),
			},
		)
	}
	return chart
}

// mainPartner picks the partner with the largest value, breaking ties by name.
func mainPartner(values map[string]float64) string {
	best := ""
	bestValue := -1.0
	for partner, value := range values {
		if value > bestValue || (value == bestValue && partner < best) {
			best, bestValue = partner, value
		}
	}
	return best
}
