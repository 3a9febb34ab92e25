package projection

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"tradelens/internal/delta"
	"tradelens/internal/filter"
	"tradelens/internal/model"
	"tradelens/internal/tradeindex"
)

const (
	ClassBaseline   = "baseline"
	ClassNoData     = "no-data"
	ClassChangeUp   = "change-up"
	ClassChangeDown = "change-down"
	ClassChangeFlat = "change-flat"
	ClassNumber     = "number"
	ClassGood       = "good"
	ClassBad        = "bad"
)

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Align string `json:"align"`
}

type Cell struct {
	Text  string `json:"text"`
	Class string `json:"class,omitempty"`
}

// ChangeIndicator is the tri-state change column: baseline, no-data, or a
// change with a direction. Percent is nil when the change is not a finite
// number (a zero previous value); Label still says what happened.
type ChangeIndicator struct {
	Kind      delta.State `json:"kind"`
	Direction Direction   `json:"direction,omitempty"`
	Percent   *float64    `json:"percent,omitempty"`
	Label     string      `json:"label"`
}

type TableRow struct {
	Cells  []Cell           `json:"cells"`
	Change *ChangeIndicator `json:"change,omitempty"`
}

type TableView struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    []TableRow `json:"rows"`
	Message string     `json:"message,omitempty"`
}

var tradeColumns = []Column{
	{Key: "year", Label: "Year", Align: "left"},
	{Key: "product", Label: "Product", Align: "left"},
	{Key: "exporter", Label: "Exporter", Align: "left"},
	{Key: "importer", Label: "Importer", Align: "left"},
	{Key: "value", Label: "Value (USD bn)", Align: "right"},
	{Key: "change", Label: "YoY Change", Align: "right"},
}

// Table runs the delta engine over the filtered trade rows, in ascending
// year order.
func Table(ds model.Dataset, idx *tradeindex.Index, baselineYear int, s filter.State) TableView {
	rows := filter.Apply(ds, s)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Product != b.Product {
			return a.Product < b.Product
		}
		if a.Exporter != b.Exporter {
			return a.Exporter < b.Exporter
		}
		return a.Importer < b.Importer
	})

	view := TableView{
		Title:   "Trade flows",
		Columns: tradeColumns,
		Rows:    make([]TableRow, 0, len(rows)),
	}
	for _, d := range delta.ComputeAll(rows, idx, baselineYear) {
		change := Indicator(d)
		view.Rows = append(view.Rows, TableRow{
			Cells: []Cell{
				{Text: strconv.Itoa(d.Record.Year)},
				{Text: d.Record.Product},
				{Text: d.Record.Exporter},
				{Text: d.Record.Importer},
				{Text: formatUSDBillion(d.Record.ValueUSDBillion), Class: ClassNumber},
				{Text: change.Label, Class: changeClass(change)},
			},
			Change: &change,
		})
	}
	if len(view.Rows) == 0 {
		view.Message = "No trade flows match the current filters"
	}
	return view
}

func Indicator(d delta.YoY) ChangeIndicator {
	switch d.State() {
	case delta.StateBaseline:
		return ChangeIndicator{Kind: delta.StateBaseline, Label: "Baseline year"}
	case delta.StateNoData:
		return ChangeIndicator{Kind: delta.StateNoData, Label: "No previous data"}
	}

	pct := *d.PercentChange
	indicator := ChangeIndicator{Kind: delta.StateChange, Label: formatSignedPercent(pct)}
	switch {
	case math.IsNaN(pct), pct == 0:
		indicator.Direction = DirectionFlat
	case pct > 0:
		indicator.Direction = DirectionUp
	default:
		indicator.Direction = DirectionDown
	}
	if !math.IsNaN(pct) && !math.IsInf(pct, 0) {
		rounded := round1(pct)
		indicator.Percent = &rounded
	}
	return indicator
}

func changeClass(indicator ChangeIndicator) string {
	switch indicator.Kind {
	case delta.StateBaseline:
		return ClassBaseline
	case delta.StateNoData:
		return ClassNoData
	}
	switch indicator.Direction {
	case DirectionUp:
		return ClassChangeUp
	case DirectionDown:
		return ClassChangeDown
	default:
		return ClassChangeFlat
	}
}

var macroColumns = []Column{
	{Key: "country", Label: "Country", Align: "left"},
	{Key: "gdp_growth", Label: "GDP Growth", Align: "right"},
	{Key: "inflation", Label: "Inflation", Align: "right"},
	{Key: "unemployment", Label: "Unemployment", Align: "right"},
}

// Macro lists the macro indicators of the selected year. Growth below zero,
// inflation above 3% and unemployment above 5% are flagged as bad; blank
// values render as n/a.
func Macro(ds model.Dataset, year int) TableView {
	records := make([]model.MacroRecord, 0)
	for _, record := range ds.Macro {
		if record.Year == year {
			records = append(records, record)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Country < records[j].Country
	})

	view := TableView{
		Title:   fmt.Sprintf("Macro indicators %d", year),
		Columns: macroColumns,
		Rows:    make([]TableRow, 0, len(records)),
	}
	for _, record := range records {
		view.Rows = append(view.Rows, TableRow{Cells: []Cell{
			{Text: record.Country},
			macroCell(record.GDPGrowthPct, func(v float64) bool { return v >= 0 }),
			macroCell(record.InflationPct, func(v float64) bool { return v <= 3 }),
			macroCell(record.UnemploymentPct, func(v float64) bool { return v <= 5 }),
		}})
	}
	if len(view.Rows) == 0 {
		view.Message = fmt.Sprintf("No macro data for %d", year)
	}
	return view
}

func macroCell(value *float64, good func(float64) bool) Cell {
	if value == nil {
		return Cell{Text: "n/a", Class: ClassNoData}
	}
	return Cell{Text: formatPercent(*value), Class: goodIf(good(*value))}
}

func goodIf(ok bool) string {
	if ok {
		return ClassGood
	}
	return ClassBad
}
