package delta

import (
	"math"

	"tradelens/internal/model"
	"tradelens/internal/tradeindex"
)

// YoY is the year-over-year comparison of one trade record. Absent values
// are nil. PercentChange is nil for the baseline year and when either side
// of the comparison is missing.
type YoY struct {
	Record         model.TradeRecord `json:"record"`
	Current        *float64          `json:"current"`
	Previous       *float64          `json:"previous"`
	PercentChange  *float64          `json:"percent_change"`
	IsBaselineYear bool              `json:"is_baseline_year"`
}

type State string

const (
	StateBaseline State = "baseline"
	StateNoData   State = "no-data"
	StateChange   State = "change"
)

func (d YoY) State() State {
	switch {
	case d.IsBaselineYear:
		return StateBaseline
	case d.PercentChange == nil:
		return StateNoData
	default:
		return StateChange
	}
}

// Compute resolves the prior-year value of record, trying the record's own
// direction first and the swapped direction second. A zero previous value is
// not guarded: the result is +Inf, -Inf or NaN.
func Compute(record model.TradeRecord, idx *tradeindex.Index, baselineYear int) YoY {
	out := YoY{Record: record}

	if current, ok := idx.Lookup(record.Year, record.Product, record.Exporter, record.Importer); ok {
		out.Current = &current
	}

	previous, ok := idx.Lookup(record.Year-1, record.Product, record.Exporter, record.Importer)
	if !ok {
		previous, ok = idx.Lookup(record.Year-1, record.Product, record.Importer, record.Exporter)
	}
	if ok {
		out.Previous = &previous
	}

	if record.Year == baselineYear {
		out.IsBaselineYear = true
		return out
	}
	if out.Previous == nil || out.Current == nil {
		return out
	}

	change := (*out.Current - *out.Previous) / *out.Previous * 100
	out.PercentChange = &change
	return out
}

func ComputeAll(records []model.TradeRecord, idx *tradeindex.Index, baselineYear int) []YoY {
	out := make([]YoY, 0, len(records))
	for _, record := range records {
		out = append(out, Compute(record, idx, baselineYear))
	}
	return out
}

// BaselineYear is the earliest year present in the trade table.
func BaselineYear(records []model.TradeRecord) (int, bool) {
	if len(records) == 0 {
		return 0, false
	}
	year := math.MaxInt
	for _, record := range records {
		if record.Year < year {
			year = record.Year
		}
	}
	return year, true
}
