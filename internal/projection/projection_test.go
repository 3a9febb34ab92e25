package projection

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/casestudy"
	"tradelens/internal/dataset"
	"tradelens/internal/delta"
	"tradelens/internal/filter"
	"tradelens/internal/model"
	"tradelens/internal/tradeindex"
)

func usChina(t *testing.T) model.CaseStudy {
	t.Helper()
	study, err := casestudy.NewRegistry().Lookup("us-china")
	require.NoError(t, err)
	return study
}

func fixture(t *testing.T) model.Dataset {
	t.Helper()
	study := usChina(t)
	tariffs := []model.TariffRecord{
		{Country: "US", Product: "Steel", Year: 2018, TariffRate: 25},
		{Country: "US", Product: "Steel", Year: 2019, TariffRate: 25},
		{Country: "CN", Product: "Soybeans", Year: 2018, TariffRate: 25},
		{Country: "CN", Product: "Soybeans", Year: 2019, TariffRate: 15},
		{Country: "CN", Product: "Soybeans", Year: 2019, TariffRate: 5},
	}
	return model.Dataset{
		Study:   study,
		Tariffs: dataset.AssignCoordinates(study, tariffs),
		Trade: []model.TradeRecord{
			{Year: 2018, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
			{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 12},
			{Year: 2018, Product: "Soybeans", Exporter: "US", Importer: "CN", ValueUSDBillion: 20},
			{Year: 2019, Product: "Soybeans", Exporter: "CN", Importer: "US", ValueUSDBillion: 15},
			{Year: 2019, Product: "Electronics", Exporter: "CN", Importer: "US", ValueUSDBillion: 40},
		},
		Macro: []model.MacroRecord{
			{Country: "US", Year: 2019, GDPGrowthPct: pct(2.3), InflationPct: pct(1.8), UnemploymentPct: pct(3.7)},
			{Country: "CN", Year: 2019, GDPGrowthPct: pct(-0.5), InflationPct: pct(3.4), UnemploymentPct: pct(5.2)},
		},
	}
}

func pct(v float64) *float64 {
	return &v
}

func render(t *testing.T, ds model.Dataset, s filter.State) Views {
	t.Helper()
	baseline, _ := delta.BaselineYear(ds.Trade)
	return Render(ds, tradeindex.Build(ds.Trade), baseline, filter.Normalize(s, ds))
}

func TestMapMarkersForYear(t *testing.T) {
	ds := fixture(t)

	view := Map(ds, 2019)
	require.Len(t, view.Markers, 2)

	cn := view.Markers[0]
	assert.Equal(t, "CN", cn.Country)
	assert.Equal(t, "Soybeans", cn.Product)
	assert.Equal(t, "#e74c3c", cn.Color)
	assert.InDelta(t, 10.0, cn.AverageRate, 1e-9)
	assert.InDelta(t, 10.0, cn.Radius, 1e-9)
	assert.Equal(t, "Soybeans Tariffs (CN)\n2018: 25.0%\n2019: 10.0%", cn.PopupText)

	us := view.Markers[1]
	assert.Equal(t, "US", us.Country)
	assert.InDelta(t, 13.0, us.Radius, 1e-9)
	assert.Equal(t, []YearRate{{Year: 2018, Rate: 25}, {Year: 2019, Rate: 25}}, us.Rates)

	require.NotNil(t, view.Bounds)
	assert.InDelta(t, 37.4, view.Bounds.South, 1e-6)
	assert.InDelta(t, 41.3, view.Bounds.North, 1e-6)
}

func TestMapFallbackCoordinatesAreDeterministic(t *testing.T) {
	ds := fixture(t)
	first := Map(ds, 2018)
	second := Map(fixture(t), 2018)

	assert.Equal(t, first.Markers, second.Markers)
	for _, marker := range first.Markers {
		if marker.Country == "US" {
			assert.InDelta(t, 41.3, marker.Lat, 1e-9)
			assert.InDelta(t, -97.1, marker.Lng, 1e-9)
		}
	}
}

func TestMapEmptyYear(t *testing.T) {
	view := Map(fixture(t), 2030)
	assert.Empty(t, view.Markers)
	assert.Nil(t, view.Bounds)
	assert.Equal(t, 3, view.Zoom)
}

func TestGeoJSON(t *testing.T) {
	data, err := GeoJSON(Map(fixture(t), 2019))
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, "CN", fc.Features[0].Properties["country"])
	assert.Equal(t, 2019.0, fc.Features[0].Properties["year"])
}

func TestBarFocalCountry(t *testing.T) {
	ds := fixture(t)

	chart := Bar(ds, filter.State{Year: 2019, Country: filter.All})
	assert.Equal(t, "US", chart.Focal)
	assert.Equal(t, []string{"Electronics", "Soybeans", "Steel"}, chart.Products)
	require.Len(t, chart.Bars, 6)

	electronicsImport := chart.Bars[1]
	assert.Equal(t, model.FlowImport, electronicsImport.Flow)
	assert.Equal(t, 40.0, electronicsImport.Y)
	assert.Equal(t, "CN", electronicsImport.Partner)
	assert.Equal(t, "#e74c3c", electronicsImport.Color)
	assert.Equal(t, "$40B", electronicsImport.Label)

	steelExport := chart.Bars[4]
	assert.Equal(t, model.FlowExport, steelExport.Flow)
	assert.Equal(t, 12.0, steelExport.Y)
	assert.Equal(t, "#3498db", steelExport.Color)

	cn := Bar(ds, filter.State{Year: 2019, Country: "cn"})
	assert.Equal(t, "CN", cn.Focal)
	assert.Equal(t, 40.0, cn.Bars[0].Y)
	assert.Equal(t, model.FlowExport, cn.Bars[0].Flow)
}

func TestBarNoData(t *testing.T) {
	chart := Bar(fixture(t), filter.State{Year: 2030, Country: filter.All})
	assert.Empty(t, chart.Bars)
	assert.Equal(t, "No trade data for 2030", chart.Message)
}

func TestTrendDefaultsToFirstProduct(t *testing.T) {
	chart := Trend(fixture(t), filter.State{Year: 2019, Country: filter.All})
	assert.Equal(t, "Electronics", chart.Product)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, "CN → US", chart.Series[0].Name)
}

func TestTrendSpansYearsAndMarksTariffs(t *testing.T) {
	chart := Trend(fixture(t), filter.State{Year: 2018, Country: filter.All, Product: "Soybeans"})
	require.Len(t, chart.Series, 2)

	cn := chart.Series[0]
	assert.Equal(t, "CN", cn.Exporter)
	require.Len(t, cn.Points, 1)
	assert.Equal(t, 2019, cn.Points[0].X)
	assert.True(t, cn.Points[0].TariffActive)

	us := chart.Series[1]
	require.Len(t, us.Points, 1)
	assert.Equal(t, 2018, us.Points[0].X)
	assert.True(t, us.Points[0].TariffActive)
	assert.Equal(t, "$20B", us.Points[0].Label)
}

func TestTrendUnknownProduct(t *testing.T) {
	chart := Trend(fixture(t), filter.State{Year: 2019, Country: filter.All, Product: "Lumber"})
	assert.Empty(t, chart.Series)
	assert.Equal(t, "No trade data for Lumber", chart.Message)
}

func TestTableScenarioA(t *testing.T) {
	ds := model.Dataset{Trade: []model.TradeRecord{
		{Year: 2018, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
		{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 12},
	}}

	view := Table(ds, tradeindex.Build(ds.Trade), 2018, filter.State{Country: filter.All})
	require.Len(t, view.Rows, 2)

	baseline := view.Rows[0]
	assert.Equal(t, delta.StateBaseline, baseline.Change.Kind)
	assert.Equal(t, ClassBaseline, baseline.Cells[5].Class)

	growth := view.Rows[1]
	require.NotNil(t, growth.Change.Percent)
	assert.Equal(t, 20.0, *growth.Change.Percent)
	assert.Equal(t, DirectionUp, growth.Change.Direction)
	assert.Equal(t, "+20.0%", growth.Cells[5].Text)
	assert.Equal(t, ClassChangeUp, growth.Cells[5].Class)
}

func TestTableScenarioB(t *testing.T) {
	ds := model.Dataset{Trade: []model.TradeRecord{
		{Year: 2018, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
		{Year: 2019, Product: "Steel", Exporter: "CN", Importer: "US", ValueUSDBillion: 12},
	}}

	view := Table(ds, tradeindex.Build(ds.Trade), 2018, filter.State{Country: filter.All})
	require.Len(t, view.Rows, 2)
	require.NotNil(t, view.Rows[1].Change.Percent)
	assert.Equal(t, 20.0, *view.Rows[1].Change.Percent)
}

func TestTableScenarioC(t *testing.T) {
	ds := model.Dataset{Trade: []model.TradeRecord{
		{Year: 2018, Product: "Soybeans", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
		{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 12},
	}}

	view := Table(ds, tradeindex.Build(ds.Trade), 2018, filter.State{Country: filter.All, Product: "Steel"})
	require.Len(t, view.Rows, 1)
	change := view.Rows[0].Change
	assert.Equal(t, delta.StateNoData, change.Kind)
	assert.Nil(t, change.Percent)
	assert.Equal(t, ClassNoData, view.Rows[0].Cells[5].Class)
	assert.NotEqual(t, "Baseline year", change.Label)
}

func TestIndicatorNonFinite(t *testing.T) {
	up := math.Inf(1)
	nan := math.NaN()

	inf := Indicator(delta.YoY{PercentChange: &up})
	assert.Equal(t, "+∞%", inf.Label)
	assert.Equal(t, DirectionUp, inf.Direction)
	assert.Nil(t, inf.Percent)

	undefined := Indicator(delta.YoY{PercentChange: &nan})
	assert.Equal(t, "n/a", undefined.Label)
	assert.Equal(t, DirectionFlat, undefined.Direction)
	assert.Nil(t, undefined.Percent)

	_, err := json.Marshal(TableRow{Change: &inf})
	assert.NoError(t, err)
}

func TestTableScenarioE(t *testing.T) {
	ds := fixture(t)
	idx := tradeindex.Build(ds.Trade)

	cn := Table(ds, idx, 2018, filter.State{Country: "CN"})
	assert.Len(t, cn.Rows, 5)

	none := Table(ds, idx, 2018, filter.State{Country: "BR"})
	assert.Empty(t, none.Rows)
	assert.NotEmpty(t, none.Message)
}

func TestMacroFlags(t *testing.T) {
	view := Macro(fixture(t), 2019)
	require.Len(t, view.Rows, 2)

	cn := view.Rows[0].Cells
	assert.Equal(t, "CN", cn[0].Text)
	assert.Equal(t, "-0.5%", cn[1].Text)
	assert.Equal(t, ClassBad, cn[1].Class)
	assert.Equal(t, ClassBad, cn[2].Class)
	assert.Equal(t, ClassBad, cn[3].Class)

	us := view.Rows[1].Cells
	assert.Equal(t, ClassGood, us[1].Class)
	assert.Equal(t, ClassGood, us[2].Class)
	assert.Equal(t, ClassGood, us[3].Class)

	assert.Equal(t, "No macro data for 2018", Macro(fixture(t), 2018).Message)
}

func TestMacroMissingValue(t *testing.T) {
	ds := fixture(t)
	ds.Macro = []model.MacroRecord{
		{Country: "CN", Year: 2018, GDPGrowthPct: pct(6.7), UnemploymentPct: pct(3.8)},
	}

	view := Macro(ds, 2018)
	require.Len(t, view.Rows, 1)
	cells := view.Rows[0].Cells
	assert.Equal(t, "6.7%", cells[1].Text)
	assert.Equal(t, ClassGood, cells[1].Class)
	assert.Equal(t, "n/a", cells[2].Text)
	assert.Equal(t, ClassNoData, cells[2].Class, "a blank cell is not a good 0%")
	assert.Equal(t, ClassGood, cells[3].Class)
}

func TestTimeline(t *testing.T) {
	domain := Timeline(fixture(t))
	assert.Equal(t, YearDomain{Min: 2018, Max: 2019, Step: 1, Default: 2019, Years: []int{2018, 2019}}, domain)

	empty := Timeline(model.Dataset{})
	assert.Equal(t, 0, empty.Min)
	assert.Empty(t, empty.Years)
}

func TestTimelineDefaultMatchesInitialFilter(t *testing.T) {
	for _, defaultYear := range []int{0, 2010, 2018, 2019, 2020} {
		ds := fixture(t)
		ds.Study.DefaultYear = defaultYear

		initial := filter.Default(ds)
		views := render(t, ds, initial)
		assert.Equal(t, views.Filter.Year, views.Timeline.Default, "default year %d", defaultYear)
		assert.Equal(t, views.Filter.Year, views.Map.Year, "default year %d", defaultYear)
		assert.Contains(t, views.Timeline.Years, views.Timeline.Default)
	}
}

func TestRenderAllViews(t *testing.T) {
	views := render(t, fixture(t), filter.State{Year: 2019})

	assert.Equal(t, "us-china", views.Study.ID)
	assert.Equal(t, filter.All, views.Filter.Country)
	assert.Equal(t, 2018, views.BaselineYear)
	assert.Len(t, views.Map.Markers, 2)
	assert.Len(t, views.Bar.Bars, 6)
	assert.Equal(t, "Electronics", views.Trend.Product)
	assert.Len(t, views.Table.Rows, 5)
	assert.Len(t, views.Macro.Rows, 2)
	assert.Equal(t, []string{"CN", "US"}, views.Countries)
	assert.Len(t, views.Insights, 3)

	_, err := json.Marshal(views)
	assert.NoError(t, err)
}

func TestRenderEmptyDataset(t *testing.T) {
	views := render(t, model.Dataset{Study: usChina(t)}, filter.State{})

	assert.Empty(t, views.Map.Markers)
	assert.Empty(t, views.Bar.Bars)
	assert.Empty(t, views.Table.Rows)
	assert.NotEmpty(t, views.Table.Message)
	assert.Equal(t, "No trade data", views.Trend.Message)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$12B", formatUSDBillion(12))
	assert.Equal(t, "$12.5B", formatUSDBillion(12.46))
	assert.Equal(t, "25.0%", formatPercent(25))
	assert.Equal(t, "-12.5%", formatSignedPercent(-12.5))
	assert.Equal(t, "-∞%", formatSignedPercent(math.Inf(-1)))
	assert.Equal(t, 33.3, round1(33.333))
}
