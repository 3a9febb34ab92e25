package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/casestudy"
	"tradelens/internal/filter"
	"tradelens/internal/model"
	"tradelens/internal/projection"
	"tradelens/internal/providers"
)

type stubReader struct {
	tariffs  []model.TariffRecord
	trade    []model.TradeRecord
	macro    []model.MacroRecord
	macroErr error
}

func (r stubReader) ReadTariffs(context.Context, model.CaseStudy) ([]model.TariffRecord, error) {
	return r.tariffs, nil
}

func (r stubReader) ReadTrade(context.Context, model.CaseStudy) ([]model.TradeRecord, error) {
	return r.trade, nil
}

func (r stubReader) ReadMacro(context.Context, model.CaseStudy) ([]model.MacroRecord, error) {
	return r.macro, r.macroErr
}

func reader() stubReader {
	return stubReader{
		tariffs: []model.TariffRecord{
			{Country: "US", Product: "Steel", Year: 2018, TariffRate: 25},
			{Country: "CN", Product: "Soybeans", Year: 2019, TariffRate: 25},
		},
		trade: []model.TradeRecord{
			{Year: 2018, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 10},
			{Year: 2019, Product: "Steel", Exporter: "US", Importer: "CN", ValueUSDBillion: 12},
			{Year: 2019, Product: "Soybeans", Exporter: "US", Importer: "CN", ValueUSDBillion: 8},
		},
		macroErr: providers.ErrNotFound,
	}
}

func study(t *testing.T) model.CaseStudy {
	t.Helper()
	s, err := casestudy.NewRegistry().Lookup("us-china")
	require.NoError(t, err)
	return s
}

func TestLoadDegradesMissingTable(t *testing.T) {
	s := Load(context.Background(), study(t), reader())

	assert.Len(t, s.Dataset.Trade, 3)
	assert.Empty(t, s.Dataset.Macro)
	assert.Equal(t, 2018, s.BaselineYear)
	assert.Equal(t, 3, s.Index.Len()/2)
	assert.Equal(t, filter.State{Year: 2019, Country: filter.All}, s.Filter)
	assert.NotEqual(t, s.ID.String(), Load(context.Background(), study(t), reader()).ID.String())
}

func TestInitialRenderAgreesOnYear(t *testing.T) {
	s := Load(context.Background(), study(t), reader())
	require.Equal(t, 2020, s.Dataset.Study.DefaultYear, "configured year lies past the data")

	views := s.Render()
	assert.Equal(t, 2019, views.Filter.Year)
	assert.Equal(t, views.Filter.Year, views.Timeline.Default)
	assert.Equal(t, views.Filter.Year, views.Map.Year)
}

func TestLoadWithReport(t *testing.T) {
	s, report := LoadWithReport(context.Background(), study(t), reader())
	assert.Len(t, s.Dataset.Trade, 3)
	assert.Equal(t, []model.Table{model.TableMacro}, report.Failed)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := Load(context.Background(), study(t), reader())
	before := s.Filter

	next := Apply(CountrySelected{Country: "cn"}, s)
	assert.Equal(t, before, s.Filter)
	assert.Equal(t, "CN", next.Filter.Country)
	assert.Equal(t, s.ID, next.ID)

	next = Apply(ProductSelected{Product: "Steel"}, next)
	next = Apply(YearSelected{Year: 1990}, next)
	assert.Equal(t, filter.State{Year: 2018, Country: "CN", Product: "Steel"}, next.Filter)
	assert.Equal(t, before, s.Filter)
}

func TestEnvelope(t *testing.T) {
	e, err := Envelope{Type: "Year", Year: 2019}.Event()
	require.NoError(t, err)
	assert.Equal(t, YearSelected{Year: 2019}, e)

	e, err = Envelope{Type: "product", Product: "Steel"}.Event()
	require.NoError(t, err)
	assert.Equal(t, "product", e.Kind())

	_, err = Envelope{Type: "zoom"}.Event()
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestControllerRequiresSession(t *testing.T) {
	c := NewController(10 * time.Millisecond)
	defer c.Close()

	_, err := c.Dispatch(YearSelected{Year: 2019})
	assert.True(t, errors.Is(err, ErrNoSession))

	_, ok := c.Views()
	assert.False(t, ok)
}

func TestControllerDebouncesRenders(t *testing.T) {
	var mu sync.Mutex
	rendered := make([]filter.State, 0)
	c := NewController(30*time.Millisecond, WithRenderHook(func(v projection.Views) {
		mu.Lock()
		defer mu.Unlock()
		rendered = append(rendered, v.Filter)
	}))
	defer c.Close()

	c.Load(context.Background(), study(t), reader())

	_, err := c.Dispatch(YearSelected{Year: 2018})
	require.NoError(t, err)
	_, err = c.Dispatch(CountrySelected{Country: "US"})
	require.NoError(t, err)
	s, err := c.Dispatch(ProductSelected{Product: "Steel"})
	require.NoError(t, err)

	current, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, s.Filter, current.Filter)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rendered) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, rendered, 2)
	assert.Equal(t, filter.State{Year: 2019, Country: filter.All}, rendered[0])
	assert.Equal(t, filter.State{Year: 2018, Country: "US", Product: "Steel"}, rendered[1])

	views, ok := c.Views()
	require.True(t, ok)
	assert.Equal(t, rendered[1], views.Filter)
}

func TestControllerFlush(t *testing.T) {
	c := NewController(time.Hour)
	defer c.Close()
	c.Load(context.Background(), study(t), reader())

	_, err := c.Dispatch(YearSelected{Year: 2018})
	require.NoError(t, err)

	views, _ := c.Views()
	assert.Equal(t, 2019, views.Filter.Year)
	assert.True(t, c.Pending())

	c.Flush()
	views, _ = c.Views()
	assert.Equal(t, 2018, views.Filter.Year)
	assert.False(t, c.Pending())
}

func TestControllerLoadDropsPendingRender(t *testing.T) {
	c := NewController(time.Hour)
	defer c.Close()
	first := c.Load(context.Background(), study(t), reader())

	_, err := c.Dispatch(CountrySelected{Country: "CN"})
	require.NoError(t, err)

	second := c.Load(context.Background(), study(t), reader())
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, c.Pending())

	views, _ := c.Views()
	assert.Equal(t, filter.All, views.Filter.Country)
}
