// Package dataset turns the three source tables of a case study into an
// in-memory model.Dataset. Loading degrades per table: a table that cannot
// be read becomes empty and the rest of the dataset is still returned.
package dataset

import (
	"context"
	"sort"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
	"golang.org/x/sync/errgroup"

	"tradelens/internal/casestudy"
	"tradelens/internal/metrics"
	"tradelens/internal/model"
	"tradelens/internal/providers"
)

type Reader interface {
	ReadTariffs(ctx context.Context, study model.CaseStudy) ([]model.TariffRecord, error)
	ReadTrade(ctx context.Context, study model.CaseStudy) ([]model.TradeRecord, error)
	ReadMacro(ctx context.Context, study model.CaseStudy) ([]model.MacroRecord, error)
}

// CSVReader decodes tables fetched from a provider.
type CSVReader struct {
	Provider providers.Provider
}

func NewCSVReader(provider providers.Provider) *CSVReader {
	return &CSVReader{Provider: provider}
}

func (r *CSVReader) ReadTariffs(ctx context.Context, study model.CaseStudy) ([]model.TariffRecord, error) {
	data, err := r.Provider.FetchTable(ctx, study, model.TableTariffs)
	if err != nil {
		return nil, err
	}
	return DecodeTariffs(data)
}

func (r *CSVReader) ReadTrade(ctx context.Context, study model.CaseStudy) ([]model.TradeRecord, error) {
	data, err := r.Provider.FetchTable(ctx, study, model.TableTrade)
	if err != nil {
		return nil, err
	}
	return DecodeTrade(data)
}

func (r *CSVReader) ReadMacro(ctx context.Context, study model.CaseStudy) ([]model.MacroRecord, error) {
	data, err := r.Provider.FetchTable(ctx, study, model.TableMacro)
	if err != nil {
		return nil, err
	}
	return DecodeMacro(data)
}

// Report lists the tables that degraded to empty during a load.
type Report struct {
	Failed []model.Table
}

func (r Report) Complete() bool {
	return len(r.Failed) == 0
}

// Load reads the three tables concurrently and waits for all of them to
// settle. It never fails; see the package doc.
func Load(ctx context.Context, study model.CaseStudy, reader Reader) model.Dataset {
	ds, _ := LoadWithReport(ctx, study, reader)
	return ds
}

// LoadWithReport is Load that also says which tables failed, for callers
// that must not keep a degraded dataset around.
func LoadWithReport(ctx context.Context, study model.CaseStudy, reader Reader) (model.Dataset, Report) {
	ds := model.Dataset{
		Study:   study,
		Tariffs: []model.TariffRecord{},
		Trade:   []model.TradeRecord{},
		Macro:   []model.MacroRecord{},
	}
	logger := log.WithField("case_study", study.ID)

	failures := make(chan model.Table, 3)
	var g errgroup.Group
	g.Go(func() error {
		records, err := reader.ReadTariffs(ctx, study)
		if err != nil {
			reportFailure(logger, model.TableTariffs, err)
			failures <- model.TableTariffs
			return nil
		}
		ds.Tariffs = AssignCoordinates(study, records)
		return nil
	})
	g.Go(func() error {
		records, err := reader.ReadTrade(ctx, study)
		if err != nil {
			reportFailure(logger, model.TableTrade, err)
			failures <- model.TableTrade
			return nil
		}
		ds.Trade = records
		return nil
	})
	g.Go(func() error {
		records, err := reader.ReadMacro(ctx, study)
		if err != nil {
			reportFailure(logger, model.TableMacro, err)
			failures <- model.TableMacro
			return nil
		}
		ds.Macro = records
		return nil
	})
	_ = g.Wait()
	close(failures)
	var report Report
	for table := range failures {
		report.Failed = append(report.Failed, table)
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i] < report.Failed[j] })
	failed := len(report.Failed)

	switch {
	case failed == 0:
		metrics.DatasetLoadsTotal.WithLabelValues("complete").Inc()
	case failed == 3:
		metrics.DatasetLoadsTotal.WithLabelValues("empty").Inc()
	default:
		metrics.DatasetLoadsTotal.WithLabelValues("partial").Inc()
	}
	logger.WithFields(log.Fields{
		"tariffs": len(ds.Tariffs),
		"trade":   len(ds.Trade),
		"macro":   len(ds.Macro),
		"failed":  failed,
	}).Info("case study loaded")
	return ds, report
}

func reportFailure(logger *log.Entry, table model.Table, err error) {
	metrics.TableLoadFailuresTotal.WithLabelValues(string(table)).Inc()
	logger.WithError(err).WithField("table", string(table)).Warn("table unavailable, using empty table")
}

// AssignCoordinates returns a copy of records in which every record without
// usable coordinates is placed at its country centroid (or the study's map
// center) plus the product offset. The placement is deterministic. Placed
// records keep HasGeo false so stores do not persist them as source data.
func AssignCoordinates(study model.CaseStudy, records []model.TariffRecord) []model.TariffRecord {
	out := make([]model.TariffRecord, len(records))
	for i, record := range records {
		if record.HasGeo && s2.LatLngFromDegrees(record.Lat, record.Lng).IsValid() {
			out[i] = record
			continue
		}
		point := Position(study, record.Country, record.Product)
		record.Lat = point.Lat
		record.Lng = point.Lng
		record.HasGeo = false
		out[i] = record
	}
	return out
}

func Position(study model.CaseStudy, country, product string) model.LatLng {
	base, ok := casestudy.Centroid(country)
	if !ok {
		base = study.MapCenter
	}
	offset, _ := casestudy.ProductOffset(product)
	return base.Add(offset)
}
