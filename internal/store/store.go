package store

import (
	"context"

	"tradelens/internal/model"
)

type Store interface {
	UpsertDataset(ctx context.Context, studyID string, ds model.Dataset) error
	ReadTariffs(ctx context.Context, study model.CaseStudy) ([]model.TariffRecord, error)
	ReadTrade(ctx context.Context, study model.CaseStudy) ([]model.TradeRecord, error)
	ReadMacro(ctx context.Context, study model.CaseStudy) ([]model.MacroRecord, error)
	CountRows(ctx context.Context, studyID string) (TableCounts, error)
	Close() error
}

type TableCounts struct {
	Tariffs int
	Trade   int
	Macro   int
}

func (c TableCounts) Total() int {
	return c.Tariffs + c.Trade + c.Macro
}

type NopStore struct{}

func (s *NopStore) UpsertDataset(ctx context.Context, studyID string, ds model.Dataset) error {
	_ = ctx
	_ = studyID
	_ = ds
	return nil
}

func (s *NopStore) ReadTariffs(ctx context.Context, study model.CaseStudy) ([]model.TariffRecord, error) {
	return nil, nil
}

func (s *NopStore) ReadTrade(ctx context.Context, study model.CaseStudy) ([]model.TradeRecord, error) {
	return nil, nil
}

func (s *NopStore) ReadMacro(ctx context.Context, study model.CaseStudy) ([]model.MacroRecord, error) {
	return nil, nil
}

func (s *NopStore) CountRows(ctx context.Context, studyID string) (TableCounts, error) {
	_ = ctx
	_ = studyID
	return TableCounts{}, nil
}

func (s *NopStore) Close() error {
	return nil
}
