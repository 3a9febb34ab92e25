package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tradelens/internal/model"
	"tradelens/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertDataset writes all three tables of a case study in one transaction.
// Tariff rows are event rows and may repeat a country, product and year, so
// a non-empty tariff table replaces the study's stored events wholesale.
// Trade and macro rows are keyed and upserted.
func (s *Store) UpsertDataset(ctx context.Context, studyID string, ds model.Dataset) (err error) {
	if studyID == "" {
		return fmt.Errorf("sqlite: case study id is required")
	}
	if ds.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err = replaceTariffs(ctx, tx, studyID, ds.Tariffs, now); err != nil {
		return err
	}
	if err = upsertTrade(ctx, tx, studyID, ds.Trade, now); err != nil {
		return err
	}
	if err = upsertMacro(ctx, tx, studyID, ds.Macro, now); err != nil {
		return err
	}

	return tx.Commit()
}

func replaceTariffs(ctx context.Context, tx *sql.Tx, studyID string, records []model.TariffRecord, now time.Time) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tariff_events WHERE case_study = ?`, studyID); err != nil {
		return fmt.Errorf("sqlite: clear tariffs: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tariff_events (
			case_study, country, product, year, tariff_rate, lat, lng, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		// Placed coordinates are recomputed on load; only source ones persist.
		var lat, lng any
		if record.HasGeo {
			lat, lng = record.Lat, record.Lng
		}
		if _, err := stmt.ExecContext(ctx, studyID, record.Country, record.Product, record.Year, record.TariffRate, lat, lng, now); err != nil {
			return fmt.Errorf("sqlite: insert tariff %s/%s/%d: %w", record.Country, record.Product, record.Year, err)
		}
	}
	return nil
}

func upsertTrade(ctx context.Context, tx *sql.Tx, studyID string, records []model.TradeRecord, now time.Time) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_volumes (
			case_study, year, product, exporter, importer, value_usd_billion, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_study, year, product, exporter, importer)
		DO UPDATE SET
			value_usd_billion = excluded.value_usd_billion,
			imported_at = excluded.imported_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, studyID, record.Year, record.Product, record.Exporter, record.Importer, record.ValueUSDBillion, now); err != nil {
			return fmt.Errorf("sqlite: upsert trade %d/%s/%s->%s: %w", record.Year, record.Product, record.Exporter, record.Importer, err)
		}
	}
	return nil
}

func upsertMacro(ctx context.Context, tx *sql.Tx, studyID string, records []model.MacroRecord, now time.Time) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO macro_indicators (
			case_study, country, year, gdp_growth_pct, inflation_pct, unemployment_pct, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_study, country, year)
		DO UPDATE SET
			gdp_growth_pct = excluded.gdp_growth_pct,
			inflation_pct = excluded.inflation_pct,
			unemployment_pct = excluded.unemployment_pct,
			imported_at = excluded.imported_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, studyID, record.Country, record.Year,
			nullFloat(record.GDPGrowthPct), nullFloat(record.InflationPct), nullFloat(record.UnemploymentPct), now); err != nil {
			return fmt.Errorf("sqlite: upsert macro %s/%d: %w", record.Country, record.Year, err)
		}
	}
	return nil
}

func (s *Store) ReadTariffs(ctx context.Context, study model.CaseStudy) ([]model.TariffRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT country, product, year, tariff_rate, lat, lng
		FROM tariff_events
		WHERE case_study = ?
		ORDER BY year, country, product, id
	`, study.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.TariffRecord, 0)
	for rows.Next() {
		var record model.TariffRecord
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&record.Country, &record.Product, &record.Year, &record.TariffRate, &lat, &lng); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			record.Lat = lat.Float64
			record.Lng = lng.Float64
			record.HasGeo = true
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) ReadTrade(ctx context.Context, study model.CaseStudy) ([]model.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, product, exporter, importer, value_usd_billion
		FROM trade_volumes
		WHERE case_study = ?
		ORDER BY year, product, exporter, importer
	`, study.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.TradeRecord, 0)
	for rows.Next() {
		var record model.TradeRecord
		if err := rows.Scan(&record.Year, &record.Product, &record.Exporter, &record.Importer, &record.ValueUSDBillion); err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) ReadMacro(ctx context.Context, study model.CaseStudy) ([]model.MacroRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT country, year, gdp_growth_pct, inflation_pct, unemployment_pct
		FROM macro_indicators
		WHERE case_study = ?
		ORDER BY year, country
	`, study.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.MacroRecord, 0)
	for rows.Next() {
		var record model.MacroRecord
		var gdp, inflation, unemployment sql.NullFloat64
		if err := rows.Scan(&record.Country, &record.Year, &gdp, &inflation, &unemployment); err != nil {
			return nil, err
		}
		record.GDPGrowthPct = floatPtr(gdp)
		record.InflationPct = floatPtr(inflation)
		record.UnemploymentPct = floatPtr(unemployment)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) CountRows(ctx context.Context, studyID string) (store.TableCounts, error) {
	var counts store.TableCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tariff_events WHERE case_study = ?),
			(SELECT COUNT(*) FROM trade_volumes WHERE case_study = ?),
			(SELECT COUNT(*) FROM macro_indicators WHERE case_study = ?)
	`, studyID, studyID, studyID).Scan(&counts.Tariffs, &counts.Trade, &counts.Macro)
	if err != nil {
		return store.TableCounts{}, err
	}
	return counts, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS tariff_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			case_study TEXT NOT NULL,
			country TEXT NOT NULL,
			product TEXT NOT NULL,
			year INTEGER NOT NULL,
			tariff_rate REAL NOT NULL,
			lat REAL,
			lng REAL,
			imported_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS tariff_events_study_idx ON tariff_events (case_study, year);`,
		`CREATE TABLE IF NOT EXISTS trade_volumes (
			case_study TEXT NOT NULL,
			year INTEGER NOT NULL,
			product TEXT NOT NULL,
			exporter TEXT NOT NULL,
			importer TEXT NOT NULL,
			value_usd_billion REAL NOT NULL,
			imported_at TEXT NOT NULL,
			PRIMARY KEY (case_study, year, product, exporter, importer)
		);`,
		`CREATE TABLE IF NOT EXISTS macro_indicators (
			case_study TEXT NOT NULL,
			country TEXT NOT NULL,
			year INTEGER NOT NULL,
			gdp_growth_pct REAL,
			inflation_pct REAL,
			unemployment_pct REAL,
			imported_at TEXT NOT NULL,
			PRIMARY KEY (case_study, country, year)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

var _ store.Store = (*Store)(nil)
