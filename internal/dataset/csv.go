package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/apex/log"

	"tradelens/internal/model"
)

var ErrMissingColumn = errors.New("dataset: missing required column")

type rowFunc func(record []string, header map[string]int) error

func decodeRows(data []byte, required []string, fn rowFunc) error {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("dataset: read header: %w", err)
	}
	header := normalizeHeader(first)
	for _, column := range required {
		if _, ok := header[column]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("dataset: line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}
		if err := fn(record, header); err != nil {
			log.WithError(err).WithField("line", line).Debug("skipping row")
		}
	}
}

func DecodeTariffs(data []byte) ([]model.TariffRecord, error) {
	records := make([]model.TariffRecord, 0)
	err := decodeRows(data, []string{"country", "product", "year", "tariff_rate"}, func(row []string, header map[string]int) error {
		year, err := parseYear(getCell(row, header, "year"))
		if err != nil {
			return err
		}
		rate, err := parseNonNegative(getCell(row, header, "tariff_rate"))
		if err != nil {
			return fmt.Errorf("tariff_rate: %w", err)
		}
		record := model.TariffRecord{
			Country:    strings.ToUpper(getCell(row, header, "country")),
			Product:    getCell(row, header, "product"),
			Year:       year,
			TariffRate: rate,
		}
		if record.Country == "" || record.Product == "" {
			return errors.New("country and product are required")
		}
		lat, latOK := parseOptional(getCell(row, header, "lat"))
		lng, lngOK := parseOptional(getCell(row, header, "lng"))
		if latOK && lngOK && lat != 0 && lng != 0 {
			record.Lat = lat
			record.Lng = lng
			record.HasGeo = true
		}
		records = append(records, record)
		return nil
	})
	return records, err
}

func DecodeTrade(data []byte) ([]model.TradeRecord, error) {
	records := make([]model.TradeRecord, 0)
	err := decodeRows(data, []string{"year", "product", "exporter", "importer", "value_usd_billion"}, func(row []string, header map[string]int) error {
		year, err := parseYear(getCell(row, header, "year"))
		if err != nil {
			return err
		}
		value, err := parseNonNegative(getCell(row, header, "value_usd_billion"))
		if err != nil {
			return fmt.Errorf("value_usd_billion: %w", err)
		}
		record := model.TradeRecord{
			Year:            year,
			Product:         getCell(row, header, "product"),
			Exporter:        strings.ToUpper(getCell(row, header, "exporter")),
			Importer:        strings.ToUpper(getCell(row, header, "importer")),
			ValueUSDBillion: value,
		}
		if record.Product == "" || record.Exporter == "" || record.Importer == "" {
			return errors.New("product, exporter and importer are required")
		}
		records = append(records, record)
		return nil
	})
	return records, err
}

func DecodeMacro(data []byte) ([]model.MacroRecord, error) {
	records := make([]model.MacroRecord, 0)
	err := decodeRows(data, []string{"country", "year"}, func(row []string, header map[string]int) error {
		year, err := parseYear(getCell(row, header, "year"))
		if err != nil {
			return err
		}
		record := model.MacroRecord{
			Country: strings.ToUpper(getCell(row, header, "country")),
			Year:    year,
		}
		if record.Country == "" {
			return errors.New("country is required")
		}
		record.GDPGrowthPct = optionalValue(getCell(row, header, "gdp_growth_pct"))
		record.InflationPct = optionalValue(getCell(row, header, "inflation_pct"))
		record.UnemploymentPct = optionalValue(getCell(row, header, "unemployment_pct"))
		records = append(records, record)
		return nil
	})
	return records, err
}

func normalizeHeader(header []string) map[string]int {
	result := make(map[string]int, len(header))
	for i, value := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, "\ufeff")))
		if key == "" {
			continue
		}
		result[key] = i
	}
	return result
}

func getCell(record []string, header map[string]int, key string) string {
	index, ok := header[key]
	if !ok || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseYear accepts "2019" as well as "2019.0", which spreadsheet exports
// tend to produce.
func parseYear(value string) (int, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("year %q: %w", value, err)
	}
	if parsed != math.Trunc(parsed) || parsed < 0 {
		return 0, fmt.Errorf("year %q is not a whole number", value)
	}
	return int(parsed), nil
}

func parseNonNegative(value string) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if parsed < 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("value %q must be a finite number >= 0", value)
	}
	return parsed, nil
}

func parseOptional(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}

func optionalValue(value string) *float64 {
	parsed, ok := parseOptional(value)
	if !ok {
		return nil
	}
	return &parsed
}
