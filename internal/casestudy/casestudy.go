// Package casestudy holds the static configuration of the trade-dispute
// scenarios the dashboard can load: map view, country colors, narrative
// insights, and the geo tables used to place tariff markers.
package casestudy

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"tradelens/internal/model"
)

const NeutralColor = "#777"

var ErrUnknownStudy = errors.New("casestudy: unknown case study")

var builtin = []model.CaseStudy{
	{
		ID:          "us-china",
		Name:        "U.S.-China Trade War",
		MapCenter:   model.LatLng{Lat: 35, Lng: 105},
		MapZoom:     3,
		DataPath:    "us-china",
		Countries:   []string{"US", "CN"},
		DefaultYear: 2020,
		CountryColors: map[string]string{
			"US": "#3498db",
			"CN": "#e74c3c",
		},
		Insights: []string{
			"Section 301 tariffs raised average U.S. duties on Chinese goods from about 3% to over 19% between 2018 and 2020.",
			"Chinese retaliation concentrated on U.S. agriculture, cutting soybean exports sharply in 2018.",
			"The Phase One agreement in 2020 paused escalation without rolling back most tariffs.",
		},
	},
	{
		ID:          "brexit",
		Name:        "Brexit Impact",
		MapCenter:   model.LatLng{Lat: 54, Lng: -2},
		MapZoom:     5,
		DataPath:    "brexit",
		Countries:   []string{"UK", "EU"},
		DefaultYear: 2021,
		CountryColors: map[string]string{
			"UK": "#9b59b6",
			"EU": "#2ecc71",
		},
		Insights: []string{
			"The Trade and Cooperation Agreement kept tariffs at zero but introduced rules-of-origin checks.",
			"UK goods exports to the EU dipped in 2021 as customs formalities took effect.",
		},
	},
	{
		ID:          "us-eu",
		Name:        "U.S.-EU Steel Dispute",
		MapCenter:   model.LatLng{Lat: 50, Lng: 10},
		MapZoom:     4,
		DataPath:    "us-eu",
		Countries:   []string{"US", "EU"},
		DefaultYear: 2020,
		CountryColors: map[string]string{
			"US": "#3498db",
			"EU": "#2ecc71",
		},
		Insights: []string{
			"Section 232 duties of 25% on steel and 10% on aluminum applied to EU producers from June 2018.",
			"The EU answered with rebalancing duties on bourbon, motorcycles and jeans.",
			"A tariff-rate quota replaced the duties in 2022.",
		},
	},
}

var centroids = map[string]model.LatLng{
	"US": {Lat: 39.8, Lng: -98.6},
	"CN": {Lat: 35.9, Lng: 104.2},
	"EU": {Lat: 50.1, Lng: 9.2},
	"UK": {Lat: 54.0, Lng: -2.5},
	"DE": {Lat: 51.2, Lng: 10.4},
	"FR": {Lat: 46.6, Lng: 2.2},
	"JP": {Lat: 36.2, Lng: 138.3},
	"CA": {Lat: 56.1, Lng: -106.3},
	"MX": {Lat: 23.6, Lng: -102.6},
}

var productOffsets = map[string]model.LatLng{
	"steel":              {Lat: 1.5, Lng: 1.5},
	"aluminum":           {Lat: -1.5, Lng: 1.5},
	"soybeans":           {Lat: 1.5, Lng: -1.5},
	"electronics":        {Lat: -1.5, Lng: -1.5},
	"autos":              {Lat: 0, Lng: 2.5},
	"agriculture":        {Lat: 0, Lng: -2.5},
	"machinery":          {Lat: 2.5, Lng: 0},
	"financial services": {Lat: -2.5, Lng: 0},
}

// Centroid returns the configured center of a country, if any.
func Centroid(country string) (model.LatLng, bool) {
	point, ok := centroids[strings.ToUpper(strings.TrimSpace(country))]
	return point, ok
}

// ProductOffset returns the marker displacement for a product so that
// several products of one country do not stack on the same point.
func ProductOffset(product string) (model.LatLng, bool) {
	offset, ok := productOffsets[strings.ToLower(strings.TrimSpace(product))]
	return offset, ok
}

// Color returns the display color for a country in a study, falling back to
// NeutralColor for countries the study does not configure.
func Color(study model.CaseStudy, country string) string {
	if color, ok := study.CountryColors[strings.ToUpper(strings.TrimSpace(country))]; ok && color != "" {
		return color
	}
	return NeutralColor
}

type Registry struct {
	studies map[string]model.CaseStudy
}

func NewRegistry() *Registry {
	r := &Registry{studies: make(map[string]model.CaseStudy, len(builtin))}
	for _, study := range builtin {
		r.studies[study.ID] = study
	}
	return r
}

func (r *Registry) Lookup(id string) (model.CaseStudy, error) {
	study, ok := r.studies[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return model.CaseStudy{}, fmt.Errorf("%w: %q", ErrUnknownStudy, id)
	}
	return study, nil
}

func (r *Registry) List() []model.CaseStudy {
	studies := make([]model.CaseStudy, 0, len(r.studies))
	for _, study := range r.studies {
		studies = append(studies, study)
	}
	sort.Slice(studies, func(i, j int) bool {
		return studies[i].ID < studies[j].ID
	})
	return studies
}

type fileConfig struct {
	CaseStudies []model.CaseStudy `yaml:"case_studies"`
}

// LoadFile merges case studies from a YAML file into the registry. Entries
// with a known id replace the built-in definition.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("casestudy: parse %s: %w", path, err)
	}
	for i, study := range cfg.CaseStudies {
		id := strings.ToLower(strings.TrimSpace(study.ID))
		if id == "" {
			return fmt.Errorf("casestudy: entry %d in %s has no id", i, path)
		}
		study.ID = id
		if study.DataPath == "" {
			study.DataPath = id
		}
		colors := make(map[string]string, len(study.CountryColors))
		for country, color := range study.CountryColors {
			colors[strings.ToUpper(country)] = color
		}
		study.CountryColors = colors
		for j, country := range study.Countries {
			study.Countries[j] = strings.ToUpper(strings.TrimSpace(country))
		}
		r.studies[id] = study
	}
	return nil
}
