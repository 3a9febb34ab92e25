package projection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"

	"tradelens/internal/casestudy"
	"tradelens/internal/model"
)

const baseMarkerRadius = 8.0

type YearRate struct {
	Year int     `json:"year"`
	Rate float64 `json:"rate"`
}

type Marker struct {
	Country     string     `json:"country"`
	Product     string     `json:"product"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Color       string     `json:"color"`
	Radius      float64    `json:"radius"`
	AverageRate float64    `json:"average_rate"`
	Rates       []YearRate `json:"rates"`
	PopupText   string     `json:"popup_text"`
}

type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

type MapView struct {
	Year    int          `json:"year"`
	Center  model.LatLng `json:"center"`
	Zoom    int          `json:"zoom"`
	Markers []Marker     `json:"markers"`
	Bounds  *Bounds      `json:"bounds,omitempty"`
}

type groupKey struct {
	country string
	product string
}

// Map emits one marker per (country, product) that has a tariff in year.
// The marker is sized by the group's average rate for that year and its
// popup lists the group's rates for every year.
func Map(ds model.Dataset, year int) MapView {
	view := MapView{
		Year:    year,
		Center:  ds.Study.MapCenter,
		Zoom:    ds.Study.MapZoom,
		Markers: []Marker{},
	}

	history := make(map[groupKey]map[int][]float64)
	for _, record := range ds.Tariffs {
		key := groupKey{country: strings.ToUpper(record.Country), product: record.Product}
		if history[key] == nil {
			history[key] = make(map[int][]float64)
		}
		history[key][record.Year] = append(history[key][record.Year], record.TariffRate)
	}

	seen := make(map[groupKey]bool)
	for _, record := range ds.Tariffs {
		if record.Year != year {
			continue
		}
		key := groupKey{country: strings.ToUpper(record.Country), product: record.Product}
		if seen[key] {
			continue
		}
		seen[key] = true

		avg := mean(history[key][year])
		rates := yearRates(history[key])
		view.Markers = append(view.Markers, Marker{
			Country:     key.country,
			Product:     key.product,
			Lat:         record.Lat,
			Lng:         record.Lng,
			Color:       casestudy.Color(ds.Study, key.country),
			Radius:      baseMarkerRadius + avg/5,
			AverageRate: avg,
			Rates:       rates,
			PopupText:   popupText(key, rates),
		})
	}

	sort.Slice(view.Markers, func(i, j int) bool {
		if view.Markers[i].Country != view.Markers[j].Country {
			return view.Markers[i].Country < view.Markers[j].Country
		}
		return view.Markers[i].Product < view.Markers[j].Product
	})
	view.Bounds = markerBounds(view.Markers)
	return view
}

func yearRates(byYear map[int][]float64) []YearRate {
	rates := make([]YearRate, 0, len(byYear))
	for year, values := range byYear {
		rates = append(rates, YearRate{Year: year, Rate: mean(values)})
	}
	sort.Slice(rates, func(i, j int) bool {
		return rates[i].Year < rates[j].Year
	})
	return rates
}

func popupText(key groupKey, rates []YearRate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Tariffs (%s)", key.product, key.country)
	for _, rate := range rates {
		fmt.Fprintf(&b, "\n%d: %s", rate.Year, formatPercent(rate.Rate))
	}
	return b.String()
}

func markerBounds(markers []Marker) *Bounds {
	if len(markers) == 0 {
		return nil
	}
	rect := s2.EmptyRect()
	for _, marker := range markers {
		rect = rect.AddPoint(s2.LatLngFromDegrees(marker.Lat, marker.Lng))
	}
	return &Bounds{
		South: rect.Lo().Lat.Degrees(),
		West:  rect.Lo().Lng.Degrees(),
		North: rect.Hi().Lat.Degrees(),
		East:  rect.Hi().Lng.Degrees(),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// GeoJSON renders the markers of a map view as a FeatureCollection of points.
func GeoJSON(view MapView) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, marker := range view.Markers {
		feature := geojson.NewPointFeature([]float64{marker.Lng, marker.Lat})
		feature.SetProperty("country", marker.Country)
		feature.SetProperty("product", marker.Product)
		feature.SetProperty("year", view.Year)
		feature.SetProperty("color", marker.Color)
		feature.SetProperty("radius", round1(marker.Radius))
		feature.SetProperty("average_rate", round1(marker.AverageRate))
		feature.SetProperty("popup", marker.PopupText)
		fc.AddFeature(feature)
	}
	return fc.MarshalJSON()
}
