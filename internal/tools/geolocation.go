package tools

import (
	"context"
	"strings"

	"homewise/internal/common/logger"
	"homewise/internal/schemas"
)

const (
	GeolocationToolName        = "getGeolocation"
	GeolocationToolDescription = "Converts a physical address into geographic coordinates (latitude and longitude)."
)

type GeoCoordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder resolves an address to a coordinate. Implementations never fail; an
// unresolvable address yields a default coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) GeoCoordinate
}

type knownPlace struct {
	match string
	coord GeoCoordinate
}

// DefaultCoordinate is New York City.
var DefaultCoordinate = GeoCoordinate{Lat: 40.7128, Lng: -74.0060}

var knownPlaces = []knownPlace{
	{match: "mountain view", coord: GeoCoordinate{Lat: 37.422, Lng: -122.084}},
}

// StaticGeocoder is a fixed lookup table standing in for a real geocoding service.
type StaticGeocoder struct {
	places   []knownPlace
	fallback GeoCoordinate
	logger   logger.Logger
}

func NewStaticGeocoder(log logger.Logger) *StaticGeocoder {
	return &StaticGeocoder{
		places:   knownPlaces,
		fallback: DefaultCoordinate,
		logger:   log.With(map[string]interface{}{"tool": GeolocationToolName}),
	}
}

// Geocode matches case-insensitive substrings in table order; first match wins.
func (g *StaticGeocoder) Geocode(ctx context.Context, address string) GeoCoordinate {
	needle := strings.ToLower(address)
	for _, p := range g.places {
		if strings.Contains(needle, p.match) {
			g.logger.Debug("Geocoded address", map[string]interface{}{"address": address, "match": p.match})
			return p.coord
		}
	}
	g.logger.Debug("Address not recognized, using default coordinate", map[string]interface{}{"address": address})
	return g.fallback
}

// NewGeolocationTool exposes geocoder to the model as getGeolocation.
func NewGeolocationTool(geocoder Geocoder) Tool {
	return Tool{
		Name:         GeolocationToolName,
		Description:  GeolocationToolDescription,
		InputSchema:  schemas.GeolocationInput,
		OutputSchema: schemas.GeolocationOutput,
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			address, _ := args["address"].(string)
			c := geocoder.Geocode(ctx, address)
			return map[string]interface{}{"lat": c.Lat, "lng": c.Lng}, nil
		},
	}
}

// NewDefaultRegistry returns a registry holding every built-in tool.
func NewDefaultRegistry(geocoder Geocoder) *Registry {
	r := NewRegistry()
	_ = r.Register(NewGeolocationTool(geocoder))
	return r
}
