package weather

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidLocation   = errors.New("invalid location")
	ErrInvalidHours      = errors.New("forecast hours out of range")
	ErrIncompleteRoute   = errors.New("route has no nodes")
	ErrInvalidThresholds = errors.New("invalid risk thresholds")
)

const (
	DefaultForecastHours = 24
	MaxForecastHours     = 120
)

type Condition string

const (
	Thunderstorm Condition = "Thunderstorm"
	Drizzle      Condition = "Drizzle"
	Rain         Condition = "Rain"
	Snow         Condition = "Snow"
	Clear        Condition = "Clear"
	Clouds       Condition = "Clouds"
)

var conditions = []Condition{Thunderstorm, Drizzle, Rain, Snow, Clear, Clouds}

var descriptions = map[Condition]string{
	Thunderstorm: "thunderstorm",
	Drizzle:      "light drizzle",
	Rain:         "rain",
	Snow:         "snow",
	Clear:        "clear sky",
	Clouds:       "cloudy",
}

// Weather is one observation or forecast hour. Units: °C, hPa, meters, m/s, mm/h.
type Weather struct {
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Condition     Condition `json:"condition"`
	Description   string    `json:"description"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	TempMin       float64   `json:"tempMin"`
	TempMax       float64   `json:"tempMax"`
	Pressure      float64   `json:"pressure"`
	Humidity      int       `json:"humidity"`
	Visibility    float64   `json:"visibility"`
	WindSpeed     float64   `json:"windSpeed"`
	WindGust      float64   `json:"windGust,omitempty"`
	WindDeg       int       `json:"windDeg"`
	Clouds        int       `json:"clouds"`
	Precipitation float64   `json:"precipitation"`
	PoP           float64   `json:"pop,omitempty"`
	Time          time.Time `json:"time"`
}

type Forecast struct {
	Lat   float64   `json:"lat"`
	Lng   float64   `json:"lng"`
	Hours int       `json:"hours"`
	List  []Weather `json:"list"`
}

// Provider is a source of weather data.
type Provider interface {
	Current(ctx context.Context, lat, lng float64) (Weather, error)
	Forecast(ctx context.Context, lat, lng float64, hours int) (Forecast, error)
}

func validLocation(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
