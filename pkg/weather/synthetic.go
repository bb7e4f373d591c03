package weather

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/util"
	"golang.org/x/exp/rand"
)

// SyntheticProvider generates plausible weather without a remote api. Values only depend on the
// seed, the location rounded to 2 decimals and the hour, so repeated calls agree.
type SyntheticProvider struct {
	seed uint64
	now  func() time.Time
}

type SyntheticOption func(*SyntheticProvider)

func WithProviderClock(now func() time.Time) SyntheticOption {
	return func(p *SyntheticProvider) {
		p.now = now
	}
}

func NewSyntheticProvider(seed uint64, opts ...SyntheticOption) *SyntheticProvider {
	p := &SyntheticProvider{seed: seed, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SyntheticProvider) rng(lat, lng float64, hour int64) *rand.Rand {
	key := fmt.Sprintf("%d:%.2f:%.2f:%d", p.seed, lat, lng, hour)
	return rand.New(rand.NewSource(xxhash.Sum64String(key)))
}

// warmest around 40°N, never below -30°C
func baseTemperature(lat float64) float64 {
	return util.Clamp(20-math.Abs(lat-40)*0.5, -30, 20)
}

func precipitationFor(c Condition, r *rand.Rand) float64 {
	switch c {
	case Thunderstorm:
		return 10 + r.Float64()*15
	case Rain:
		return 3 + r.Float64()*7
	case Drizzle:
		return 1 + r.Float64()*2
	case Snow:
		return 2 + r.Float64()*5
	default:
		return 0
	}
}

func (p *SyntheticProvider) Current(ctx context.Context, lat, lng float64) (Weather, error) {
	if err := ctx.Err(); err != nil {
		return Weather{}, err
	}
	if !validLocation(lat, lng) {
		return Weather{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidLocation, lat, lng)
	}

	now := p.now().Truncate(time.Second)
	r := p.rng(lat, lng, now.Unix()/3600)
	temp := baseTemperature(lat) + r.Float64()*10 - 5

	return Weather{
		Lat:         lat,
		Lng:         lng,
		Condition:   Clear,
		Description: descriptions[Clear],
		Temperature: util.RoundFloat(temp, 1),
		FeelsLike:   util.RoundFloat(temp-1, 1),
		TempMin:     util.RoundFloat(temp-3, 1),
		TempMax:     util.RoundFloat(temp+3, 1),
		Pressure:    1013,
		Humidity:    65,
		Visibility:  10000,
		WindSpeed:   util.RoundFloat(r.Float64()*5, 1),
		WindDeg:     r.Intn(360),
		Clouds:      r.Intn(20),
		Time:        now,
	}, nil
}

func (p *SyntheticProvider) Forecast(ctx context.Context, lat, lng float64, hours int) (Forecast, error) {
	if err := ctx.Err(); err != nil {
		return Forecast{}, err
	}
	if !validLocation(lat, lng) {
		return Forecast{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidLocation, lat, lng)
	}
	if hours == 0 {
		hours = DefaultForecastHours
	}
	if hours < 0 || hours > MaxForecastHours {
		return Forecast{}, fmt.Errorf("%w: %d", ErrInvalidHours, hours)
	}

	hourStart := p.now().Truncate(time.Hour)
	list := make([]Weather, 0, hours)
	for i := 1; i <= hours; i++ {
		at := hourStart.Add(time.Duration(i) * time.Hour)
		r := p.rng(lat, lng, at.Unix()/3600)

		temp := baseTemperature(lat) + r.Float64()*8 - 4
		cond := conditions[r.Intn(len(conditions))]
		list = append(list, Weather{
			Lat:           lat,
			Lng:           lng,
			Condition:     cond,
			Description:   descriptions[cond],
			Temperature:   util.RoundFloat(temp, 1),
			FeelsLike:     util.RoundFloat(temp-1, 1),
			TempMin:       util.RoundFloat(temp-2, 1),
			TempMax:       util.RoundFloat(temp+2, 1),
			Pressure:      util.RoundFloat(1013+r.Float64()*20-10, 1),
			Humidity:      50 + r.Intn(30),
			Visibility:    float64(5000 + r.Intn(5000)),
			WindSpeed:     util.RoundFloat(r.Float64()*10, 1),
			WindGust:      util.RoundFloat(r.Float64()*15, 1),
			WindDeg:       r.Intn(360),
			Clouds:        r.Intn(100),
			Precipitation: util.RoundFloat(precipitationFor(cond, r), 1),
			PoP:           util.RoundFloat(r.Float64(), 2),
			Time:          at,
		})
	}

	return Forecast{Lat: lat, Lng: lng, Hours: hours, List: list}, nil
}
