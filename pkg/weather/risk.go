package weather

import "fmt"

type Level string

const (
	LevelHigh      Level = "high"
	LevelMedium    Level = "medium"
	LevelLowMedium Level = "low_medium"
	LevelLow       Level = "low"
)

type RiskType string

const (
	RiskWind          RiskType = "wind"
	RiskVisibility    RiskType = "visibility"
	RiskPrecipitation RiskType = "precipitation"
	RiskTemperature   RiskType = "temperature"
)

const (
	WarningSevere   = "severe_weather"
	WarningModerate = "moderate_weather"
)

type Thresholds struct {
	WindSpeed      float64 `json:"windSpeed"`     // m/s
	Visibility     float64 `json:"visibility"`    // meters
	Precipitation  float64 `json:"precipitation"` // mm/h
	TemperatureMin float64 `json:"temperatureMin"`
	TemperatureMax float64 `json:"temperatureMax"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		WindSpeed:      15,
		Visibility:     1000,
		Precipitation:  5,
		TemperatureMin: -10,
		TemperatureMax: 45,
	}
}

// ThresholdsPatch carries a partial update, nil fields keep their value.
type ThresholdsPatch struct {
	WindSpeed      *float64 `json:"windSpeed,omitempty"`
	Visibility     *float64 `json:"visibility,omitempty"`
	Precipitation  *float64 `json:"precipitation,omitempty"`
	TemperatureMin *float64 `json:"temperatureMin,omitempty"`
	TemperatureMax *float64 `json:"temperatureMax,omitempty"`
}

func (t Thresholds) merge(p ThresholdsPatch) Thresholds {
	if p.WindSpeed != nil {
		t.WindSpeed = *p.WindSpeed
	}
	if p.Visibility != nil {
		t.Visibility = *p.Visibility
	}
	if p.Precipitation != nil {
		t.Precipitation = *p.Precipitation
	}
	if p.TemperatureMin != nil {
		t.TemperatureMin = *p.TemperatureMin
	}
	if p.TemperatureMax != nil {
		t.TemperatureMax = *p.TemperatureMax
	}
	return t
}

func (t Thresholds) Validate() error {
	if t.WindSpeed <= 0 || t.Visibility <= 0 || t.Precipitation < 0 {
		return fmt.Errorf("%w: wind, visibility must be positive and precipitation not negative", ErrInvalidThresholds)
	}
	if t.TemperatureMin >= t.TemperatureMax {
		return fmt.Errorf("%w: temperature min %v >= max %v", ErrInvalidThresholds, t.TemperatureMin, t.TemperatureMax)
	}
	return nil
}

type Risk struct {
	Type        RiskType `json:"type"`
	Level       Level    `json:"level"`
	Value       float64  `json:"value"`
	Threshold   float64  `json:"threshold"`
	Description string   `json:"description"`
}

type Warning struct {
	Type        string    `json:"type"`
	Level       Level     `json:"level"`
	Condition   Condition `json:"condition"`
	Description string    `json:"description"`
}

type Assessment struct {
	OverallRisk     Level     `json:"overallRisk"`
	Risks           []Risk    `json:"risks"`
	Warnings        []Warning `json:"warnings"`
	Recommendations []string  `json:"recommendations"`
}

// Assess rates the flight risk of w against t.
func Assess(w Weather, t Thresholds) Assessment {
	risks := make([]Risk, 0, 4)
	warnings := make([]Warning, 0, 1)

	if w.WindSpeed > t.WindSpeed {
		level := LevelMedium
		if w.WindSpeed > t.WindSpeed*1.5 {
			level = LevelHigh
		}
		risks = append(risks, Risk{
			Type: RiskWind, Level: level, Value: w.WindSpeed, Threshold: t.WindSpeed,
			Description: fmt.Sprintf("wind speed too high: %v m/s", w.WindSpeed),
		})
	}

	if w.Visibility < t.Visibility {
		level := LevelMedium
		if w.Visibility < t.Visibility/2 {
			level = LevelHigh
		}
		risks = append(risks, Risk{
			Type: RiskVisibility, Level: level, Value: w.Visibility, Threshold: t.Visibility,
			Description: fmt.Sprintf("visibility too low: %v m", w.Visibility),
		})
	}

	if w.Precipitation > t.Precipitation {
		level := LevelMedium
		if w.Precipitation > t.Precipitation*2 {
			level = LevelHigh
		}
		risks = append(risks, Risk{
			Type: RiskPrecipitation, Level: level, Value: w.Precipitation, Threshold: t.Precipitation,
			Description: fmt.Sprintf("precipitation too heavy: %v mm/h", w.Precipitation),
		})
	}

	switch {
	case w.Temperature < t.TemperatureMin:
		risks = append(risks, Risk{
			Type: RiskTemperature, Level: LevelHigh, Value: w.Temperature, Threshold: t.TemperatureMin,
			Description: fmt.Sprintf("temperature too low: %v°C", w.Temperature),
		})
	case w.Temperature > t.TemperatureMax:
		risks = append(risks, Risk{
			Type: RiskTemperature, Level: LevelHigh, Value: w.Temperature, Threshold: t.TemperatureMax,
			Description: fmt.Sprintf("temperature too high: %v°C", w.Temperature),
		})
	}

	switch w.Condition {
	case Thunderstorm, Snow:
		warnings = append(warnings, Warning{
			Type: WarningSevere, Level: LevelHigh, Condition: w.Condition,
			Description: "severe weather: " + w.Description,
		})
	case Rain, Drizzle:
		warnings = append(warnings, Warning{
			Type: WarningModerate, Level: LevelMedium, Condition: w.Condition,
			Description: "precipitation: " + w.Description,
		})
	}

	return Assessment{
		OverallRisk:     overall(risks, warnings),
		Risks:           risks,
		Warnings:        warnings,
		Recommendations: recommendations(risks, warnings),
	}
}

func overall(risks []Risk, warnings []Warning) Level {
	high, medium := 0, 0
	for _, r := range risks {
		switch r.Level {
		case LevelHigh:
			high++
		case LevelMedium:
			medium++
		}
	}
	for _, w := range warnings {
		if w.Level == LevelHigh {
			high++
		}
	}

	switch {
	case high > 0:
		return LevelHigh
	case medium > 1:
		return LevelMedium
	case medium == 1:
		return LevelLowMedium
	default:
		return LevelLow
	}
}

func recommendations(risks []Risk, warnings []Warning) []string {
	recs := make([]string, 0, len(risks)+len(warnings))
	for _, r := range risks {
		high := r.Level == LevelHigh
		switch r.Type {
		case RiskWind:
			recs = append(recs, "lower the flight altitude to reduce wind load")
			if high {
				recs = append(recs, "strong wind, postpone the flight task")
			}
		case RiskVisibility:
			recs = append(recs, "low visibility, switch on all navigation lights")
			if high {
				recs = append(recs, "visibility critically low, cancel the flight task")
			}
		case RiskPrecipitation:
			recs = append(recs, "precipitation expected, take waterproofing measures")
			if high {
				recs = append(recs, "heavy precipitation, cancel the flight task")
			}
		case RiskTemperature:
			recs = append(recs, "watch the effect of temperature on battery performance")
			if high {
				recs = append(recs, "extreme temperature, check equipment tolerance")
			}
		}
	}

	for _, w := range warnings {
		if w.Level == LevelHigh {
			recs = append(recs, "severe weather detected, postponing the flight is strongly advised")
		} else {
			recs = append(recs, "unfavourable weather detected, fly with caution")
		}
	}

	if len(risks) == 0 && len(warnings) == 0 {
		recs = append(recs, "weather conditions are good for flying")
	}
	return recs
}
