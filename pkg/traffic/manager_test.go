package traffic

import (
	"testing"
	"time"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testAirspaces() []Airspace {
	return []Airspace{
		{
			ID:            "A1",
			Name:          "Dongcheng",
			Boundaries:    geo.NewBoundingBox(39.90, 39.95, 116.40, 116.45),
			AltitudeRange: AltitudeRange{Min: 0, Max: 120},
			Capacity:      3,
		},
		{
			ID:         "R1",
			Name:       "Airport",
			Boundaries: geo.NewBoundingBox(40.00, 40.10, 116.00, 116.10),
			Capacity:   10,
			Restricted: true,
		},
	}
}

func route(points ...[2]float64) datastructure.Path {
	p := datastructure.Path{}
	for i, pt := range points {
		p.Nodes = append(p.Nodes, datastructure.NewRoadNode(string(rune('A'+i)), "", pt[0], pt[1], true))
		if i > 0 {
			prev := points[i-1]
			d := geo.CalculateHaversineDistance(prev[0], prev[1], pt[0], pt[1])
			p.Segments = append(p.Segments, datastructure.Segment{From: p.Nodes[i-1].ID, To: p.Nodes[i].ID, Distance: d})
			p.TotalDistance += d
		}
	}
	return p
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	m := NewManager(cfg, nil, WithClock(clock.now))
	require.NoError(t, m.InitializeAirspaces(testAirspaces()))
	return m, clock
}

func TestInitializeAirspacesInvalid(t *testing.T) {
	m := NewManager(Config{}, nil)

	err := m.InitializeAirspaces([]Airspace{{ID: "X", Boundaries: geo.NewBoundingBox(40, 39, 116, 117)}})
	assert.ErrorIs(t, err, ErrInvalidAirspace)

	err = m.InitializeAirspaces([]Airspace{{ID: "X"}, {ID: "X"}})
	assert.ErrorIs(t, err, ErrInvalidAirspace)

	assert.Empty(t, m.AirspaceStatistics())
}

func TestRegisterFlight(t *testing.T) {
	m, clock := newTestManager(t, Config{})

	_, err := m.RegisterFlight(FlightPlan{ID: "f0"})
	assert.ErrorIs(t, err, ErrIncompleteFlight)

	r := route([2]float64{39.9042, 116.4074}, [2]float64{39.9142, 116.4174})
	st, err := m.RegisterFlight(FlightPlan{ID: "f1", Route: r, AverageSpeed: 10, Altitude: 60})
	require.NoError(t, err)
	assert.Equal(t, StatusRegistered, st.Status)
	assert.Equal(t, "A1", st.AirspaceID)
	assert.Zero(t, st.Progress)
	assert.Equal(t, 60.0, st.Position.Altitude)

	wantETA := clock.t.Add(time.Duration(r.TotalDistance * 1000 / 10 * float64(time.Second)))
	assert.WithinDuration(t, wantETA, st.EstimatedArrival, time.Millisecond)

	_, err = m.RegisterFlight(FlightPlan{ID: "f1", Route: r})
	assert.ErrorIs(t, err, ErrFlightExists)

	restricted := route([2]float64{40.05, 116.05}, [2]float64{40.06, 116.06})
	_, err = m.RegisterFlight(FlightPlan{ID: "f2", Route: restricted})
	assert.ErrorIs(t, err, ErrAirspaceRestricted)

	// outside every airspace is allowed
	outside := route([2]float64{31.2, 121.4}, [2]float64{31.3, 121.5})
	st, err = m.RegisterFlight(FlightPlan{ID: "f3", Route: outside})
	require.NoError(t, err)
	assert.Empty(t, st.AirspaceID)
}

func TestRegisterFlightCapacity(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	r := route([2]float64{39.92, 116.42}, [2]float64{39.93, 116.43})

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.RegisterFlight(FlightPlan{ID: id, Route: r})
		require.NoError(t, err)
	}
	_, err := m.RegisterFlight(FlightPlan{ID: "d", Route: r})
	assert.ErrorIs(t, err, ErrAirspaceFull)

	stats := m.AirspaceStatistics()
	require.Len(t, stats, 2)
	assert.Equal(t, "A1", stats[0].ID)
	assert.Equal(t, 3, stats[0].CurrentFlights)
	assert.Equal(t, 100.0, stats[0].Usage)

	assert.True(t, m.RemoveCompletedFlight("a"))
	assert.False(t, m.RemoveCompletedFlight("a"))
	assert.Equal(t, 2, m.AirspaceStatistics()[0].CurrentFlights)

	_, err = m.RegisterFlight(FlightPlan{ID: "d", Route: r})
	assert.NoError(t, err)

	// re-initializing recounts registered flights
	require.NoError(t, m.InitializeAirspaces(testAirspaces()))
	assert.Equal(t, 3, m.AirspaceStatistics()[0].CurrentFlights)
}

func TestUpdateFlightPosition(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	r := route([2]float64{39.9042, 116.4074}, [2]float64{39.9142, 116.4174}, [2]float64{39.9242, 116.4274})
	_, err := m.RegisterFlight(FlightPlan{ID: "f1", Route: r})
	require.NoError(t, err)

	_, err = m.UpdateFlightPosition("ghost", Position{})
	assert.ErrorIs(t, err, ErrFlightNotRegistered)

	st, err := m.UpdateFlightPosition("f1", Position{Lat: 39.9100, Lng: 116.4130, Altitude: 50})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, st.Status)
	assert.Equal(t, 0, st.CurrentSegment)

	st, err = m.UpdateFlightPosition("f1", Position{Lat: 39.9142, Lng: 116.4174, Altitude: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentSegment)
	assert.Equal(t, 50.0, st.Progress)

	st, err = m.UpdateFlightPosition("f1", Position{Lat: 39.9242, Lng: 116.4274, Altitude: 50})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 100.0, st.Progress)

	got, err := m.FlightStatus("f1")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	_, err = m.FlightStatus("ghost")
	assert.ErrorIs(t, err, ErrFlightNotRegistered)
	assert.Len(t, m.Flights(), 1)
}

func TestDetectConflictsCurrentPosition(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	start := [2]float64{39.92, 116.42}
	r := route(start, [2]float64{39.93, 116.43})

	for _, id := range []string{"f1", "f2", "f3"} {
		_, err := m.RegisterFlight(FlightPlan{ID: id, Route: r, AverageSpeed: 0.0001})
		require.NoError(t, err)
	}

	lat, lng := geo.GetDestinationPoint(start[0], start[1], 90, 0.010) // 10 m east
	_, err := m.UpdateFlightPosition("f2", Position{Lat: lat, Lng: lng})
	require.NoError(t, err)
	lat, lng = geo.GetDestinationPoint(start[0], start[1], 270, 0.500) // far west
	_, err = m.UpdateFlightPosition("f3", Position{Lat: lat, Lng: lng})
	require.NoError(t, err)

	conflicts := m.DetectConflicts()
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "f1", c.Flight1)
	assert.Equal(t, "f2", c.Flight2)
	assert.Equal(t, "A1", c.AirspaceID)
	assert.False(t, c.Predicted)
	assert.InDelta(t, 10, c.Distance, 0.5)
	assert.Equal(t, SeverityHigh, c.Severity)
}

func TestDetectConflictsPredicted(t *testing.T) {
	m, _ := newTestManager(t, Config{PredictionWindow: 10 * time.Second})

	west := [2]float64{39.92, 116.42}
	eLat, eLng := geo.GetDestinationPoint(west[0], west[1], 90, 0.200)
	east := [2]float64{eLat, eLng}

	_, err := m.RegisterFlight(FlightPlan{ID: "east-bound", Route: route(west, east), AverageSpeed: 10})
	require.NoError(t, err)
	_, err = m.RegisterFlight(FlightPlan{ID: "west-bound", Route: route(east, west), AverageSpeed: 10})
	require.NoError(t, err)

	conflicts := m.DetectConflicts()
	require.Len(t, conflicts, 1)
	assert.True(t, conflicts[0].Predicted)
	assert.Less(t, conflicts[0].Distance, 5.0)
	assert.Equal(t, SeverityHigh, conflicts[0].Severity)

	// different altitudes keep them separated
	_, err = m.UpdateFlightPosition("west-bound", Position{Lat: east[0], Lng: east[1], Altitude: 100})
	require.NoError(t, err)
	assert.Empty(t, m.DetectConflicts())
}

func TestDetectConflictsDifferentAirspace(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	r := route([2]float64{39.92, 116.42}, [2]float64{39.93, 116.43})
	outside := route([2]float64{39.95005, 116.42}, [2]float64{39.96, 116.43})

	_, err := m.RegisterFlight(FlightPlan{ID: "in", Route: r, AverageSpeed: 0.0001})
	require.NoError(t, err)
	_, err = m.RegisterFlight(FlightPlan{ID: "out", Route: outside, AverageSpeed: 0.0001})
	require.NoError(t, err)

	// 10 m apart across the northern border
	_, err = m.UpdateFlightPosition("in", Position{Lat: 39.94996, Lng: 116.42})
	require.NoError(t, err)
	assert.Empty(t, m.DetectConflicts())
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, severityFor(10, 50))
	assert.Equal(t, SeverityMedium, severityFor(20, 50))
	assert.Equal(t, SeverityLow, severityFor(40, 50))
}

func TestResolveConflicts(t *testing.T) {
	m, clock := newTestManager(t, Config{})
	r := route([2]float64{39.92, 116.42}, [2]float64{39.93, 116.43})
	for _, id := range []string{"f1", "f2"} {
		_, err := m.RegisterFlight(FlightPlan{ID: id, Route: r, Altitude: 50})
		require.NoError(t, err)
	}

	resolutions := m.ResolveConflicts([]Conflict{
		{Flight1: "f1", Flight2: "f2", Severity: SeverityHigh},
		{Flight1: "f2", Flight2: "f1", Severity: SeverityMedium},
		{Flight1: "f1", Flight2: "ghost", Severity: SeverityLow},
	})
	require.Len(t, resolutions, 3)

	assert.Equal(t, ResolutionImmediateSeparation, resolutions[0].Type)
	assert.Equal(t, ActionHoldPosition, resolutions[0].Actions[0].Action)
	assert.Equal(t, 10, resolutions[0].Actions[0].Duration)
	assert.Equal(t, ActionAdjustAltitude, resolutions[0].Actions[1].Action)
	assert.True(t, resolutions[0].Actions[1].Applied)

	assert.Equal(t, ResolutionRouteAdjustment, resolutions[1].Type)
	require.Len(t, resolutions[1].Actions, 1)
	assert.Equal(t, 20.0, resolutions[1].Actions[0].Percentage)

	assert.Equal(t, ResolutionMonitoring, resolutions[2].Type)
	assert.True(t, resolutions[2].Actions[0].Applied)
	assert.False(t, resolutions[2].Actions[1].Applied)

	st, err := m.FlightStatus("f1")
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, st.Status)

	flights := m.Flights()
	assert.Equal(t, 60.0, flights[1].Position.Altitude)
	assert.InDelta(t, 0.8, flights[1].SpeedFactor, 1e-9)

	clock.advance(11 * time.Second)
	st, err = m.FlightStatus("f1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, st.Status)
}

func TestPredictHolding(t *testing.T) {
	now := time.Now()
	f := &Flight{
		Route:        route([2]float64{39.92, 116.42}, [2]float64{39.93, 116.43}),
		AverageSpeed: 10,
		SpeedFactor:  1,
		Status:       StatusHolding,
		HoldUntil:    now.Add(time.Minute),
		Position:     Position{Lat: 39.92, Lng: 116.42},
	}
	assert.Equal(t, f.Position, f.predict(30*time.Second, now))

	f.Status = StatusActive
	p := f.predict(30*time.Second, now)
	assert.InDelta(t, 300, geo.HaversineMeters(39.92, 116.42, p.Lat, p.Lng), 5)
}
