package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/kv"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/network"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest/service"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/traffic"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/weather"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := kv.OpenBadger("", true)
	require.NoError(t, err)
	store := kv.NewRouteStore(db, nil)
	t.Cleanup(func() { _ = store.Close() })

	provider := network.NewProvider(nil, network.SourceSample, nil)
	_, err = provider.Reload(context.Background())
	require.NoError(t, err)

	wx, err := weather.NewService(weather.NewSyntheticProvider(3), 30*time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(wx.Close)

	reg := prometheus.NewRegistry()
	m := rest.NewMetrics(reg)

	planning, err := service.NewPlanningService(provider, store, wx, service.PlanningConfig{}, nil,
		service.WithPlanObserver(m))
	require.NoError(t, err)
	t.Cleanup(planning.Close)

	trafficSvc := service.NewTrafficService(traffic.NewManager(traffic.Config{}, nil), planning, nil)

	r := rest.NewRouter(rest.Services{Planning: planning, Traffic: trafficSvc, Weather: wx}, reg, m,
		rest.RouterConfig{}, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestPlanEndpoint(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/api/v1/routes/plan", `{"start":"A","goal":"C"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["found"])
	assert.NotEmpty(t, body["polyline"])
	path := body["path"].(map[string]any)
	assert.InDelta(t, 3.2, path["totalDistance"], 1e-9)
	assert.Len(t, path["nodes"], 2)

	code, body = do(t, srv, http.MethodPost, "/api/v1/routes/plan", `{"start":"A","goal":"E"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["found"])

	code, body = do(t, srv, http.MethodPost, "/api/v1/routes/plan", `{"start":"A","goal":"D"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_param_input", body["code"])

	code, body = do(t, srv, http.MethodPost, "/api/v1/routes/plan", `{"start":"A"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, body["validation"])

	code, _ = do(t, srv, http.MethodPost, "/api/v1/routes/plan", `{"start":"A","goal":"C","heuristic":"manhattan"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBatchEndpoint(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/api/v1/routes/batch", `{"requests":[
		{"id":"r1","start":"A","goal":"C"},
		{"id":"r2","start":"A","goal":"D"},
		{"id":"r3","start":"B","goal":"E"}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["succeeded"])
	assert.EqualValues(t, 1, body["failed"])

	results := body["results"].([]any)
	assert.Equal(t, "r1", results[0].(map[string]any)["id"])
	assert.Equal(t, false, results[1].(map[string]any)["success"])

	code, _ = do(t, srv, http.MethodPost, "/api/v1/routes/batch", `{"requests":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouteCRUDEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/api/v1/routes",
		`{"name":"patrol","creatorId":"u1","flightTaskId":"t1","start":"A","goal":"C"}`)
	require.Equal(t, http.StatusCreated, code)
	id := body["id"].(string)
	require.NotEmpty(t, id)

	code, body = do(t, srv, http.MethodGet, "/api/v1/routes/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "patrol", body["name"])

	code, body = do(t, srv, http.MethodGet, "/api/v1/routes?creatorId=u1", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, body = do(t, srv, http.MethodPatch, "/api/v1/routes/"+id, `{"name":"patrol-2","goal":"B"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "patrol-2", body["name"])
	assert.Equal(t, "B", body["goal_node_id"])

	code, _ = do(t, srv, http.MethodPatch, "/api/v1/routes/"+id, `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, srv, http.MethodGet, "/api/v1/routes/"+id+"/geojson", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FeatureCollection", body["type"])

	code, body = do(t, srv, http.MethodGet, "/api/v1/routes/"+id+"/weather", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["nodes"], 2)

	code, _ = do(t, srv, http.MethodDelete, "/api/v1/routes/"+id, "")
	assert.Equal(t, http.StatusNoContent, code)

	code, body = do(t, srv, http.MethodGet, "/api/v1/routes/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["code"])
}

func TestNetworkEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodGet, "/api/v1/network", "")
	require.Equal(t, http.StatusOK, code)
	nw := body["network"].(map[string]any)
	assert.EqualValues(t, 1, nw["version"])
	assert.EqualValues(t, 4, nw["graphNodes"])

	code, body = do(t, srv, http.MethodPost, "/api/v1/network/reload", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["network"].(map[string]any)["version"])

	code, body = do(t, srv, http.MethodGet, "/api/v1/network/nearest?lat=39.9045&lng=116.4070", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A", body["node"].(map[string]any)["id"])
	assert.EqualValues(t, 2, body["networkVersion"])

	code, _ = do(t, srv, http.MethodGet, "/api/v1/network/nearest?lat=0&lng=0", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, srv, http.MethodGet, "/api/v1/network/nearest?lat=95&lng=0", "")
	assert.Equal(t, http.StatusBadRequest, code)

	for _, q := range []string{"lat=NaN&lng=116.4", "lat=39.9&lng=NaN", "lat=Inf&lng=116.4", "lat=39.9&lng=-Inf"} {
		code, body = do(t, srv, http.MethodGet, "/api/v1/network/nearest?"+q, "")
		assert.Equal(t, http.StatusBadRequest, code, q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestTrafficEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPut, "/api/v1/airspaces", `{"airspaces":[{
		"id":"A1","name":"city","capacity":5,"maxAltitude":120,
		"boundaries":{"minLat":39.90,"maxLat":39.95,"minLng":116.40,"maxLng":116.45}}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["airspaces"], 1)

	code, body = do(t, srv, http.MethodPost, "/api/v1/flights", `{"id":"f1","start":"A","goal":"C","altitude":50}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "registered", body["status"])
	assert.Equal(t, "A1", body["airspaceId"])

	code, _ = do(t, srv, http.MethodPost, "/api/v1/flights", `{"id":"f1","start":"A","goal":"C"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, srv, http.MethodPost, "/api/v1/flights", `{"id":"f9"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// f2 moves to 10 m east of f1
	code, _ = do(t, srv, http.MethodPost, "/api/v1/flights", `{"id":"f2","start":"A","goal":"B","altitude":50}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = do(t, srv, http.MethodPut, "/api/v1/flights/f2/position", `{"lat":39.9042,"lng":116.40752,"altitude":50}`)
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, srv, http.MethodGet, "/api/v1/traffic/conflicts", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, body = do(t, srv, http.MethodPost, "/api/v1/traffic/conflicts/resolve", "")
	require.Equal(t, http.StatusOK, code)
	res := body["resolutions"].([]any)
	require.Len(t, res, 1)
	assert.Equal(t, "immediate_separation", res[0].(map[string]any)["type"])

	code, body = do(t, srv, http.MethodGet, "/api/v1/flights/f1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "holding", body["status"])

	code, body = do(t, srv, http.MethodGet, "/api/v1/airspaces/statistics", "")
	require.Equal(t, http.StatusOK, code)
	stats := body["airspaces"].([]any)
	assert.EqualValues(t, 2, stats[0].(map[string]any)["currentFlights"])

	code, _ = do(t, srv, http.MethodDelete, "/api/v1/flights/f1", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, srv, http.MethodGet, "/api/v1/flights/f1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWeatherEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodGet, "/api/v1/weather?lat=39.9&lng=116.4", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Clear", body["condition"])

	code, _ = do(t, srv, http.MethodGet, "/api/v1/weather?lat=abc&lng=116.4", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, srv, http.MethodGet, "/api/v1/weather?lat=95&lng=116.4", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, srv, http.MethodGet, "/api/v1/weather/risk?lat=NaN&lng=116.4", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, srv, http.MethodGet, "/api/v1/weather/forecast?lat=39.9&lng=116.4&hours=6", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["list"], 6)

	code, body = do(t, srv, http.MethodGet, "/api/v1/weather/risk?lat=39.9&lng=116.4", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["riskAssessment"].(map[string]any)["overallRisk"])

	code, body = do(t, srv, http.MethodPost, "/api/v1/weather/area",
		`{"minLat":39.8,"maxLat":40.0,"minLng":116.2,"maxLng":116.6}`)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 39.9, body["center"].(map[string]any)["lat"], 1e-9)

	code, body = do(t, srv, http.MethodPut, "/api/v1/weather/thresholds", `{"windSpeed":8}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 8, body["windSpeed"])
	assert.EqualValues(t, 1000, body["visibility"])

	code, _ = do(t, srv, http.MethodPut, "/api/v1/weather/thresholds", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// every successful lookup above rounds to the same location
	code, body = do(t, srv, http.MethodGet, "/api/v1/weather/cache", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["size"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodPost, "/api/v1/routes/plan", `{"start":"A","goal":"C"}`)
	require.Equal(t, http.StatusOK, code)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, `lats_route_plans_total{outcome="found"} 1`)
	assert.Contains(t, out, `lats_route_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, out, `route="/api/v1/routes/plan"`)
}
