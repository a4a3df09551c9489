package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/events"
	"github.com/ess-reader/ess-reader/pkg/sink"
	"github.com/ess-reader/ess-reader/pkg/types"
	"github.com/ess-reader/ess-reader/pkg/utils/ptr"
	"github.com/ess-reader/ess-reader/pkg/version"
)

type testServer struct {
	*Server
	latest   *sink.Latest
	metrics  *sink.Prometheus
	hub      *events.Hub
	recorder *CycleRecorder
}

func newTestServer() *testServer {
	hub := events.NewHub()
	ts := &testServer{
		latest:   sink.NewLatest(hub),
		metrics:  sink.NewPrometheus(),
		hub:      hub,
		recorder: NewCycleRecorder(10),
	}
	conf := config.NewFileFromConfig(&config.RawFileConfig{
		IP:         ptr.To("192.168.1.20"),
		DBHost:     ptr.To("influx"),
		DB:         ptr.To("ess"),
		DBPassword: ptr.To("hunter2"),
	}, "")
	ts.Server = NewServer(conf, ts.latest, ts.metrics, hub, ts.recorder, 15*time.Second)
	return ts
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

var serverReading = types.Reading{
	Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	Battery: types.BatteryGrid{Filled: 88, Withdrawal: 120.5, Load: 300},
	Inverter: types.PowerTriple{
		PV1: types.PowerReading{Voltage: 350.2, Current: 4.1, Power: 1435.8},
	},
}

func TestServerReading(t *testing.T) {
	ts := newTestServer()
	h := ts.Handler()

	rec := get(t, h, "/reading")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, ts.latest.Send(context.Background(), serverReading))
	rec = get(t, h, "/reading")
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.Reading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, serverReading.Battery, got.Battery)
	assert.Equal(t, serverReading.Inverter, got.Inverter)
	assert.True(t, serverReading.Time.Equal(got.Time))
}

func TestServerHealth(t *testing.T) {
	ts := newTestServer()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }
	h := ts.Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var health Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, HealthStale, health.Status)
	assert.Nil(t, health.LastCycle)
	assert.NotContains(t, rec.Body.String(), "lastCycle")
	assert.Zero(t, health.Streak)

	// An old cycle, a gap, then three cycles on the 15s cadence.
	ts.recorder.Add(now.Add(-100 * time.Second))
	ts.recorder.Add(now.Add(-40 * time.Second))
	ts.recorder.Add(now.Add(-25 * time.Second))
	ts.recorder.Add(now.Add(-10 * time.Second))
	rec = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	health = Health{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, HealthOK, health.Status)
	assert.Equal(t, 4, health.Cycles)
	assert.Equal(t, 3, health.Streak)
	require.NotNil(t, health.LastCycle)
	assert.True(t, now.Add(-10*time.Second).Equal(*health.LastCycle))

	now = now.Add(time.Minute)
	rec = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerConfigRedacted(t *testing.T) {
	h := newTestServer().Handler()

	rec := get(t, h, "/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ip": "192.168.1.20"`)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestServerVersion(t *testing.T) {
	rec := get(t, newTestServer().Handler(), "/version")
	require.Equal(t, http.StatusOK, rec.Code)

	var v VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, version.Version, v.Version)
}

func TestServerMetrics(t *testing.T) {
	ts := newTestServer()
	require.NoError(t, ts.metrics.Send(context.Background(), serverReading))

	rec := get(t, ts.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ess_battery{field="filled"} 88`)
}

func TestServerEvents(t *testing.T) {
	ts := newTestServer()
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()
	defer ts.CloseStreams()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return ts.hub.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, ts.latest.Send(context.Background(), serverReading))

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var event, data string
	timeout := time.After(5 * time.Second)
	for data == "" {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed early")
			switch {
			case strings.HasPrefix(l, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(l, "event:"))
			case strings.HasPrefix(l, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(l, "data:"))
			}
		case <-timeout:
			t.Fatal("no event received")
		}
	}

	assert.Equal(t, events.Reading, event)
	var got types.Reading
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, 88.0, got.Battery.Filled)
}
