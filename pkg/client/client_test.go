package client

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/daemon"
	"github.com/ess-reader/ess-reader/pkg/events"
	"github.com/ess-reader/ess-reader/pkg/sink"
	"github.com/ess-reader/ess-reader/pkg/types"
	"github.com/ess-reader/ess-reader/pkg/utils/ptr"
	"github.com/ess-reader/ess-reader/pkg/version"
)

type fixture struct {
	latest   *sink.Latest
	recorder *daemon.CycleRecorder
	hub      *events.Hub
	client   *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := events.NewHub()
	f := &fixture{
		latest:   sink.NewLatest(hub),
		recorder: daemon.NewCycleRecorder(10),
		hub:      hub,
	}
	conf := config.NewFileFromConfig(&config.RawFileConfig{
		IP:          ptr.To("10.0.0.7"),
		Backend:     ptr.To("supabase"),
		SupabaseKey: ptr.To("service-role"),
	}, "")
	srv := daemon.NewServer(conf, f.latest, sink.NewPrometheus(), hub, f.recorder, 30*time.Second)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.CloseStreams)

	// Both host:port and URL forms are accepted.
	f.client = NewClient(ts.URL + "/")
	return f
}

func TestGetReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.GetReading(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	want := types.Reading{
		Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Battery: types.BatteryGrid{Filled: 64, Feedin: 40},
	}
	require.NoError(t, f.latest.Send(ctx, want))

	got, err := f.client.GetReading(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Battery, got.Battery)
	assert.True(t, want.Time.Equal(got.Time))
}

func TestGetHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.client.GetHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, daemon.HealthStale, h.Status)

	f.recorder.AddNow()
	h, err = f.client.GetHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, daemon.HealthOK, h.Status)
	assert.Equal(t, 1, h.Cycles)
}

func TestGetVersionAndConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.client.GetVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, version.Version, v.Version)

	rc, err := f.client.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", *rc.IP)
	assert.Equal(t, "supabase", *rc.Backend)
	assert.NotEqual(t, "service-role", *rc.SupabaseKey)
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.client.SubscribeEvents(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, f.latest.Send(ctx, types.Reading{Battery: types.BatteryGrid{Filled: 51}}))

	select {
	case ev := <-ch:
		assert.Equal(t, events.Reading, ev.Name)
		r, err := events.DecodeAs[types.Reading](ev)
		require.NoError(t, err)
		assert.Equal(t, 51.0, r.Battery.Filled)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestDaemonNotRunning(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = NewClient(addr).GetReading(context.Background())
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}
