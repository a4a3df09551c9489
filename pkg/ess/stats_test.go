package ess

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/types"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/f0.html")
	require.NoError(t, err)
	return b
}

func docFromString(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

// newTestFetcher points a Fetcher at a test server.
func newTestFetcher(t *testing.T, ts *httptest.Server) *Fetcher {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return NewFetcher(host, p)
}

var fixtureReading = types.Reading{
	Battery: types.BatteryGrid{
		Filled:      88.0,
		Battery:     -20.0,
		PV:          50.2,
		Withdrawal:  120.5,
		Feedin:      0,
		Inverter:    275.0,
		Load:        300.0,
		Temperature: 35.1,
	},
	Inverter: types.PowerTriple{
		PV1: types.PowerReading{Voltage: 350.2, Current: 4.1, Power: 1435.8},
		PV2: types.PowerReading{Voltage: 340.0, Current: 2.0, Power: 680.0},
		Inv: types.PowerReading{Voltage: 230.1, Current: 1.2, Power: 275.0},
	},
}

func TestAssemble(t *testing.T) {
	fixture := loadFixture(t)
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/f0", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "ess-reader/"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(fixture)
	}))
	defer ts.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewAssembler(newTestFetcher(t, ts))
	a.now = func() time.Time { return now }

	got, err := a.Assemble(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "exactly one request per reading")

	want := fixtureReading
	want.Time = now
	assert.Equal(t, want, got)
}

func TestAssembleDeterministic(t *testing.T) {
	fixture := loadFixture(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fixture)
	}))
	defer ts.Close()

	a := NewAssembler(newTestFetcher(t, ts))
	first, err := a.Assemble(context.Background())
	require.NoError(t, err)
	second, err := a.Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Battery, second.Battery)
	assert.Equal(t, first.Inverter, second.Inverter)
}

func TestAssembleMissingMarker(t *testing.T) {
	page := strings.Replace(string(loadFixture(t)), "EMS Control MODE", "Something Else", 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	got, err := NewAssembler(newTestFetcher(t, ts)).Assemble(context.Background())
	require.Error(t, err)
	assert.True(t, errdefs.IsExtraction(err), "got %v", err)
	assert.ErrorIs(t, err, errdefs.ErrTableNotFound)
	assert.Equal(t, types.Reading{}, got)
}

func TestAssembleMalformedNumber(t *testing.T) {
	page := strings.Replace(string(loadFixture(t)), "1435.8", "N/A", 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	got, err := NewAssembler(newTestFetcher(t, ts)).Assemble(context.Background())
	require.Error(t, err)
	assert.True(t, errdefs.IsNumeric(err), "got %v", err)
	assert.Equal(t, types.Reading{}, got)
}

func TestFetchErrors(t *testing.T) {
	t.Run("non-success status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		_, err := newTestFetcher(t, ts).Fetch(context.Background())
		require.Error(t, err)
		assert.True(t, errdefs.IsTransport(err))
		assert.Equal(t, errdefs.StageFetch, errdefs.StageOf(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		f := newTestFetcher(t, ts)
		ts.Close()

		_, err := f.Fetch(context.Background())
		require.Error(t, err)
		assert.True(t, errdefs.IsTransport(err))
	})
}

func TestNewFetcherURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.20:21710/f0", NewFetcher("192.168.1.20", 0).URL())
	assert.Equal(t, "http://10.0.0.2:8080/f0", NewFetcher("10.0.0.2", 8080).URL())
}

func TestLocateTable(t *testing.T) {
	t.Run("first match wins", func(t *testing.T) {
		doc := docFromString(t, `<table id="a"><tr><td>X</td></tr></table>
<table id="b"><tr><td> X </td></tr></table>
<table id="c"><tr><td>X</td></tr></table>`)
		table, err := LocateTable(doc, "X")
		require.NoError(t, err)
		id, _ := table.Attr("id")
		assert.Equal(t, "a", id)
	})

	t.Run("nested table owns its rows", func(t *testing.T) {
		doc := docFromString(t, `<table id="outer"><tr><td>
<table id="inner"><tr><td>X</td></tr></table>
</td></tr></table>`)
		table, err := LocateTable(doc, "X")
		require.NoError(t, err)
		id, _ := table.Attr("id")
		assert.Equal(t, "inner", id)
	})

	t.Run("marker must be a whole text node", func(t *testing.T) {
		doc := docFromString(t, `<table><tr><td>X and more</td></tr></table>`)
		_, err := LocateTable(doc, "X")
		assert.ErrorIs(t, err, errdefs.ErrTableNotFound)
	})

	t.Run("marker outside a row", func(t *testing.T) {
		doc := docFromString(t, `<p>EMS Control MODE</p><table><tr><td>GRID_P</td></tr></table>`)
		_, err := LocateTable(doc, MarkerEMS)
		assert.True(t, errdefs.IsExtraction(err))
	})
}

func TestParsePCSSkipsUnknownRows(t *testing.T) {
	doc := docFromString(t, `<table>
<tr><th>PCS Sensing Data</th></tr>
<tr></tr>
<tr><td>BAT</td><td>V[V]:</td><td>oops</td></tr>
<tr><td>INV</td><td>P[W]:</td><td>5</td></tr>
</table>`)
	got, err := ParsePCS(doc)
	require.NoError(t, err)
	assert.Equal(t, types.PowerTriple{Inv: types.PowerReading{Power: 5}}, got)
}
