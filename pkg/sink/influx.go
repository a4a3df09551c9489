package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/types"
)

const (
	measurementBattery  = "battery"
	measurementInverter = "inverter"
)

// Influx writes readings to an InfluxDB 1.x database.
type Influx struct {
	c    client.Client
	addr string
	db   string
}

// NewInflux creates an InfluxDB sink. host may be a bare host name, in which
// case the default InfluxDB HTTP port is used.
func NewInflux(host, db, user, password string) (*Influx, error) {
	addr := influxAddr(host)
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     addr,
		Username: user,
		Password: password,
	})
	if err != nil {
		return nil, errdefs.Config(fmt.Errorf("invalid influxdb address %q: %w", addr, err))
	}
	return &Influx{c: c, addr: addr, db: db}, nil
}

func influxAddr(host string) string {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	rest := host[strings.Index(host, "://")+3:]
	if !strings.Contains(rest, ":") {
		host += ":8086"
	}
	return host
}

// Points converts r into the battery point and one inverter point per
// channel.
func Points(r types.Reading) ([]*client.Point, error) {
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}

	b := r.Battery
	battery, err := client.NewPoint(measurementBattery, nil, map[string]interface{}{
		"filled":      b.Filled,
		"battery":     b.Battery,
		"pv":          b.PV,
		"withdrawal":  b.Withdrawal,
		"feedin":      b.Feedin,
		"inverter":    b.Inverter,
		"load":        b.Load,
		"temperature": b.Temperature,
	}, t)
	if err != nil {
		return nil, err
	}

	points := []*client.Point{battery}
	for _, s := range r.Inverter.Sources() {
		p, err := client.NewPoint(measurementInverter, map[string]string{"source": s.Source}, map[string]interface{}{
			"voltage": s.Voltage,
			"current": s.Current,
			"power":   s.Power,
		}, t)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (s *Influx) Send(_ context.Context, r types.Reading) error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  s.db,
		Precision: "s",
	})
	if err != nil {
		return errdefs.Config(err)
	}

	points, err := Points(r)
	if err != nil {
		return errdefs.Transport(errdefs.StageSink, fmt.Errorf("failed to build points: %w", err))
	}
	bp.AddPoints(points)

	if err := s.c.Write(bp); err != nil {
		return errdefs.Transport(errdefs.StageSink, fmt.Errorf("failed to write to influxdb %s: %w", s.addr, err))
	}

	logrus.WithFields(logrus.Fields{
		"db":     s.db,
		"points": len(points),
	}).Debug("reading written to influxdb")
	return nil
}

func (s *Influx) Close() error {
	return s.c.Close()
}
