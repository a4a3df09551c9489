package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	supa "github.com/nedpals/supabase-go"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/types"
)

const (
	supabaseBatteryTable  = "ess_battery"
	supabaseInverterTable = "ess_inverter"
	supabaseUploadTimeout = 10 * time.Second
)

type supabaseBatteryRow struct {
	ID   uuid.UUID `json:"id"`
	Time time.Time `json:"time"`
	types.BatteryGrid
}

type supabaseInverterRow struct {
	ID     uuid.UUID `json:"id"`
	Time   time.Time `json:"time"`
	Source string    `json:"source"`
	types.PowerReading
}

// Supabase inserts readings into two PostgREST tables: one battery row and
// one inverter row per channel.
type Supabase struct {
	url    string
	client *supa.Client
}

func NewSupabase(url, key, schema string) (*Supabase, error) {
	c := supa.CreateClient(url, key)

	// The client has no schema option, so select it through the postgrest
	// profile headers.
	c.DB.AddHeader("Accept-Profile", schema)
	c.DB.AddHeader("Content-Profile", schema)

	return &Supabase{url: url, client: c}, nil
}

func supabaseRows(r types.Reading) (supabaseBatteryRow, []supabaseInverterRow) {
	battery := supabaseBatteryRow{
		ID:          uuid.New(),
		Time:        r.Time,
		BatteryGrid: r.Battery,
	}
	var inverter []supabaseInverterRow
	for _, s := range r.Inverter.Sources() {
		inverter = append(inverter, supabaseInverterRow{
			ID:           uuid.New(),
			Time:         r.Time,
			Source:       s.Source,
			PowerReading: s.PowerReading,
		})
	}
	return battery, inverter
}

// Send inserts the battery row, then the inverter rows. The two inserts are
// separate requests; a failed inverter insert leaves the battery row in place.
func (s *Supabase) Send(ctx context.Context, r types.Reading) error {
	battery, inverter := supabaseRows(r)

	if err := s.insert(ctx, supabaseBatteryTable, []supabaseBatteryRow{battery}); err != nil {
		return err
	}
	if err := s.insert(ctx, supabaseInverterTable, inverter); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"url":  s.url,
		"rows": 1 + len(inverter),
	}).Debug("reading inserted into supabase")
	return nil
}

// insert runs one insert request. The client library takes no context, so
// the call is raced against ctx and a fixed upload timeout. A request that
// loses the race keeps running and may still commit.
func (s *Supabase) insert(ctx context.Context, table string, rows any) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.client.DB.From(table).Insert(rows).Execute(nil)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-time.After(supabaseUploadTimeout):
		err = fmt.Errorf("timed out after %s", supabaseUploadTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return errdefs.Transport(errdefs.StageSink, fmt.Errorf("failed to insert into %s: %w", table, err))
	}
	return nil
}
