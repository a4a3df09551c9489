package ess

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/types"
)

// DocumentFetcher returns a parsed status page.
type DocumentFetcher interface {
	Fetch(ctx context.Context) (*goquery.Document, error)
}

// Assembler produces complete Readings from the status page.
type Assembler struct {
	fetcher DocumentFetcher
	now     func() time.Time
}

// NewAssembler returns an Assembler stamping readings with the wall clock.
func NewAssembler(f DocumentFetcher) *Assembler {
	return &Assembler{
		fetcher: f,
		now:     time.Now,
	}
}

// Assemble fetches the status page once and extracts a Reading from it.
// Any failure aborts the whole reading.
func (a *Assembler) Assemble(ctx context.Context) (types.Reading, error) {
	doc, err := a.fetcher.Fetch(ctx)
	if err != nil {
		return types.Reading{}, err
	}

	logrus.Debug("parse stats")

	battery, inverter, err := Extract(doc)
	if err != nil {
		return types.Reading{}, err
	}

	return types.Reading{
		Time:     a.now(),
		Battery:  battery,
		Inverter: inverter,
	}, nil
}

// Extract runs both table passes over doc.
func Extract(doc *goquery.Document) (types.BatteryGrid, types.PowerTriple, error) {
	battery, err := ParseEMS(doc)
	if err != nil {
		return types.BatteryGrid{}, types.PowerTriple{}, err
	}

	inverter, err := ParsePCS(doc)
	if err != nil {
		return types.BatteryGrid{}, types.PowerTriple{}, err
	}

	return battery, inverter, nil
}

// ParseEMS locates the EMS table and parses the battery/grid values.
func ParseEMS(doc *goquery.Document) (types.BatteryGrid, error) {
	table, err := LocateTable(doc, MarkerEMS)
	if err != nil {
		return types.BatteryGrid{}, err
	}
	return ParseBatteryGrid(cellTexts(table))
}

// ParsePCS locates the PCS table and parses the PV-1, PV-2 and INV rows.
func ParsePCS(doc *goquery.Document) (types.PowerTriple, error) {
	table, err := LocateTable(doc, MarkerPCS)
	if err != nil {
		return types.PowerTriple{}, err
	}

	var (
		stats    types.PowerTriple
		parseErr error
	)
	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := cellTexts(tr)
		if len(cells) == 0 {
			return true
		}

		var dst *types.PowerReading
		switch strings.TrimSpace(cells[0]) {
		case RowPV1:
			dst = &stats.PV1
		case RowPV2:
			dst = &stats.PV2
		case RowINV:
			dst = &stats.Inv
		default:
			return true
		}

		*dst, parseErr = ParsePowerRow(cells)
		return parseErr == nil
	})
	if parseErr != nil {
		return types.PowerTriple{}, parseErr
	}

	return stats, nil
}
