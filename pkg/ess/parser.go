package ess

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/types"
)

// Labels of the EMS (battery/grid) table.
const (
	LabelGridPower     = "GRID_P"
	LabelLoadPower     = "LOAD_P"
	LabelPVPower       = "PV_P"
	LabelInverterPower = "INV_P"
	LabelStateOfCharge = "BT_SOC"
	LabelBatteryPower  = "BT_P"
	LabelTemperature   = "Temp"
)

// Labels of a PCS power row.
const (
	LabelVoltage = "V[V]:"
	LabelCurrent = "I[A]:"
	LabelPower   = "P[W]:"
)

// First-cell names of the PCS power rows.
const (
	RowPV1 = "PV-1"
	RowPV2 = "PV-2"
	RowINV = "INV"
)

type emsState int

const (
	emsNone emsState = iota
	emsGrid
	emsLoad
	emsPV
	emsInverter
	emsSOC
	emsBattery
	emsTemp
)

var emsLabels = map[string]emsState{
	LabelGridPower:     emsGrid,
	LabelLoadPower:     emsLoad,
	LabelPVPower:       emsPV,
	LabelInverterPower: emsInverter,
	LabelStateOfCharge: emsSOC,
	LabelBatteryPower:  emsBattery,
	LabelTemperature:   emsTemp,
}

var emsWrites = map[emsState]func(*types.BatteryGrid, float64){
	emsGrid:     setGrid,
	emsLoad:     func(b *types.BatteryGrid, v float64) { b.Load = v },
	emsPV:       func(b *types.BatteryGrid, v float64) { b.PV = v },
	emsInverter: func(b *types.BatteryGrid, v float64) { b.Inverter = v },
	emsSOC:      func(b *types.BatteryGrid, v float64) { b.Filled = v },
	emsBattery:  func(b *types.BatteryGrid, v float64) { b.Battery = v },
	emsTemp:     func(b *types.BatteryGrid, v float64) { b.Temperature = v },
}

// setGrid splits the signed grid power: positive is drawn from the grid,
// negative is fed into it.
func setGrid(b *types.BatteryGrid, g float64) {
	if g >= 0 {
		b.Withdrawal = g
		b.Feedin = 0
	} else {
		b.Withdrawal = 0
		b.Feedin = -g
	}
}

type powerState int

const (
	powerNone powerState = iota
	powerVoltage
	powerCurrent
	powerPower
)

var powerLabels = map[string]powerState{
	LabelVoltage: powerVoltage,
	LabelCurrent: powerCurrent,
	LabelPower:   powerPower,
}

var powerWrites = map[powerState]func(*types.PowerReading, float64){
	powerVoltage: func(p *types.PowerReading, v float64) { p.Voltage = v },
	powerCurrent: func(p *types.PowerReading, v float64) { p.Current = v },
	powerPower:   func(p *types.PowerReading, v float64) { p.Power = v },
}

// machine is a label/value state machine. A cell matching a label moves it
// into that label's state. Any other cell is the value for the current state
// and moves it back to the zero (none) state. Values seen in the none state
// are ignored.
type machine[S comparable, T any] struct {
	labels map[string]S
	writes map[S]func(*T, float64)
}

func (m machine[S, T]) run(cells []string, out *T) error {
	var none S
	state := none
	label := ""

	for _, cell := range cells {
		text := strings.TrimSpace(cell)

		if next, ok := m.labels[text]; ok {
			state = next
			label = text
			continue
		}

		write, ok := m.writes[state]
		state = none
		if !ok {
			continue
		}

		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return errdefs.Numeric(fmt.Errorf("value of %s: %w", label, err))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errdefs.Numeric(fmt.Errorf("value of %s: %q is not finite", label, text))
		}
		write(out, v)
	}

	return nil
}

var (
	emsMachine   = machine[emsState, types.BatteryGrid]{labels: emsLabels, writes: emsWrites}
	powerMachine = machine[powerState, types.PowerReading]{labels: powerLabels, writes: powerWrites}
)

// ParseBatteryGrid binds the EMS table cells, in document order, to a
// BatteryGrid.
func ParseBatteryGrid(cells []string) (types.BatteryGrid, error) {
	var b types.BatteryGrid
	if err := emsMachine.run(cells, &b); err != nil {
		return types.BatteryGrid{}, err
	}
	return b, nil
}

// ParsePowerRow binds the cells of one PCS row to a PowerReading.
func ParsePowerRow(cells []string) (types.PowerReading, error) {
	var p types.PowerReading
	if err := powerMachine.run(cells, &p); err != nil {
		return types.PowerReading{}, err
	}
	return p, nil
}
