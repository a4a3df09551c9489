package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/ess-reader/ess-reader/pkg/types"
)

// consoleSink prints every reading, as a table or as JSON.
type consoleSink struct {
	w      io.Writer
	asJSON bool
}

func (c *consoleSink) Send(_ context.Context, r types.Reading) error {
	if c.asJSON {
		return printReadingJSON(c.w, r)
	}
	printReading(c.w, r)
	return nil
}

func printReadingJSON(w io.Writer, r types.Reading) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printReading(w io.Writer, r types.Reading) {
	b := r.Battery
	row := func(name, value string) {
		fmt.Fprintf(w, "  %-19s %s\n", name+":", value)
	}

	fmt.Fprintln(w, bold("Reading at %s", r.Time.Local().Format(time.RFC1123Z)))
	row("Load", bold("%.1f W", b.Load))
	row("Battery filled", bold("%.1f %%", b.Filled))
	row("Battery", batteryPower(b.Battery))
	row("Grid (withdrawal)", bold("%.1f W", b.Withdrawal))
	row("Grid (feed-in)", bold("%.1f W", b.Feedin))
	row("PV production", bold("%.1f W", b.PV))
	row("Inverter", bold("%.1f W", b.Inverter))
	row("Temperature", bold("%.1f °C", b.Temperature))

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Production:"))
	fmt.Fprintf(w, "  %-6s %10s %10s %10s\n", "", "Voltage", "Current", "Power")
	for _, s := range []struct {
		name string
		p    types.PowerReading
	}{
		{"PV-1", r.Inverter.PV1},
		{"PV-2", r.Inverter.PV2},
		{"INV", r.Inverter.Inv},
	} {
		fmt.Fprintf(w, "  %-6s %8.1f V %8.1f A %8.1f W\n", s.name, s.p.Voltage, s.p.Current, s.p.Power)
	}
}

// batteryPower prints positive values green and negative values red.
func batteryPower(watts float64) string {
	switch {
	case watts > 0:
		return color.New(color.Bold, color.FgGreen).Sprintf("%+.1f W", watts)
	case watts < 0:
		return color.New(color.Bold, color.FgRed).Sprintf("%+.1f W", watts)
	default:
		return bold("%+.1f W", watts)
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
