package types

import "time"

// Reading is one complete, timestamped snapshot of everything extracted from
// the ESS status page. It is either fully populated or not produced at all.
type Reading struct {
	Time     time.Time   `json:"time"`
	Battery  BatteryGrid `json:"battery"`
	Inverter PowerTriple `json:"inverter"`
}

// BatteryGrid holds the EMS block of the status page.
// Powers are in Watts.
type BatteryGrid struct {
	// Filled is the battery state of charge in percent.
	Filled  float64 `json:"filled"`
	Battery float64 `json:"battery"`
	PV      float64 `json:"pv"`
	// Withdrawal and Feedin are both derived from the signed grid power.
	// At most one of them is non-zero.
	Withdrawal  float64 `json:"withdrawal"`
	Feedin      float64 `json:"feedin"`
	Inverter    float64 `json:"inverter"`
	Load        float64 `json:"load"`
	Temperature float64 `json:"temperature"`
}

// PowerTriple holds the PCS block: both PV inputs and the inverter output.
type PowerTriple struct {
	PV1 PowerReading `json:"pv1"`
	PV2 PowerReading `json:"pv2"`
	Inv PowerReading `json:"inv"`
}

// PowerReading is a single measured channel.
// Units: Voltage in V, Current in A, Power in W.
type PowerReading struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
	Power   float64 `json:"power"`
}

// Sources returns the sub-readings keyed by the tag used by the backends.
func (p PowerTriple) Sources() []NamedPowerReading {
	return []NamedPowerReading{
		{Source: SourcePV1, PowerReading: p.PV1},
		{Source: SourcePV2, PowerReading: p.PV2},
		{Source: SourceInv, PowerReading: p.Inv},
	}
}

const (
	SourcePV1 = "pv1"
	SourcePV2 = "pv2"
	SourceInv = "inv"
)

// NamedPowerReading is a PowerReading tagged with the channel it came from.
type NamedPowerReading struct {
	Source string `json:"source"`
	PowerReading
}
