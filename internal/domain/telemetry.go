package domain

// Telemetry is a decoded mesh record the gateway acts on: either a Position
// or an Identity.
type Telemetry interface {
	Node() string
	isTelemetry()
}

// Position is a POSITION_APP report. Coordinates are in degrees.
type Position struct {
	NodeID    string
	Latitude  float64
	Longitude float64
	Altitude  int32
	Time      uint32
}

func (p Position) Node() string { return p.NodeID }
func (Position) isTelemetry()   {}

// Identity is a NODEINFO_APP user record.
type Identity struct {
	NodeID    string
	LongName  string
	ShortName string
	HwModel   string
}

func (i Identity) Node() string { return i.NodeID }
func (Identity) isTelemetry()   {}
