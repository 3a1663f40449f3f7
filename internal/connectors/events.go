package connectors

import "time"

// ConnectionState describes the APRS-IS session lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateLoggingIn    ConnectionState = "logging_in"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus event snapshot of the session state.
type ConnectionStatus struct {
	State     ConnectionState
	Err       string
	Target    string
	Timestamp time.Time
}

// ReportOutcome is what the gateway did with a position for a directory node.
type ReportOutcome string

const (
	ReportSent       ReportOutcome = "sent"
	ReportSuppressed ReportOutcome = "suppressed"
	ReportFailed     ReportOutcome = "failed"
)

// ReportEvent is published for every position of a directory node.
type ReportEvent struct {
	NodeID    string
	Callsign  string
	Outcome   ReportOutcome
	Line      string
	Err       string
	Timestamp time.Time
}
