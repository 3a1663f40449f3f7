package app

import (
	"testing"

	"github.com/skobkin/mesh2aprs/internal/config"
	"github.com/skobkin/mesh2aprs/internal/connectors"
)

func TestAPRSTarget(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.APRSConfig
		want string
	}{
		{name: "host and port", cfg: config.APRSConfig{Host: "rotate.aprs2.net", Port: 14580}, want: "rotate.aprs2.net:14580"},
		{name: "default port", cfg: config.APRSConfig{Host: "euro.aprs2.net"}, want: "euro.aprs2.net:14580"},
		{name: "ipv6", cfg: config.APRSConfig{Host: "::1", Port: 10152}, want: "[::1]:10152"},
		{name: "empty host", cfg: config.APRSConfig{Port: 14580}, want: ""},
	}

	for _, tc := range tests {
		if got := APRSTarget(tc.cfg); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestConnectionStatusFromConfig(t *testing.T) {
	status := ConnectionStatusFromConfig(config.APRSConfig{Host: "rotate.aprs2.net", Port: 14580})
	if status.State != connectors.ConnectionStateLoggingIn {
		t.Fatalf("expected logging_in state, got %q", status.State)
	}
	if status.Target != "rotate.aprs2.net:14580" {
		t.Fatalf("unexpected target: %q", status.Target)
	}

	status = ConnectionStatusFromConfig(config.APRSConfig{})
	if status.State != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected state without host, got %q", status.State)
	}
}

func TestDescribeStatus(t *testing.T) {
	tests := []struct {
		status connectors.ConnectionStatus
		want   string
	}{
		{
			status: connectors.ConnectionStatus{State: connectors.ConnectionStateConnected, Target: "a:1"},
			want:   "connected to a:1",
		},
		{
			status: connectors.ConnectionStatus{State: connectors.ConnectionStateLoggingIn, Target: "a:1"},
			want:   "logging in to a:1",
		},
		{
			status: connectors.ConnectionStatus{State: connectors.ConnectionStateDisconnected, Target: "a:1", Err: "EOF"},
			want:   "disconnected from a:1: EOF",
		},
	}

	for _, tc := range tests {
		if got := DescribeStatus(tc.status); got != tc.want {
			t.Fatalf("unexpected description: got %q want %q", got, tc.want)
		}
	}
}
