package app

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/skobkin/mesh2aprs/internal/config"
	"github.com/skobkin/mesh2aprs/internal/connectors"
)

func APRSTarget(cfg config.APRSConfig) string {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return ""
	}
	port := cfg.Port
	if port <= 0 {
		port = config.DefaultAPRSPort
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ConnectionStatusFromConfig is the status reported before the session
// publishes anything: it starts logging in as soon as the runtime is up.
func ConnectionStatusFromConfig(cfg config.APRSConfig) connectors.ConnectionStatus {
	status := connectors.ConnectionStatus{
		State:  connectors.ConnectionStateDisconnected,
		Target: APRSTarget(cfg),
	}
	if status.Target != "" {
		status.State = connectors.ConnectionStateLoggingIn
	}

	return status
}

func DescribeStatus(status connectors.ConnectionStatus) string {
	var desc string
	switch status.State {
	case connectors.ConnectionStateConnected:
		desc = "connected to " + status.Target
	case connectors.ConnectionStateLoggingIn:
		desc = "logging in to " + status.Target
	default:
		desc = "disconnected from " + status.Target
	}
	if status.Err != "" {
		desc = fmt.Sprintf("%s: %s", desc, status.Err)
	}

	return desc
}
