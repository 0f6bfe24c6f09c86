package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dLDAP/ldap/conn"
)

// ClientConfig holds all configuration parameters for the client
// runtime.
type ClientConfig struct {
	// Endpoints are the directory servers in host:port form
	Endpoints []string

	// Connection parameters
	ConnectTimeoutSecond int
	TimeoutSecond        int

	// Optional simple-bind credential; authentication is skipped when
	// the DN is empty
	BindDN       string
	BindPassword string

	// Pool parameters
	PoolSize int

	// Logging configuration
	LogLevel string
}

// Targets parses the configured endpoints into a server roster.
func (c *ClientConfig) Targets() ([]conn.Target, error) {
	if len(c.Endpoints) == 0 {
		return nil, fmt.Errorf("common: no endpoints configured")
	}

	targets := make([]conn.Target, 0, len(c.Endpoints))
	for _, endpoint := range c.Endpoints {
		host, portStr, err := net.SplitHostPort(strings.TrimSpace(endpoint))
		if err != nil {
			return nil, fmt.Errorf("common: invalid endpoint %q: %w", endpoint, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("common: invalid port in endpoint %q", endpoint)
		}
		targets = append(targets, conn.Target{Address: host, Port: port})
	}
	return targets, nil
}

// String returns a formatted string representation of the configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client")
	addField("Connect Timeout", fmt.Sprintf("%d sec", c.ConnectTimeoutSecond))
	addField("Operation Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Pool Size", strconv.Itoa(c.PoolSize))

	addSection("Authentication")
	if c.BindDN != "" {
		addField("Bind DN", c.BindDN)
		addField("Bind Password", strings.Repeat("*", len(c.BindPassword)))
	} else {
		addField("Bind DN", "(anonymous)")
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
