package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration structs
// --------------------------------------------------------------------------

// SocketConf holds buffer tuning shared by all socket based transports.
type SocketConf struct {
	// WriteBufferSize is the socket write buffer size in bytes (0 = OS default)
	WriteBufferSize int
	// ReadBufferSize is the socket read buffer size in bytes (0 = OS default)
	ReadBufferSize int
}

// TCPConf holds TCP specific tuning options.
type TCPConf struct {
	// TCPNoDelay disables Nagle's algorithm when true
	TCPNoDelay bool
	// TCPKeepAliveSec is the keepalive interval in seconds (0 = disabled)
	TCPKeepAliveSec int
	// TCPLingerSec is the linger time in seconds (negative = OS default)
	TCPLingerSec int
}

// TransportConfig describes one rank's view of the transport topology.
type TransportConfig struct {
	// Rank of this process (index into Endpoints)
	Rank int
	// Endpoints lists the listen address of every rank, ordered by rank
	Endpoints []string
	// DialTimeoutSec bounds connection establishment to each peer
	DialTimeoutSec int

	SocketConf
	TCPConf
}

// Size returns the number of participating ranks.
func (c *TransportConfig) Size() int { return len(c.Endpoints) }

// Validate performs local sanity checks on the configuration.
func (c *TransportConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("transport config: no endpoints")
	}
	if c.Rank < 0 || c.Rank >= len(c.Endpoints) {
		return fmt.Errorf("transport config: rank %d out of range [0,%d)", c.Rank, len(c.Endpoints))
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *TransportConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Rank Identity")
	addField("Rank", strconv.Itoa(c.Rank))
	addField("Ranks", strconv.Itoa(c.Size()))

	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("TCP NoDelay", fmt.Sprintf("%t", c.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
