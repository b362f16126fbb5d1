package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge is a maxcul bridge found on the network.
type Bridge struct {
	// Instance is the mDNS instance name (e.g. "living-room")
	Instance string

	// Hostname is the mDNS hostname (e.g. "pi.local.")
	Hostname string

	// IP is the address to connect to, IPv4 when available
	IP string

	// Port is the feed's HTTP port
	Port int

	// Gateway is the RF address of the bridge's CUL gateway
	Gateway string

	// Path is the websocket path of the feed
	Path string

	// Version is the maxcul version of the bridge
	Version string

	// Metadata contains every TXT record entry
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (b *Bridge) String() string {
	return fmt.Sprintf("maxcul bridge %s (gateway %s) at %s", b.Instance, b.Gateway, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// FeedURL returns the websocket URL of the bridge's feed.
func (b *Bridge) FeedURL() string {
	return "ws://" + net.JoinHostPort(b.IP, strconv.Itoa(b.Port)) + b.Path
}
