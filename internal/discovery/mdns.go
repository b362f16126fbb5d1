package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/maxcul/internal/transceiver"
)

const (
	// ServiceType is the mDNS service type of maxcul feeds
	ServiceType = "_maxcul._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for bridge discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPath is the feed path assumed when the TXT record has none
	DefaultPath = "/ws"
)

// TXT is the information a bridge announces.
type TXT struct {
	Gateway string
	Path    string
	Version string
}

func (t TXT) records() []string {
	path := t.Path
	if path == "" {
		path = DefaultPath
	}
	records := []string{"gateway=" + strings.ToUpper(t.Gateway), "path=" + path}
	if t.Version != "" {
		records = append(records, "version="+t.Version)
	}
	return records
}

// Announce registers the feed on all interfaces. Call Shutdown on the
// returned server to withdraw it.
func Announce(instance string, port int, txt TXT) (*zeroconf.Server, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt.records(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return server, nil
}

// Scanner handles mDNS bridge discovery
type Scanner struct {
	// Timeout is the maximum time to wait for bridges
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for bridges until the timeout or ctx ends.
func (s *Scanner) Scan(ctx context.Context) ([]*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var (
		mu      sync.Mutex
		bridges []*Bridge
		seen    = make(map[string]bool)
	)
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			bridge := parseServiceEntry(entry)
			if bridge == nil {
				continue
			}
			mu.Lock()
			if !seen[bridge.Instance] {
				seen[bridge.Instance] = true
				bridges = append(bridges, bridge)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Bridge(nil), bridges...), nil
}

// parseServiceEntry converts a zeroconf service entry to a Bridge.
// Returns nil if the entry lacks an address or a valid gateway.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	gateway := metadata["gateway"]
	if !transceiver.IsDeviceAddress(gateway) {
		return nil
	}
	path := metadata["path"]
	if path == "" {
		path = DefaultPath
	}

	return &Bridge{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Gateway:      strings.ToUpper(gateway),
		Path:         path,
		Version:      metadata["version"],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
