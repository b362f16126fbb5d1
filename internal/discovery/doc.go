// Package discovery announces maxcul bridges over mDNS and finds them.
//
// A bridge serving the websocket feed registers itself as a "_maxcul._tcp"
// service. The TXT record carries the gateway's RF address, the feed path
// and the maxcul version, so a client on the same network can find the feed
// without configuration.
//
// # Usage Example
//
//	server, err := discovery.Announce("living-room", 8089, discovery.TXT{
//	    Gateway: "123456",
//	    Version: version.Version,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Shutdown()
//
//	bridges, err := discovery.NewScanner().Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
