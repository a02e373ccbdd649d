// Package discovery finds salus-server state feeds on the local network.
//
// salus-server advertises each thermostat feed over multicast DNS as a
// "_salus-feed._tcp" service with TXT records:
//
//	device=STA00012345   vendor device id
//	name=Hallway         display name
//	path=/ws             websocket path
//	version=v1.2.0       server version
//
// # Usage Example
//
//	feeds, err := discovery.NewScanner().Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range feeds {
//	    fmt.Printf("%s -> %s\n", f, f.WSURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - The server must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
