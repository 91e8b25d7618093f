// Package discovery finds clm-setup-server instances on the local network
// over multicast DNS.
//
// The server advertises itself as a "_clmsetup._tcp" service with TXT
// records carrying its version; the CLI browses for that service when no
// server URL is configured.
//
// # Usage Example
//
//	servers, err := discovery.Scan(ctx, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, srv := range servers {
//	    fmt.Println(srv.Instance, srv.BaseURL())
//	}
//
// Advertising from the server side:
//
//	ad, err := discovery.Advertise("Bay 1", 5000, map[string]string{"version": version.Version})
//	defer ad.Shutdown()
//
// # Network Requirements
//
//   - Requires multicast support on the network interface
//   - Client and server must be on the same network segment
//   - Firewall must allow mDNS (UDP port 5353)
package discovery
