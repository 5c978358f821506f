// ABOUTME: mDNS service discovery package
// ABOUTME: Discover time sources and advertise followers on the local network
// Package discovery provides mDNS discovery for clocksync time sources.
//
// Time sources advertise _clocksync._tcp; followers browse for them and may
// advertise themselves as _clocksync-follower._tcp so operators can find
// every synchronized host.
//
// Example:
//
//	m := discovery.NewManager(discovery.Config{ServiceName: "lab-pc"})
//	m.Browse()
//	src := <-m.Sources()
//	fmt.Printf("Found: %s at %s:%d\n", src.Name, src.Host, src.Port)
package discovery
