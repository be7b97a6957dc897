package ae3gis

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Strategy is one DHCP client invocation and the lease marker its output uses. Different
// lab images ship different clients, so strategies are tried in declared order and the
// first one whose output carries a valid lease wins.
type Strategy struct {
	Name    string
	Command string
	leaseRE *regexp.Regexp
}

const ipv4Pattern = `(\d{1,3}(?:\.\d{1,3}){3})`

// DefaultStrategies is the strategy order used when an Acquirer is not given one
var DefaultStrategies = []Strategy{
	{
		Name:    "dhclient",
		Command: "dhclient -v -1 %s",
		leaseRE: regexp.MustCompile(`bound to ` + ipv4Pattern),
	},
	{
		Name:    "udhcpc",
		Command: "udhcpc -i %s -q -n -t 3",
		leaseRE: regexp.MustCompile(`lease of ` + ipv4Pattern + ` obtained`),
	},
	{
		Name:    "dhcpcd",
		Command: "dhcpcd -4 -t 10 %s",
		leaseRE: regexp.MustCompile(`leased ` + ipv4Pattern + ` for`),
	},
}

var (
	inetRE       = regexp.MustCompile(`\binet\s+` + ipv4Pattern + `/(\d+)`)
	defaultViaRE = regexp.MustCompile(`default\s+(?:route\s+)?via\s+` + ipv4Pattern)
)

// CommandFor renders the client invocation for an interface
func (s Strategy) CommandFor(ifname string) string {
	return fmt.Sprintf(s.Command, ifname)
}

// Lease scans captured output for this client's lease marker and returns the leased
// address, or nil when the output carries none. Loopback and syntactically invalid
// literals never count as leases.
func (s Strategy) Lease(output string) net.IP {
	for _, m := range s.leaseRE.FindAllStringSubmatch(output, -1) {
		if ip := validLeaseIP(m[1]); ip != nil {
			return ip
		}
	}
	return nil
}

// CommandNotFound reports whether output looks like the shell rejecting a missing binary,
// which covers sh, bash, and busybox applet phrasing.
func CommandNotFound(output string) bool {
	return strings.Contains(output, "not found")
}

// parseInet scans `ip addr` style output for the first non-loopback inet line and returns
// the address and prefix length.
func parseInet(output string) (net.IP, int, bool) {
	for _, m := range inetRE.FindAllStringSubmatch(output, -1) {
		ip := validLeaseIP(m[1])
		if ip == nil {
			continue
		}
		prefix, err := strconv.Atoi(m[2])
		if err != nil || prefix < 0 || prefix > 32 {
			continue
		}
		return ip, prefix, true
	}
	return nil, 0, false
}

// parseDefaultVia scans `ip route` or client output for a default gateway. Both the route
// table phrasing (default via) and client phrasing (default route via) match.
func parseDefaultVia(output string) net.IP {
	m := defaultViaRE.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	ip := net.ParseIP(m[1])
	if ip == nil {
		return nil
	}
	return ip.To4()
}

// validLeaseIP parses a dotted quad and rejects anything that cannot be a usable lease
func validLeaseIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	ip = ip.To4()
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return nil
	}
	return ip
}
