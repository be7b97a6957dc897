package ae3gis

import "strings"

// Role is the provisioning category a node falls into, derived from its name
type Role string

const (
	// RoleSwitch nodes are transparent and never provisioned
	RoleSwitch = Role("switch")
	// RoleDHCP nodes serve leases and are started before any client asks for one
	RoleDHCP = Role("dhcp-server")
	// RoleFirewall nodes are addressed from the static plan and get a composed ruleset
	RoleFirewall = Role("firewall")
	// RoleClient nodes acquire addresses over DHCP with a static fallback
	RoleClient = Role("client")
)

// keyword tables, checked in priority order. A name matching an earlier table never falls
// through to a later one.
var (
	switchKeywords   = []string{"switch", "openvswitch", "ovs"}
	dhcpKeywords     = []string{"dhcp", "dnsmasq"}
	firewallKeywords = []string{"firewall"}
)

// Classify maps a node name to its Role by case-insensitive substring match.
// Priority is switch, then dhcp-server, then firewall; anything else is a client.
func Classify(name string) Role {
	n := strings.ToLower(name)
	if containsAny(n, switchKeywords) {
		return RoleSwitch
	}
	if containsAny(n, dhcpKeywords) {
		return RoleDHCP
	}
	if containsAny(n, firewallKeywords) {
		return RoleFirewall
	}
	return RoleClient
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
