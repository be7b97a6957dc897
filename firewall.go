package ae3gis

import (
	"fmt"
	"net"
)

const (
	scanGuardChain = "SCAN_GUARD"

	iptRecentDrop = "iptables -A %s -p %s -m recent --name %s --update --seconds %d --hitcount %d -j DROP"
	iptRecentMark = "iptables -A %s -p %s -m recent --name %s --set%s"
)

// RuleParams tunes the scan-guard throttles. Zero values fall back to the defaults the lab
// images were tuned against.
type RuleParams struct {
	SynWindowSeconds int
	SynHitCount      int
	UDPWindowSeconds int
	UDPHitCount      int
}

// DefaultRuleParams returns the stock throttle tolerances
func DefaultRuleParams() RuleParams {
	return RuleParams{
		SynWindowSeconds: 1,
		SynHitCount:      15,
		UDPWindowSeconds: 1,
		UDPHitCount:      60,
	}
}

func (p RuleParams) withDefaults() RuleParams {
	d := DefaultRuleParams()
	if p.SynWindowSeconds <= 0 {
		p.SynWindowSeconds = d.SynWindowSeconds
	}
	if p.SynHitCount <= 0 {
		p.SynHitCount = d.SynHitCount
	}
	if p.UDPWindowSeconds <= 0 {
		p.UDPWindowSeconds = d.UDPWindowSeconds
	}
	if p.UDPHitCount <= 0 {
		p.UDPHitCount = d.UDPHitCount
	}
	return p
}

// ComposeFirewallRules builds the ordered iptables command list for a firewall node whose
// own address is ip. Same inputs, same list; nothing here touches a console. The list
// allows loopback, established flows, ICMP, and DHCP, then throttles SYN and UDP floods
// through a recent-match scan guard. No default-deny is ever emitted; the lab's default
// policies stay whatever the image shipped with.
func ComposeFirewallRules(ip net.IP, params RuleParams) []string {
	p := params.withDefaults()

	rules := []string{
		"iptables -A INPUT -i lo -j ACCEPT",
		"iptables -A INPUT -m conntrack --ctstate ESTABLISHED,RELATED -j ACCEPT",
		"iptables -A FORWARD -m conntrack --ctstate ESTABLISHED,RELATED -j ACCEPT",
		"iptables -A INPUT -p icmp -j ACCEPT",
		"iptables -A INPUT -p udp --sport 67:68 --dport 67:68 -j ACCEPT",
		"iptables -A FORWARD -p udp --sport 67:68 --dport 67:68 -j ACCEPT",
	}

	// the chain may exist from an earlier run, so creation tolerates EEXIST and the
	// flush makes reruns idempotent
	rules = append(rules,
		fmt.Sprintf("iptables -N %s 2>/dev/null || true", scanGuardChain),
		fmt.Sprintf("iptables -F %s", scanGuardChain),
		fmt.Sprintf(iptRecentDrop, scanGuardChain, "tcp", "portscan", p.SynWindowSeconds, p.SynHitCount),
		fmt.Sprintf(iptRecentMark, scanGuardChain, "tcp", "portscan", " -j RETURN"),
		fmt.Sprintf("iptables -A INPUT -d %s -p tcp --syn -j %s", ip, scanGuardChain),
		fmt.Sprintf("iptables -A FORWARD -p tcp --syn -j %s", scanGuardChain),
	)

	rules = append(rules,
		fmt.Sprintf(iptRecentDrop, "INPUT", "udp", "udpscan", p.UDPWindowSeconds, p.UDPHitCount),
		fmt.Sprintf(iptRecentMark, "INPUT", "udp", "udpscan", ""),
	)

	return rules
}
