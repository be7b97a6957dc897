package ae3gis

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

type (
	// PlanEntry is one planned interface assignment. CIDR carries the host address, not the
	// network, so 10.0.0.5/24 survives a round trip intact.
	PlanEntry struct {
		Ifname  string
		CIDR    *net.IPNet
		Gateway net.IP
	}

	// StaticPlan maps node names to their planned interface assignments. It is the fallback
	// for clients whose DHCP strategies all fail and the only address source for firewalls.
	StaticPlan struct {
		Interfaces map[string][]*PlanEntry `json:"interfaces"`
	}

	//helper struct for json
	planEntryJSON struct {
		Ifname  string `json:"ifname"`
		IP      string `json:"ip"`
		Gateway net.IP `json:"gw,omitempty"`
	}
)

// issues with (un)marshal of net.IPNet

// MarshalJSON is used by the json package
func (e *PlanEntry) MarshalJSON() ([]byte, error) {
	data := planEntryJSON{
		Ifname:  e.Ifname,
		Gateway: e.Gateway,
	}
	if e.CIDR != nil {
		data.IP = e.CIDR.String()
	}
	return json.Marshal(data)
}

// UnmarshalJSON is used by the json package
func (e *PlanEntry) UnmarshalJSON(input []byte) error {
	data := planEntryJSON{}
	if err := json.Unmarshal(input, &data); err != nil {
		return err
	}

	ip, n, err := net.ParseCIDR(data.IP)
	if err != nil {
		return err
	}
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}

	e.Ifname = data.Ifname
	e.CIDR = &net.IPNet{IP: ip, Mask: n.Mask}
	e.Gateway = data.Gateway
	return nil
}

// IP is the planned host address
func (e *PlanEntry) IP() net.IP {
	if e.CIDR == nil {
		return nil
	}
	return e.CIDR.IP
}

// PrefixLen is the planned prefix length
func (e *PlanEntry) PrefixLen() int {
	if e.CIDR == nil {
		return 0
	}
	ones, _ := e.CIDR.Mask.Size()
	return ones
}

// Validate ensures the values are reasonable
func (p *StaticPlan) Validate() error {
	for node, entries := range p.Interfaces {
		seen := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			if e.Ifname == "" {
				return fmt.Errorf("plan for %s: entry missing ifname", node)
			}
			if e.CIDR == nil || e.CIDR.IP == nil {
				return fmt.Errorf("plan for %s/%s: entry missing address", node, e.Ifname)
			}
			if _, ok := seen[e.Ifname]; ok {
				return fmt.Errorf("plan for %s: duplicate ifname %q", node, e.Ifname)
			}
			seen[e.Ifname] = struct{}{}
		}
	}
	return nil
}

// Lookup fetches the plan entry for a node and interface
func (p *StaticPlan) Lookup(node, ifname string) (*PlanEntry, bool) {
	if p == nil {
		return nil, false
	}
	for _, e := range p.Interfaces[node] {
		if e.Ifname == ifname {
			return e, true
		}
	}
	return nil, false
}

// Entries returns the planned assignments for a node in plan order
func (p *StaticPlan) Entries(node string) []*PlanEntry {
	if p == nil {
		return nil
	}
	return p.Interfaces[node]
}

// InterfaceNames returns the planned interface names for a node in plan order
func (p *StaticPlan) InterfaceNames(node string) []string {
	entries := p.Entries(node)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Ifname)
	}
	return names
}

// LoadStaticPlan reads and validates a plan file. The plan loads independently of the fleet
// config; nodes without entries are simply absent from the map.
func LoadStaticPlan(path string) (*StaticPlan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	plan := &StaticPlan{}
	if err := json.Unmarshal(b, plan); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if plan.Interfaces == nil {
		plan.Interfaces = make(map[string][]*PlanEntry)
	}
	if err := plan.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return plan, nil
}
