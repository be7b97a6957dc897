package ae3gis_test

import (
	"net"
	"testing"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	h "github.com/bakins/test-helpers"
)

func newNode(t *testing.T, name string, port int) *ae3gis.Node {
	return &ae3gis.Node{
		Name:        name,
		ConsoleHost: "127.0.0.1",
		ConsolePort: port,
		ConsoleType: "telnet",
	}
}

func newPlanEntry(t *testing.T, ifname, cidr, gw string) *ae3gis.PlanEntry {
	ip, n, err := net.ParseCIDR(cidr)
	h.Ok(t, err)

	e := &ae3gis.PlanEntry{
		Ifname: ifname,
		CIDR:   &net.IPNet{IP: ip.To4(), Mask: n.Mask},
	}
	if gw != "" {
		e.Gateway = net.ParseIP(gw).To4()
	}
	return e
}

func newPlan(t *testing.T, node string, entries ...*ae3gis.PlanEntry) *ae3gis.StaticPlan {
	return &ae3gis.StaticPlan{
		Interfaces: map[string][]*ae3gis.PlanEntry{
			node: entries,
		},
	}
}
