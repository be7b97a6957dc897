package ae3gis_test

import (
	"encoding/json"
	"strings"
	"testing"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	h "github.com/bakins/test-helpers"
)

func TestNodeValidate(t *testing.T) {
	n := newNode(t, "Workstation-1", 5001)
	h.Ok(t, n.Validate())

	n.Name = ""
	err := n.Validate()
	h.Assert(t, err != nil, "should have got an error")
	h.Assert(t, strings.Contains(err.Error(), "missing name"), "unexpected error message")

	n = newNode(t, "Workstation-1", 700000)
	err = n.Validate()
	h.Assert(t, err != nil, "should have got an error")
	h.Assert(t, strings.Contains(err.Error(), "out of range"), "unexpected error message")
}

func TestNodeRole(t *testing.T) {
	h.Equals(t, ae3gis.RoleDHCP, newNode(t, "DHCP-1", 5000).Role())
	h.Equals(t, ae3gis.RoleClient, newNode(t, "Workstation-1", 5001).Role())
}

func TestNodeConsoleTarget(t *testing.T) {
	n := newNode(t, "Workstation-1", 5001)

	host, port, err := n.ConsoleTarget("")
	h.Ok(t, err)
	h.Equals(t, "127.0.0.1", host)
	h.Equals(t, 5001, port)

	// an override beats the stored host
	host, _, err = n.ConsoleTarget("gns3.lab")
	h.Ok(t, err)
	h.Equals(t, "gns3.lab", host)

	// stored hosts get scheme and path junk stripped
	n.ConsoleHost = "http://gns3.lab:3080/v2"
	host, _, err = n.ConsoleTarget("")
	h.Ok(t, err)
	h.Equals(t, "gns3.lab", host)

	// wildcard binds cannot be dialed
	n.ConsoleHost = "0.0.0.0"
	host, _, err = n.ConsoleTarget("")
	h.Ok(t, err)
	h.Equals(t, "127.0.0.1", host)

	n.ConsolePort = 0
	_, _, err = n.ConsoleTarget("")
	h.Assert(t, err != nil, "should have got an error")
	h.Assert(t, strings.Contains(err.Error(), "no console port"), "unexpected error message")
}

func TestNodeJSON(t *testing.T) {
	data := `{"name": "Workstation-1", "node_id": "EF8D7367-F14F-49C9-B960-2625947CA929", "console_host": "192.168.122.1", "console_port": 5001, "console_type": "telnet", "assigned_ip": "192.168.0.23"}`

	n := ae3gis.Node{}
	err := json.Unmarshal([]byte(data), &n)
	h.Ok(t, err)
	h.Equals(t, "Workstation-1", n.Name)
	h.Equals(t, "EF8D7367-F14F-49C9-B960-2625947CA929", n.NodeID)
	h.Equals(t, 5001, n.ConsolePort)
	h.Equals(t, "192.168.0.23", n.AssignedIP.String())

	b, err := json.Marshal(&n)
	h.Ok(t, err)
	h.Assert(t, strings.Contains(string(b), "192.168.0.23"), "assigned address should survive the round trip")
	h.Assert(t, !strings.Contains(string(b), "gateway"), "unset gateway should be omitted")
}

func TestNodesNames(t *testing.T) {
	ns := ae3gis.Nodes{
		newNode(t, "DHCP-1", 5000),
		newNode(t, "Workstation-1", 5001),
	}
	h.Equals(t, []string{"DHCP-1", "Workstation-1"}, ns.Names())
}
