package ae3gis_test

import (
	"encoding/json"
	"strings"
	"testing"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	h "github.com/bakins/test-helpers"
)

func newFleetConfig(t *testing.T) *ae3gis.FleetConfig {
	return &ae3gis.FleetConfig{
		ProjectName: "scenario",
		Nodes: ae3gis.Nodes{
			newNode(t, "Switch-1", 5000),
			newNode(t, "DHCP-1", 5001),
			newNode(t, "Firewall-1", 5002),
			newNode(t, "Workstation-1", 5003),
		},
	}
}

func TestFleetConfigValidate(t *testing.T) {
	cfg := newFleetConfig(t)
	h.Ok(t, cfg.Validate())

	cfg.Nodes = append(cfg.Nodes, newNode(t, "DHCP-1", 5009))
	err := cfg.Validate()
	h.Assert(t, err != nil, "should have got an error")
	h.Assert(t, strings.Contains(err.Error(), "duplicate node name"), "unexpected error message")

	var nilCfg *ae3gis.FleetConfig
	h.Assert(t, nilCfg.Validate() != nil, "nil configs do not validate")
}

func TestFleetConfigFindNode(t *testing.T) {
	cfg := newFleetConfig(t)

	n := cfg.FindNode("Firewall-1")
	h.Assert(t, n != nil, "node should be found")
	h.Equals(t, 5002, n.ConsolePort)

	h.Assert(t, cfg.FindNode("nope") == nil, "unknown names have no node")
}

func TestFleetConfigNodesByRole(t *testing.T) {
	cfg := newFleetConfig(t)

	h.Equals(t, []string{"Switch-1"}, cfg.NodesByRole(ae3gis.RoleSwitch).Names())
	h.Equals(t, []string{"DHCP-1"}, cfg.NodesByRole(ae3gis.RoleDHCP).Names())
	h.Equals(t, []string{"Workstation-1"}, cfg.NodesByRole(ae3gis.RoleClient).Names())
}

func TestFleetConfigJSON(t *testing.T) {
	data := `{
		"project_name": "scenario",
		"project_id": "EF8D7367-F14F-49C9-B960-2625947CA929",
		"nodes": [
			{"name": "DHCP-1", "console_host": "127.0.0.1", "console_port": 5001},
			{"name": "Workstation-1", "console_host": "127.0.0.1", "console_port": 5003}
		]
	}`

	cfg := ae3gis.FleetConfig{}
	h.Ok(t, json.Unmarshal([]byte(data), &cfg))
	h.Ok(t, cfg.Validate())
	h.Equals(t, 2, len(cfg.Nodes))
	h.Equals(t, "DHCP-1", cfg.Nodes[0].Name)
	h.Equals(t, []string{"DHCP-1", "Workstation-1"}, cfg.Nodes.Names())
}
