package ae3gis

import (
	"errors"
	"fmt"
	"net"

	"github.com/TollanBerhanu/ae3gis-gns3-api/pkg/hostport"
)

type (
	// Node is a single lab device reachable over a console-over-telnet endpoint
	Node struct {
		Name        string `json:"name"`
		NodeID      string `json:"node_id,omitempty"`
		ConsoleHost string `json:"console_host"`
		ConsolePort int    `json:"console_port"`
		ConsoleType string `json:"console_type,omitempty"`
		AssignedIP  net.IP `json:"assigned_ip,omitempty"`
		Gateway     net.IP `json:"gateway,omitempty"`
	}

	// Nodes is a helper for slices of nodes
	Nodes []*Node
)

// Role classifies the node by its name
func (n *Node) Role() Role {
	return Classify(n.Name)
}

// Validate ensures the values are reasonable
func (n *Node) Validate() error {
	if n.Name == "" {
		return errors.New("node missing name")
	}
	if n.ConsolePort < 0 || n.ConsolePort > 65535 {
		return fmt.Errorf("node %s: console port %d out of range", n.Name, n.ConsolePort)
	}
	return nil
}

// ConsoleTarget resolves the host and port to dial for the node's console. An override host
// wins over the stored one; stored hosts are cleaned of scheme junk and wildcard addresses
// before use; with neither, the console is assumed local to the orchestrator.
func (n *Node) ConsoleTarget(override string) (string, int, error) {
	if n.ConsolePort == 0 {
		return "", 0, fmt.Errorf("node %s has no console port", n.Name)
	}
	return hostport.Resolve(override, n.ConsoleHost), n.ConsolePort, nil
}

// Names is a convenience for logging and reports
func (ns Nodes) Names() []string {
	names := make([]string, 0, len(ns))
	for _, n := range ns {
		names = append(names, n.Name)
	}
	return names
}
