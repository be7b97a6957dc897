package ae3gis

import (
	"errors"
	"fmt"
)

// FleetConfig is the full node inventory for one lab project. Node order is preserved from
// the file so reports read the way the topology was authored.
type FleetConfig struct {
	ProjectName string `json:"project_name,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Nodes       Nodes  `json:"nodes"`
}

// Validate ensures the values are reasonable. Duplicate node names are rejected since every
// run report and store mutation is keyed by name.
func (c *FleetConfig) Validate() error {
	if c == nil {
		return errors.New("nil fleet config")
	}

	seen := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, ok := seen[n.Name]; ok {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		seen[n.Name] = struct{}{}
	}
	return nil
}

// FindNode fetches a single node by name
func (c *FleetConfig) FindNode(name string) *Node {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// NodesByRole returns the nodes classified into the given role, preserving config order
func (c *FleetConfig) NodesByRole(role Role) Nodes {
	var out Nodes
	for _, n := range c.Nodes {
		if n.Role() == role {
			out = append(out, n)
		}
	}
	return out
}
