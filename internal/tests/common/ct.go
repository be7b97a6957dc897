// Package common contains common utilities and suites to be used in other tests
package common

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	"github.com/pborman/uuid"
	"github.com/stretchr/testify/suite"
)

// Suite sets up a general test suite with a scratch fleet on disk and scripted consoles
// keyed by port, so tests drive whole workflows without a GNS3 server.
type Suite struct {
	suite.Suite
	Dir        string
	ConfigPath string
	PlanPath   string

	mu       sync.Mutex
	Consoles map[int]*ae3gis.StubConsole
	Dialed   []int
}

// SetupTest prepares a scratch directory and a clean console table per test
func (s *Suite) SetupTest() {
	dir, err := os.MkdirTemp("", "ae3gis-test-"+uuid.New())
	s.Require().NoError(err)
	s.Dir = dir
	s.ConfigPath = filepath.Join(dir, "config.generated.json")
	s.PlanPath = filepath.Join(dir, "ip_plan.json")
	s.Consoles = make(map[int]*ae3gis.StubConsole)
	s.Dialed = nil
}

// TearDownTest removes the scratch directory
func (s *Suite) TearDownTest() {
	_ = os.RemoveAll(s.Dir)
}

// NewNode builds a node with a local console endpoint
func (s *Suite) NewNode(name string, port int) *ae3gis.Node {
	return &ae3gis.Node{
		Name:        name,
		NodeID:      uuid.New(),
		ConsoleHost: "127.0.0.1",
		ConsolePort: port,
		ConsoleType: "telnet",
	}
}

// WriteConfig persists a fleet config into the scratch config path
func (s *Suite) WriteConfig(cfg *ae3gis.FleetConfig) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(s.ConfigPath, b, 0644))
}

// NewStore writes a fleet config and loads a store over it
func (s *Suite) NewStore(cfg *ae3gis.FleetConfig) *ae3gis.Store {
	s.WriteConfig(cfg)
	store, err := ae3gis.LoadStore(s.ConfigPath)
	s.Require().NoError(err)
	return store
}

// NewFleet builds the standard scenario fleet: a transparent switch, a dhcp server, a
// firewall, and a workstation client.
func (s *Suite) NewFleet() *ae3gis.FleetConfig {
	return &ae3gis.FleetConfig{
		ProjectName: "scenario",
		ProjectID:   uuid.New(),
		Nodes: ae3gis.Nodes{
			s.NewNode("Switch-1", 5000),
			s.NewNode("DHCP-1", 5001),
			s.NewNode("Firewall-1", 5002),
			s.NewNode("Workstation-1", 5003),
		},
	}
}

// PlanEntry builds a plan entry from string literals, keeping the host half of the CIDR
func (s *Suite) PlanEntry(ifname, cidr, gw string) *ae3gis.PlanEntry {
	ip, n, err := net.ParseCIDR(cidr)
	s.Require().NoError(err)
	entry := &ae3gis.PlanEntry{
		Ifname: ifname,
		CIDR:   &net.IPNet{IP: ip.To4(), Mask: n.Mask},
	}
	if gw != "" {
		entry.Gateway = net.ParseIP(gw).To4()
	}
	return entry
}

// WritePlan persists a static plan into the scratch plan path and reloads it
func (s *Suite) WritePlan(plan *ae3gis.StaticPlan) *ae3gis.StaticPlan {
	b, err := json.Marshal(plan)
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(s.PlanPath, b, 0644))
	loaded, err := ae3gis.LoadStaticPlan(s.PlanPath)
	s.Require().NoError(err)
	return loaded
}

// Console fetches or creates the scripted console listening on a port
func (s *Suite) Console(port int, replies ...ae3gis.StubReply) *ae3gis.StubConsole {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.Consoles[port]; ok {
		return c
	}
	c := ae3gis.NewStubConsole(replies...)
	s.Consoles[port] = c
	return c
}

// Dialer hands jobs their scripted consoles and records every dial
func (s *Suite) Dialer() ae3gis.ConsoleDialer {
	return func(host string, port int, timeout time.Duration) (ae3gis.Consoler, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.Dialed = append(s.Dialed, port)
		c, ok := s.Consoles[port]
		if !ok {
			return nil, &ae3gis.ConnectError{
				Host: host,
				Port: port,
				Err:  errors.New("no console scripted for port"),
			}
		}
		return c, nil
	}
}

// DialCount reports how many dials landed on a port
func (s *Suite) DialCount(port int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.Dialed {
		if p == port {
			count++
		}
	}
	return count
}
