package ae3gis

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// Commands sent over node consoles. Lab images are busybox-ish, so everything sticks to
// plain iproute2 and sh.
const (
	cmdLinkUp    = "ip link set %s up"
	cmdAddrFlush = "ip addr flush dev %s"
	cmdAddrAdd   = "ip addr add %s dev %s"
	cmdRouteVia  = "ip route replace default via %s dev %s"
	cmdAddrShow  = "ip -4 addr show dev %s"
	cmdRouteShow = "ip route"
	cmdIPForward = "sysctl -w net.ipv4.ip_forward=1"

	// DHCPStartCommand kicks off the serving process baked into dhcp-server images
	DHCPStartCommand = "/usr/local/bin/start.sh"
)

const (
	defaultLeaseWindow = 15 * time.Second
	setupWindow        = 3 * time.Second
	confirmWindow      = 2 * time.Second
	startWindow        = 5 * time.Second
)

// Acquirer drives per-node address acquisition over a console: ordered DHCP strategies
// first, the static plan as fallback, explicit failure when neither applies. Firewalls
// skip the strategies entirely; the plan is their primary path.
type Acquirer struct {
	Plan        *StaticPlan
	Strategies  []Strategy
	Interfaces  []string
	LeaseWindow time.Duration
	Params      RuleParams
}

func (a *Acquirer) strategies() []Strategy {
	if len(a.Strategies) > 0 {
		return a.Strategies
	}
	return DefaultStrategies
}

func (a *Acquirer) leaseWindow() time.Duration {
	if a.LeaseWindow > 0 {
		return a.LeaseWindow
	}
	return defaultLeaseWindow
}

// interfacesFor returns the interfaces to provision on a node: an explicit override wins,
// then the plan's interfaces, then eth0.
func (a *Acquirer) interfacesFor(node string) []string {
	if len(a.Interfaces) > 0 {
		return a.Interfaces
	}
	if names := a.Plan.InterfaceNames(node); len(names) > 0 {
		return names
	}
	return []string{"eth0"}
}

// step runs one console command and records it. Steps count as failed only on a positive
// exit code; -1 means the console dropped the status token, which happens on lossy
// consoles and is not evidence of failure.
func step(c Consoler, node, command string, window time.Duration) (CommandResult, string) {
	start := time.Now()
	out, rc, err := c.RunStatus(command, window)
	res := CommandResult{
		Node:      node,
		Command:   command,
		Output:    out,
		Succeeded: err == nil && rc <= 0,
		ExitCode:  rc,
		Elapsed:   time.Since(start),
	}
	return res, out
}

// AcquireClient runs the acquisition machine for a client node across its interfaces.
// The node resolves on the first interface that leases; interfaces that lease nothing
// fall back to the plan; a node with neither fails.
func (a *Acquirer) AcquireClient(node string, c Consoler) NodeResult {
	result := NodeResult{
		Node:   node,
		Role:   RoleClient,
		Status: StatusFailed,
	}

	for _, ifname := range a.interfacesFor(node) {
		res, _ := step(c, node, fmt.Sprintf(cmdLinkUp, ifname), setupWindow)
		result.Commands = append(result.Commands, res)
		if !res.Succeeded {
			result.Error = fmt.Sprintf("could not bring up %s", ifname)
			log.WithFields(log.Fields{
				"node":  node,
				"if":    ifname,
				"func":  "Consoler.RunStatus",
				"error": result.Error,
			}).Error("interface setup failed")
			continue
		}

		ip, gw, strategy := a.tryStrategies(node, ifname, c, &result)
		if ip != nil {
			if applied := a.confirm(node, ifname, c, &result, &gw); applied != nil {
				ip = applied
			}
			if result.AssignedIP == nil {
				result.Status = StatusResolved
				result.Source = SourceLease
				result.Strategy = strategy
				result.AssignedIP = ip
				result.Gateway = a.gatewayFor(node, ifname, gw)
			}
			continue
		}

		entry, ok := a.Plan.Lookup(node, ifname)
		if !ok {
			log.WithFields(log.Fields{
				"node":  node,
				"if":    ifname,
				"error": ErrNoPlanEntry,
			}).Warning("no lease and no plan entry")
			continue
		}
		if a.applyStatic(node, ifname, entry, c, &result) && result.AssignedIP == nil {
			result.Status = StatusFallback
			result.Source = SourceStatic
			result.AssignedIP = entry.IP()
			result.Gateway = entry.Gateway
		}
	}

	if result.AssignedIP == nil && result.Error == "" {
		result.Error = "no strategy produced a lease and no plan entry applied"
	}
	if result.AssignedIP != nil {
		result.Error = ""
	}
	return result
}

// tryStrategies walks the strategy order on one interface and returns the first valid
// lease. Later strategies are never sent once one wins. A shell "not found" reply just
// moves the machine along; images missing a client are common.
func (a *Acquirer) tryStrategies(node, ifname string, c Consoler, result *NodeResult) (net.IP, net.IP, string) {
	window := a.leaseWindow()
	for _, s := range a.strategies() {
		res, out := step(c, node, s.CommandFor(ifname), window)

		ip := s.Lease(out)
		res.Succeeded = ip != nil
		result.Commands = append(result.Commands, res)

		if ip != nil {
			log.WithFields(log.Fields{
				"node":     node,
				"if":       ifname,
				"strategy": s.Name,
				"ip":       ip.String(),
			}).Info("lease acquired")
			return ip, parseDefaultVia(out), s.Name
		}
		if CommandNotFound(out) {
			log.WithFields(log.Fields{
				"node":     node,
				"if":       ifname,
				"strategy": s.Name,
			}).Debug("client binary not present")
			continue
		}
		log.WithFields(log.Fields{
			"node":     node,
			"if":       ifname,
			"strategy": s.Name,
		}).Debug("no lease from strategy")
	}
	return nil, nil, ""
}

// confirm scrapes the applied address and route table after a lease. The interface is the
// ground truth for what was actually applied; the lease literal stands only when the
// confirm output is partial, since consoles drop bytes.
func (a *Acquirer) confirm(node, ifname string, c Consoler, result *NodeResult, gw *net.IP) net.IP {
	res, addrOut := step(c, node, fmt.Sprintf(cmdAddrShow, ifname), confirmWindow)
	result.Commands = append(result.Commands, res)

	res, routeOut := step(c, node, cmdRouteShow, confirmWindow)
	result.Commands = append(result.Commands, res)

	if *gw == nil {
		*gw = parseDefaultVia(routeOut)
	}
	if applied, _, ok := parseInet(addrOut); ok {
		return applied
	}
	return nil
}

// gatewayFor applies the gateway precedence: lease output, then plan, then absent
func (a *Acquirer) gatewayFor(node, ifname string, leased net.IP) net.IP {
	if leased != nil {
		return leased
	}
	if entry, ok := a.Plan.Lookup(node, ifname); ok {
		return entry.Gateway
	}
	return nil
}

// applyStatic flushes the interface and applies the plan entry verbatim
func (a *Acquirer) applyStatic(node, ifname string, entry *PlanEntry, c Consoler, result *NodeResult) bool {
	commands := []string{
		fmt.Sprintf(cmdAddrFlush, ifname),
		fmt.Sprintf(cmdAddrAdd, entry.CIDR.String(), ifname),
	}
	if entry.Gateway != nil {
		commands = append(commands, fmt.Sprintf(cmdRouteVia, entry.Gateway, ifname))
	}

	for _, command := range commands {
		res, _ := step(c, node, command, setupWindow)
		result.Commands = append(result.Commands, res)
		if !res.Succeeded {
			log.WithFields(log.Fields{
				"node":    node,
				"if":      ifname,
				"command": command,
				"rc":      res.ExitCode,
				"func":    "Consoler.RunStatus",
			}).Error("static configuration step failed")
			return false
		}
	}

	log.WithFields(log.Fields{
		"node": node,
		"if":   ifname,
		"ip":   entry.CIDR.String(),
	}).Info("static address applied")
	return true
}

// ConfigureFirewall addresses a firewall node from the plan, enables forwarding, and
// applies the composed ruleset. Firewalls never ask for leases; scan-guard rules embed the
// node's own address, so it has to be the stable planned one.
func (a *Acquirer) ConfigureFirewall(node string, c Consoler) NodeResult {
	result := NodeResult{
		Node:   node,
		Role:   RoleFirewall,
		Status: StatusFailed,
	}

	entries := a.Plan.Entries(node)
	if len(entries) == 0 {
		result.Error = ErrNoPlanEntry.Error()
		log.WithFields(log.Fields{
			"node":  node,
			"error": ErrNoPlanEntry,
		}).Error("firewall has no static plan entries")
		return result
	}

	for _, entry := range entries {
		res, _ := step(c, node, fmt.Sprintf(cmdLinkUp, entry.Ifname), setupWindow)
		result.Commands = append(result.Commands, res)
		if !a.applyStatic(node, entry.Ifname, entry, c, &result) {
			result.Error = fmt.Sprintf("static configuration failed on %s", entry.Ifname)
			return result
		}
	}

	res, _ := step(c, node, cmdIPForward, setupWindow)
	result.Commands = append(result.Commands, res)

	primary := entries[0]
	failed := 0
	for _, rule := range ComposeFirewallRules(primary.IP(), a.Params) {
		res, _ := step(c, node, rule, setupWindow)
		result.Commands = append(result.Commands, res)
		if !res.Succeeded {
			failed++
			log.WithFields(log.Fields{
				"node": node,
				"rule": rule,
				"rc":   res.ExitCode,
			}).Error("firewall rule application failed")
		}
	}
	if failed > 0 {
		result.Error = fmt.Sprintf("%d firewall rules failed to apply", failed)
		return result
	}

	result.Status = StatusResolved
	result.Source = SourceStatic
	result.AssignedIP = primary.IP()
	result.Gateway = primary.Gateway
	log.WithFields(log.Fields{
		"node": node,
		"ip":   primary.IP().String(),
	}).Info("firewall configured")
	return result
}

// StartDHCPServer kicks off the serving process on a dhcp-server node. Servers start
// before any client asks for a lease; the provisioner handles the ordering.
func (a *Acquirer) StartDHCPServer(node string, c Consoler) NodeResult {
	result := NodeResult{
		Node: node,
		Role: RoleDHCP,
	}

	res, out := step(c, node, DHCPStartCommand, startWindow)
	result.Commands = append(result.Commands, res)

	if CommandNotFound(out) {
		result.Status = StatusFailed
		result.Error = "start script not present"
		log.WithFields(log.Fields{
			"node":    node,
			"command": DHCPStartCommand,
		}).Error("dhcp server start script missing")
		return result
	}
	if !res.Succeeded {
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("start script exited %d", res.ExitCode)
		return result
	}

	result.Status = StatusStarted
	log.WithFields(log.Fields{"node": node}).Info("dhcp server started")
	return result
}
