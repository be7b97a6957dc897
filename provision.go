package ae3gis

import (
	"fmt"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

const defaultWarmup = 3 * time.Second

type (
	// Options tunes a provisioning run
	Options struct {
		// HostOverride replaces every stored console host, for orchestrators running
		// off-box from the GNS3 server
		HostOverride string
		// Only restricts the run to the named nodes
		Only []string
		// Interfaces overrides the per-node interface list
		Interfaces []string
		// LeaseWindow bounds each DHCP strategy's console capture
		LeaseWindow time.Duration
		// Warmup is the pause between starting dhcp-servers and asking clients to lease
		Warmup time.Duration
		// Concurrency bounds simultaneous console sessions
		Concurrency int
		// JobDeadline bounds each node's whole workflow
		JobDeadline time.Duration
		// Params tunes the firewall scan-guard throttles
		Params RuleParams
	}

	// Provisioner runs address acquisition across a fleet: dhcp-servers first, a warmup
	// pause, then clients and firewalls concurrently, with results merged back into the
	// store and a complete report either way.
	Provisioner struct {
		Store   *Store
		Plan    *StaticPlan
		Dialer  ConsoleDialer
		Metrics *metrics.Metrics
		Options Options
	}

	// provisionJob is one node's provisioning work, dispatched by role
	provisionJob struct {
		node     *Node
		role     Role
		host     string
		port     int
		acquirer *Acquirer
		deadline time.Duration
	}
)

// Name implements Job
func (j *provisionJob) Name() string {
	return j.node.Name
}

// Kind implements Job
func (j *provisionJob) Kind() string {
	switch j.role {
	case RoleDHCP:
		return "start"
	case RoleSwitch:
		return "skip"
	default:
		return "acquire"
	}
}

// Endpoint implements Job. Switches report no endpoint and are never dialed.
func (j *provisionJob) Endpoint() (string, int) {
	if j.role == RoleSwitch {
		return "", 0
	}
	return j.host, j.port
}

// Deadline implements Job
func (j *provisionJob) Deadline() time.Duration {
	return j.deadline
}

// Execute implements Job
func (j *provisionJob) Execute(c Consoler) NodeResult {
	switch j.role {
	case RoleSwitch:
		return NodeResult{
			Node:   j.node.Name,
			Role:   RoleSwitch,
			Status: StatusSkipped,
		}
	case RoleDHCP:
		return j.acquirer.StartDHCPServer(j.node.Name, c)
	case RoleFirewall:
		return j.acquirer.ConfigureFirewall(j.node.Name, c)
	default:
		return j.acquirer.AcquireClient(j.node.Name, c)
	}
}

// Run provisions the fleet and returns the complete report. Per-node failures live in the
// report; the returned error covers orchestration-level problems like unknown --only names
// or a failed config save.
func (p *Provisioner) Run() (*RunReport, error) {
	cfg := p.Store.Fleet()
	targets, err := p.targets(cfg)
	if err != nil {
		return nil, err
	}

	acquirer := &Acquirer{
		Plan:        p.Plan,
		Interfaces:  p.Options.Interfaces,
		LeaseWindow: p.Options.LeaseWindow,
		Params:      p.Options.Params,
	}

	var serverJobs, otherJobs []Job
	for _, n := range targets {
		job := &provisionJob{
			node:     n,
			role:     n.Role(),
			acquirer: acquirer,
			deadline: p.Options.JobDeadline,
		}
		if job.role != RoleSwitch {
			host, port, err := n.ConsoleTarget(p.Options.HostOverride)
			if err != nil {
				return nil, err
			}
			job.host, job.port = host, port
		}
		if job.role == RoleDHCP {
			serverJobs = append(serverJobs, job)
		} else {
			otherJobs = append(otherJobs, job)
		}
	}

	dispatcher := &Dispatcher{
		Dialer:      p.Dialer,
		Concurrency: p.Options.Concurrency,
		Metrics:     p.Metrics,
	}

	report := NewRunReport("provision")

	log.WithFields(log.Fields{
		"run":     report.ID,
		"servers": len(serverJobs),
		"others":  len(otherJobs),
	}).Info("provisioning run starting")

	report.Nodes = append(report.Nodes, dispatcher.Run(serverJobs)...)

	if len(serverJobs) > 0 && len(otherJobs) > 0 {
		warmup := p.Options.Warmup
		if warmup <= 0 {
			warmup = defaultWarmup
		}
		log.WithFields(log.Fields{
			"run":    report.ID,
			"warmup": warmup,
		}).Info("waiting for dhcp servers to settle")
		time.Sleep(warmup)
	}

	report.Nodes = append(report.Nodes, dispatcher.Run(otherJobs)...)
	report.Finish()

	var errs *multierror.Error
	if err := p.merge(report); err != nil {
		errs = multierror.Append(errs, err)
	}

	log.WithFields(log.Fields{
		"run":    report.ID,
		"counts": report.Counts(),
	}).Info("provisioning run finished")
	return report, errs.ErrorOrNil()
}

// targets resolves the run's node list, honoring Options.Only. Unknown names abort before
// anything is dialed.
func (p *Provisioner) targets(cfg *FleetConfig) (Nodes, error) {
	if len(p.Options.Only) == 0 {
		return cfg.Nodes, nil
	}

	var errs *multierror.Error
	targets := make(Nodes, 0, len(p.Options.Only))
	for _, name := range p.Options.Only {
		n := cfg.FindNode(name)
		if n == nil {
			errs = multierror.Append(errs, fmt.Errorf("unknown node %q", name))
			continue
		}
		targets = append(targets, n)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return targets, nil
}

// merge folds run results back into the store. Nodes that resolved get their address and
// gateway recorded; acquisition nodes that failed or timed out get stale assignments
// cleared so the config never claims an address nobody holds. The file is written once,
// and only when something changed.
func (p *Provisioner) merge(report *RunReport) error {
	changed := false
	for i := range report.Nodes {
		res := &report.Nodes[i]

		var mutate func(*Node) error
		switch {
		case res.AssignedIP != nil:
			mutate = func(n *Node) error {
				if !n.AssignedIP.Equal(res.AssignedIP) || !n.Gateway.Equal(res.Gateway) {
					n.AssignedIP = res.AssignedIP
					n.Gateway = res.Gateway
					changed = true
				}
				return nil
			}
		case res.Status == StatusFailed || res.Status == StatusTimeout:
			if res.Role == RoleDHCP {
				continue
			}
			mutate = func(n *Node) error {
				if n.AssignedIP != nil || n.Gateway != nil {
					n.AssignedIP = nil
					n.Gateway = nil
					changed = true
				}
				return nil
			}
		default:
			continue
		}

		if err := p.Store.UpdateNode(res.Node, mutate); err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"func":  "Store.UpdateNode",
				"node":  res.Node,
			}).Error("could not record result")
			return err
		}
	}

	if !changed {
		return nil
	}
	return p.Store.Save()
}
