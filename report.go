package ae3gis

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"time"

	uuid "github.com/pborman/uuid"
)

// Statuses a node can end a run with
const (
	// StatusResolved means the node got an address down its primary path
	StatusResolved = "resolved"
	// StatusFallback means every DHCP strategy failed and the static plan filled in
	StatusFallback = "fallback"
	// StatusFailed means no address could be resolved or a required step broke
	StatusFailed = "failed"
	// StatusTimeout means the node's job ran past its deadline and was abandoned
	StatusTimeout = "timeout"
	// StatusSkipped means the node was never dialed (switches, overwrite-protected pushes)
	StatusSkipped = "skipped"
	// StatusStarted means a dhcp-server node had its serving process kicked off
	StatusStarted = "started"
	// StatusDone means a script job ran to completion
	StatusDone = "done"
)

// Where a resolved address came from
const (
	SourceLease  = "lease"
	SourceStatic = "static"
)

type (
	// CommandResult is one console interaction during a run
	CommandResult struct {
		Node      string        `json:"node"`
		Command   string        `json:"command"`
		Output    string        `json:"output,omitempty"`
		Succeeded bool          `json:"succeeded"`
		ExitCode  int           `json:"exit_code"`
		Elapsed   time.Duration `json:"elapsed"`
	}

	// NodeResult is the aggregated outcome for one node. Results are keyed by node name,
	// never by position, since the dispatcher completes them out of order.
	NodeResult struct {
		Node       string          `json:"node"`
		Role       Role            `json:"role,omitempty"`
		Status     string          `json:"status"`
		Source     string          `json:"source,omitempty"`
		Strategy   string          `json:"strategy,omitempty"`
		AssignedIP net.IP          `json:"assigned_ip,omitempty"`
		Gateway    net.IP          `json:"gateway,omitempty"`
		Error      string          `json:"error,omitempty"`
		Commands   []CommandResult `json:"commands,omitempty"`
	}

	// RunReport is the complete record of one run, one entry per targeted node
	RunReport struct {
		ID         string       `json:"id"`
		Kind       string       `json:"kind"`
		StartedAt  time.Time    `json:"started_at"`
		FinishedAt time.Time    `json:"finished_at"`
		Nodes      []NodeResult `json:"nodes"`
	}
)

// NewRunReport creates a report shell with a fresh run id
func NewRunReport(kind string) *RunReport {
	return &RunReport{
		ID:        uuid.New(),
		Kind:      kind,
		StartedAt: time.Now(),
	}
}

// Finish stamps the completion time
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Result fetches a node's entry by name
func (r *RunReport) Result(node string) *NodeResult {
	for i := range r.Nodes {
		if r.Nodes[i].Node == node {
			return &r.Nodes[i]
		}
	}
	return nil
}

// Counts tallies entries by status
func (r *RunReport) Counts() map[string]int {
	counts := make(map[string]int)
	for i := range r.Nodes {
		counts[r.Nodes[i].Status]++
	}
	return counts
}

// Failed reports whether any node ended the run failed or timed out
func (r *RunReport) Failed() bool {
	for i := range r.Nodes {
		switch r.Nodes[i].Status {
		case StatusFailed, StatusTimeout:
			return true
		}
	}
	return false
}

// Write persists the report with the same temp-and-rename discipline as the config store,
// so a crash mid-write never leaves a torn report behind.
func (r *RunReport) Write(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return &PersistenceError{Op: "tempfile", Path: path, Err: err}
	}

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return &PersistenceError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return &PersistenceError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// LoadRunReport reads a previously written report
func LoadRunReport(path string) (*RunReport, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := &RunReport{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return r, nil
}
