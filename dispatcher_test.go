package ae3gis_test

import (
	"encoding/json"
	"testing"
	"time"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	"github.com/TollanBerhanu/ae3gis-gns3-api/internal/tests/common"
	metrics "github.com/armon/go-metrics"
	mapsink "github.com/bakins/go-metrics-map"
	"github.com/stretchr/testify/suite"
)

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

type DispatcherSuite struct {
	common.Suite
}

// stubJob is a minimal Job for exercising the pool
type stubJob struct {
	name     string
	host     string
	port     int
	deadline time.Duration
	execute  func(c ae3gis.Consoler) ae3gis.NodeResult
}

func (j *stubJob) Name() string            { return j.name }
func (j *stubJob) Kind() string            { return "test" }
func (j *stubJob) Endpoint() (string, int) { return j.host, j.port }
func (j *stubJob) Deadline() time.Duration { return j.deadline }
func (j *stubJob) Execute(c ae3gis.Consoler) ae3gis.NodeResult {
	return j.execute(c)
}

func (s *DispatcherSuite) doneJob(name string, port int) *stubJob {
	return &stubJob{
		name: name,
		host: "127.0.0.1",
		port: port,
		execute: func(c ae3gis.Consoler) ae3gis.NodeResult {
			_, _ = c.Run("echo "+name, time.Minute)
			return ae3gis.NodeResult{Node: name, Status: ae3gis.StatusDone}
		},
	}
}

func (s *DispatcherSuite) TestRunEmpty() {
	d := &ae3gis.Dispatcher{Dialer: s.Dialer()}
	s.Nil(d.Run(nil))
	s.Empty(s.Dialed)
}

func (s *DispatcherSuite) TestRunKeepsInputOrder() {
	names := []string{"Workstation-1", "Workstation-2", "Workstation-3", "Workstation-4", "Workstation-5"}
	jobs := make([]ae3gis.Job, 0, len(names))
	for i, name := range names {
		port := 5100 + i
		s.Console(port)
		jobs = append(jobs, s.doneJob(name, port))
	}

	d := &ae3gis.Dispatcher{Dialer: s.Dialer(), Concurrency: 2}
	results := d.Run(jobs)

	s.Require().Len(results, len(names))
	for i, name := range names {
		s.Equal(name, results[i].Node)
		s.Equal(ae3gis.StatusDone, results[i].Status)
	}
}

func (s *DispatcherSuite) TestRunDialFailure() {
	// port 5999 has no scripted console, so the dial fails
	jobs := []ae3gis.Job{s.doneJob("Unreachable-1", 5999)}

	d := &ae3gis.Dispatcher{Dialer: s.Dialer()}
	results := d.Run(jobs)

	s.Require().Len(results, 1)
	s.Equal(ae3gis.StatusFailed, results[0].Status)
	s.Contains(results[0].Error, "connect")
	s.Equal(1, s.DialCount(5999))
}

func (s *DispatcherSuite) TestRunNoEndpointSkipsDial() {
	job := &stubJob{
		name: "Switch-1",
		execute: func(c ae3gis.Consoler) ae3gis.NodeResult {
			s.Nil(c, "jobs without an endpoint run consoleless")
			return ae3gis.NodeResult{Node: "Switch-1", Status: ae3gis.StatusSkipped}
		},
	}

	d := &ae3gis.Dispatcher{Dialer: s.Dialer()}
	results := d.Run([]ae3gis.Job{job})

	s.Require().Len(results, 1)
	s.Equal(ae3gis.StatusSkipped, results[0].Status)
	s.Empty(s.Dialed)
}

func (s *DispatcherSuite) TestRunDeadlineIsolation() {
	hung := s.Console(5001)
	hung.HangOn("sleep")
	s.Console(5002, ae3gis.StubReply{Match: "echo", Output: "ok", RC: 0})

	jobs := []ae3gis.Job{
		&stubJob{
			name:     "Stuck-1",
			host:     "127.0.0.1",
			port:     5001,
			deadline: 50 * time.Millisecond,
			execute: func(c ae3gis.Consoler) ae3gis.NodeResult {
				_, _ = c.Run("sleep 600", time.Minute)
				return ae3gis.NodeResult{Node: "Stuck-1", Status: ae3gis.StatusDone}
			},
		},
		s.doneJob("Fine-1", 5002),
	}

	d := &ae3gis.Dispatcher{Dialer: s.Dialer(), Concurrency: 2}
	results := d.Run(jobs)

	s.Require().Len(results, 2)
	s.Equal(ae3gis.StatusTimeout, results[0].Status)
	s.Equal(ae3gis.ErrJobTimeout.Error(), results[0].Error)
	s.Equal(ae3gis.StatusDone, results[1].Status, "a stuck neighbor never disturbs other nodes")
}

func (s *DispatcherSuite) TestRunDefaultDeadline() {
	port := 5050
	s.Console(port)
	job := s.doneJob("Workstation-1", port)
	job.deadline = 0 // falls back to the default

	d := &ae3gis.Dispatcher{Dialer: s.Dialer()}
	results := d.Run([]ae3gis.Job{job})
	s.Equal(ae3gis.StatusDone, results[0].Status)
}

func (s *DispatcherSuite) TestRunMetrics() {
	sink := mapsink.New()
	conf := metrics.DefaultConfig("ae3gis-test")
	conf.EnableHostname = false
	conf.EnableRuntimeMetrics = false
	m, err := metrics.New(conf, sink)
	s.Require().NoError(err)

	s.Console(5060)
	d := &ae3gis.Dispatcher{Dialer: s.Dialer(), Metrics: m}
	_ = d.Run([]ae3gis.Job{s.doneJob("Workstation-1", 5060)})

	b, err := json.Marshal(sink)
	s.Require().NoError(err)
	s.Contains(string(b), "dispatch.test.count")
	s.Contains(string(b), "dispatch.test.time")
}
