package ae3gis

import (
	"time"

	metrics "github.com/armon/go-metrics"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"
)

const (
	// DefaultConcurrency bounds simultaneous console sessions when the caller does not
	DefaultConcurrency = 16
	// DefaultJobDeadline bounds a whole per-node workflow
	DefaultJobDeadline = 3 * time.Minute

	defaultConnectTimeout = 10 * time.Second
)

type (
	// Job is one node's unit of work. The dispatcher owns dialing; Execute gets a live
	// console and must not retain it. Jobs with an empty endpoint host are executed
	// without a console (switch skips resolve themselves).
	Job interface {
		Name() string
		Kind() string
		Endpoint() (string, int)
		Deadline() time.Duration
		Execute(c Consoler) NodeResult
	}

	// Dispatcher fans jobs out to a bounded worker pool, one console session per node at
	// a time. A job failing, hanging, or panicking the console never disturbs its
	// neighbors; every job lands in the result slice exactly once, in input order.
	Dispatcher struct {
		Dialer         ConsoleDialer
		ConnectTimeout time.Duration
		Concurrency    int
		Metrics        *metrics.Metrics
	}
)

type indexedJob struct {
	index int
	job   Job
}

// Run executes every job and returns one result per job in input order. An empty job
// list is a no-op, not an error.
func (d *Dispatcher) Run(jobs []Job) []NodeResult {
	if len(jobs) == 0 {
		return nil
	}

	workers := d.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]NodeResult, len(jobs))
	jobCh := make(chan indexedJob)

	var t tomb.Tomb
	for w := 0; w < workers; w++ {
		t.Go(func() error {
			for ij := range jobCh {
				results[ij.index] = d.runOne(ij.job)
			}
			return nil
		})
	}

	for i, job := range jobs {
		jobCh <- indexedJob{index: i, job: job}
	}
	close(jobCh)
	_ = t.Wait()

	return results
}

// runOne dials, executes, and bounds a single job. On deadline the console is slammed
// shut to unblock any pending read and the node is abandoned with a timeout result; the
// worker moves on while the orphaned goroutine drains into its buffered channel.
func (d *Dispatcher) runOne(job Job) NodeResult {
	start := time.Now()
	d.count(job.Kind(), "count")
	defer func() {
		if d.Metrics != nil {
			d.Metrics.MeasureSince([]string{"dispatch", job.Kind(), "time"}, start)
		}
	}()

	host, port := job.Endpoint()
	if host == "" {
		return job.Execute(nil)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}
	connectTimeout := d.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	console, err := dialer(host, port, connectTimeout)
	if err != nil {
		d.count(job.Kind(), "error")
		log.WithFields(log.Fields{
			"error": err,
			"func":  "ConsoleDialer",
			"node":  job.Name(),
			"host":  host,
			"port":  port,
		}).Error("could not reach console")
		return NodeResult{
			Node:   job.Name(),
			Role:   Classify(job.Name()),
			Status: StatusFailed,
			Error:  err.Error(),
		}
	}

	done := make(chan NodeResult, 1)
	go func() {
		done <- job.Execute(console)
	}()

	deadline := job.Deadline()
	if deadline <= 0 {
		deadline = DefaultJobDeadline
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case result := <-done:
		_ = console.Close()
		if result.Status == StatusFailed {
			d.count(job.Kind(), "error")
		}
		log.WithFields(log.Fields{
			"node":   job.Name(),
			"kind":   job.Kind(),
			"status": result.Status,
		}).Debug("job finished")
		return result
	case <-timer.C:
		_ = console.Close()
		d.count(job.Kind(), "timeout")
		log.WithFields(log.Fields{
			"node":     job.Name(),
			"kind":     job.Kind(),
			"deadline": deadline,
		}).Warning("job deadline exceeded, node abandoned")
		return NodeResult{
			Node:   job.Name(),
			Role:   Classify(job.Name()),
			Status: StatusTimeout,
			Error:  ErrJobTimeout.Error(),
		}
	}
}

func (d *Dispatcher) count(kind, event string) {
	if d.Metrics != nil {
		d.Metrics.IncrCounter([]string{"dispatch", kind, event}, 1)
	}
}
