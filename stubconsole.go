package ae3gis

import (
	"errors"
	"strings"
	"sync"
	"time"
)

type (
	// StubReply is a canned response for commands containing Match
	StubReply struct {
		Match  string
		Output string
		RC     int
	}

	// StubConsole is a Consoler with scripted replies for testing. Commands are matched
	// against the reply table in order; unmatched commands behave like a silent console,
	// an empty capture after the window elapses.
	StubConsole struct {
		mu      sync.Mutex
		replies []StubReply
		hangOn  string
		failOn  string
		calls   []string
		closed  chan struct{}
		once    sync.Once
	}
)

// NewStubConsole creates a new StubConsole with the given reply table
func NewStubConsole(replies ...StubReply) *StubConsole {
	return &StubConsole{
		replies: replies,
		closed:  make(chan struct{}),
	}
}

// HangOn makes Run and RunStatus block on matching commands until the console is closed
func (c *StubConsole) HangOn(match string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangOn = match
}

// FailOn makes Run and RunStatus fail on matching commands
func (c *StubConsole) FailOn(match string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOn = match
}

// Calls returns a copy of every command sent so far
func (c *StubConsole) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := make([]string, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// CallsMatching counts sent commands containing match
func (c *StubConsole) CallsMatching(match string) int {
	count := 0
	for _, call := range c.Calls() {
		if strings.Contains(call, match) {
			count++
		}
	}
	return count
}

func (c *StubConsole) record(command string) (hang bool, fail bool, reply *StubReply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, command)
	if c.hangOn != "" && strings.Contains(command, c.hangOn) {
		return true, false, nil
	}
	if c.failOn != "" && strings.Contains(command, c.failOn) {
		return false, true, nil
	}
	for i := range c.replies {
		if strings.Contains(command, c.replies[i].Match) {
			return false, false, &c.replies[i]
		}
	}
	return false, false, nil
}

// Run sends a command and returns its scripted output
func (c *StubConsole) Run(command string, window time.Duration) (string, error) {
	out, _, err := c.RunStatus(command, window)
	return out, err
}

// RunStatus sends a command and returns its scripted output and exit code. Unmatched
// commands report -1, the same as a real console that never echoed the status token.
func (c *StubConsole) RunStatus(command string, window time.Duration) (string, int, error) {
	select {
	case <-c.closed:
		return "", -1, errors.New("console closed")
	default:
	}

	hang, fail, reply := c.record(command)
	if hang {
		<-c.closed
		return "", -1, errors.New("console closed")
	}
	if fail {
		return "", -1, errors.New("stub console failure")
	}
	if reply == nil {
		return "", -1, nil
	}
	return reply.Output, reply.RC, nil
}

// Close releases anything blocked in a hanging command. Safe to call more than once.
func (c *StubConsole) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}
