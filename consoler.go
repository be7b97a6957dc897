package ae3gis

import "time"

type (
	// Consoler is an interface that allows for conversation with a node over its
	// console. Reads are always bounded; elapsing a window is a normal outcome and
	// callers scrape whatever was captured.
	Consoler interface {
		Run(command string, window time.Duration) (string, error)
		RunStatus(command string, window time.Duration) (string, int, error)
		Close() error
	}

	// ConsoleDialer opens a console session to an endpoint. The dispatcher holds one so
	// tests can hand jobs scripted consoles instead of TCP connections.
	ConsoleDialer func(host string, port int, timeout time.Duration) (Consoler, error)
)
