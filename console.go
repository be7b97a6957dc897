package ae3gis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	uuid "github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ziutek/telnet"
)

const (
	// console newline. GNS3 consoles want a bare carriage return.
	consoleNewline = "\r"
	// readSlice bounds each blocking read so a window can be honored
	readSlice = 500 * time.Millisecond
	// bannerWindow drains the prompt replay consoles emit on attach
	bannerWindow = 250 * time.Millisecond
	// drainWindow eats the prompt echo after a status token
	drainWindow = 200 * time.Millisecond
	// consoleWriteTimeout bounds command sends
	consoleWriteTimeout = 5 * time.Second
)

// TelnetConsole is a Consoler over a live telnet connection to a node's console
type TelnetConsole struct {
	conn *telnet.Conn
	addr string
	mu   sync.Mutex
	once sync.Once
	cerr error
}

// DialConsole opens a console session and drains the banner the console replays on attach
func DialConsole(host string, port int, timeout time.Duration) (*TelnetConsole, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := telnet.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &ConnectError{Host: host, Port: port, Err: err}
	}

	c := &TelnetConsole{
		conn: conn,
		addr: addr,
	}
	if banner, _ := c.readFor(bannerWindow); banner != "" {
		log.WithFields(log.Fields{
			"console": addr,
			"bytes":   len(banner),
		}).Debug("drained console banner")
	}
	return c, nil
}

// DefaultDialer is the ConsoleDialer used when a Dispatcher is not given one
var DefaultDialer ConsoleDialer = func(host string, port int, timeout time.Duration) (Consoler, error) {
	return DialConsole(host, port, timeout)
}

// Addr returns the dialed endpoint
func (c *TelnetConsole) Addr() string {
	return c.addr
}

func (c *TelnetConsole) sendLine(command string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(consoleWriteTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte(command + consoleNewline))
	return err
}

// readFor reads whatever the console emits until the window elapses. Partial output is the
// normal return; EOF just ends the capture early.
func (c *TelnetConsole) readFor(window time.Duration) (string, error) {
	var buf bytes.Buffer
	b := make([]byte, 4096)
	deadline := time.Now().Add(window)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		slice := readSlice
		if remaining < slice {
			slice = remaining
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(slice)); err != nil {
			return buf.String(), err
		}

		n, err := c.conn.Read(b)
		if n > 0 {
			buf.Write(b[:n])
		}
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return buf.String(), err
		}
	}
	return buf.String(), nil
}

// Run sends a command and captures everything the console emits within the window
func (c *TelnetConsole) Run(command string, window time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendLine(command); err != nil {
		return "", err
	}
	out, err := c.readFor(window)
	log.WithFields(log.Fields{
		"console": c.addr,
		"command": command,
		"bytes":   len(out),
	}).Debug("console command ran")
	return out, err
}

// RunStatus sends a command wrapped with a unique status token and reads until the token
// echoes back with the exit code or the window elapses. The exit code is -1 when the token
// never showed, which callers treat as unknown rather than failed.
func (c *TelnetConsole) RunStatus(command string, window time.Duration) (string, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := "__END__" + strings.Replace(uuid.New(), "-", "", -1) + "__"
	wrapped := fmt.Sprintf("%s; rc=$?; echo %s $rc", command, token)
	if err := c.sendLine(wrapped); err != nil {
		return "", -1, err
	}

	// the echoed command also contains the token, but with a literal $rc after it, so
	// only the expanded line matches
	re := regexp.MustCompile(regexp.QuoteMeta(token) + `\s+(\d+)`)

	var buf bytes.Buffer
	b := make([]byte, 4096)
	rc := -1
	deadline := time.Now().Add(window)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		slice := readSlice
		if remaining < slice {
			slice = remaining
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(slice)); err != nil {
			return stripTokenLines(buf.String(), token), rc, err
		}

		n, err := c.conn.Read(b)
		if n > 0 {
			buf.Write(b[:n])
			if m := re.FindStringSubmatch(buf.String()); m != nil {
				rc, _ = strconv.Atoi(m[1])
				if tail, _ := c.readFor(drainWindow); tail != "" {
					buf.WriteString(tail)
				}
				break
			}
		}
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return stripTokenLines(buf.String(), token), rc, err
		}
	}

	log.WithFields(log.Fields{
		"console": c.addr,
		"command": command,
		"rc":      rc,
	}).Debug("console command ran with status")
	return stripTokenLines(buf.String(), token), rc, nil
}

// Close sends a courtesy exit so the console is free for humans, then closes the
// connection. Safe to call more than once and while a read is in flight, which is how the
// dispatcher unblocks a job stuck past its deadline.
func (c *TelnetConsole) Close() error {
	c.once.Do(func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = c.conn.Write([]byte("exit" + consoleNewline))
		c.cerr = c.conn.Close()
	})
	return c.cerr
}

// stripTokenLines drops the wrapped command echo and the status line from captured output
func stripTokenLines(out, token string) string {
	if !strings.Contains(out, token) {
		return out
	}
	lines := strings.Split(out, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, token) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
