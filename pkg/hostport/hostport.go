// Package hostport normalizes the console endpoints recorded in fleet configs. Topology
// builders store whatever the GNS3 server reported, which in practice has included
// wildcard binds, full URLs, and bracketed IPv6 literals.
package hostport

import (
	"errors"
	"net"
	"strings"
)

// Split splits a network address of the form "host", "host:port", "[host]",
// "[host]:port", "[ipv6-host%zone]", or "[ipv6-host%zone]:port" into host or
// ipv6-host%zone and port. Port will be an empty string if not supplied.
func Split(hostport string) (host string, port string, err error) {
	var rawport string

	if len(hostport) == 0 {
		return
	}

	// Limit literal brackets to max one open and one closed
	openPos := strings.Index(hostport, "[")
	if openPos != strings.LastIndex(hostport, "[") {
		err = errors.New("too many '['")
		return
	}
	closePos := strings.Index(hostport, "]")
	if closePos != strings.LastIndex(hostport, "]") {
		err = errors.New("too many ']'")
		return
	}

	// Break into host and port parts based on literal brackets
	if openPos > -1 {
		// Needs to open with the '['
		if openPos != 0 {
			err = errors.New("nothing can come before '['")
			return
		}
		// Must have a matching ']'
		if closePos == -1 {
			err = errors.New("missing ']'")
			return
		}
		host = hostport[1:closePos]
		rawport = hostport[closePos+1:]
	} else if closePos > -1 {
		// Did not have a matching '['
		err = errors.New("missing '['")
		return
	} else {
		// No literal brackets, split on the last :
		splitPos := strings.LastIndex(hostport, ":")
		if splitPos < 0 {
			host = hostport
		} else {
			host = hostport[0:splitPos]
			rawport = hostport[splitPos:]
		}
	}

	if rawport != "" {
		if strings.LastIndex(rawport, ":") != 0 {
			err = errors.New("poorly separated or formatted port")
			return
		}
		port = rawport[1:]
	}
	return
}

// Clean extracts a dialable host from a stored console host. Scheme and path junk is
// stripped, bracketed hosts are unwrapped, and values that cannot be dialed, empty
// strings and wildcard binds, come back as "".
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}

	// bare IP literals skip the port split; bare IPv6 would confuse it
	if ip := net.ParseIP(s); ip != nil {
		if ip.IsUnspecified() {
			return ""
		}
		return s
	}

	host, _, err := Split(s)
	if err != nil || host == "" {
		host = s
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return ""
	}
	return host
}

// Resolve picks the console host to dial: a cleaned override wins, then the cleaned
// stored host, then the local GNS3 server default.
func Resolve(override, stored string) string {
	if host := Clean(override); host != "" {
		return host
	}
	if host := Clean(stored); host != "" {
		return host
	}
	return "127.0.0.1"
}
