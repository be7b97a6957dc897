package hostport_test

import (
	"strings"
	"testing"

	"github.com/TollanBerhanu/ae3gis-gns3-api/pkg/hostport"
	h "github.com/bakins/test-helpers"
)

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		hostport string
		errMsg   string
	}{
		{"[loca[lhost]:1234", "too many '['"},
		{"[loca]lhost]:1234", "too many ']'"},
		{"[localhost", "missing ']'"},
		{"localhost]", "missing '['"},
		{"x[localhost]:1234", "nothing can come before '['"},
		{"[localhost]1234", "poorly separated or formatted port"},
	}

	for _, test := range tests {
		_, _, err := hostport.Split(test.hostport)
		h.Assert(t, err != nil, "expected error for "+test.hostport)
		h.Assert(t, strings.Contains(err.Error(), test.errMsg), "wrong error for "+test.hostport)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		raw  string
		host string
	}{
		{"", ""},
		{"   ", ""},
		{"0.0.0.0", ""},
		{"::", ""},
		{"[::]:5000", ""},
		{"127.0.0.1", "127.0.0.1"},
		{"192.168.122.205", "192.168.122.205"},
		{"2001:db8::1", "2001:db8::1"},
		{"[2001:db8::1]:5000", "2001:db8::1"},
		{"gns3.lab", "gns3.lab"},
		{"gns3.lab:5000", "gns3.lab"},
		{"http://gns3.lab:3080/v2/projects", "gns3.lab"},
		{"https://172.16.0.9/", "172.16.0.9"},
	}

	for _, test := range tests {
		h.Equals(t, test.host, hostport.Clean(test.raw))
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		override string
		stored   string
		host     string
	}{
		{"gns3.lab", "10.0.0.9", "gns3.lab"},
		{"http://gns3.lab:3080", "10.0.0.9", "gns3.lab"},
		{"", "10.0.0.9", "10.0.0.9"},
		{"0.0.0.0", "10.0.0.9", "10.0.0.9"},
		{"", "0.0.0.0", "127.0.0.1"},
		{"", "", "127.0.0.1"},
	}

	for _, test := range tests {
		h.Equals(t, test.host, hostport.Resolve(test.override, test.stored))
	}
}
