package ae3gis_test

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	ae3gis "github.com/TollanBerhanu/ae3gis-gns3-api"
	"github.com/stretchr/testify/suite"
)

func TestScriptSuite(t *testing.T) {
	suite.Run(t, new(ScriptSuite))
}

type ScriptSuite struct {
	suite.Suite
}

// rebuiltUpload reassembles the chunks a console saw back into the decoded content
func (s *ScriptSuite) rebuiltUpload(console *ae3gis.StubConsole) []byte {
	const pre = "printf '%s' '"
	const post = "' >> "

	var encoded strings.Builder
	for _, call := range console.Calls() {
		i := strings.Index(call, pre)
		j := strings.LastIndex(call, post)
		if i < 0 || j < 0 {
			continue
		}
		encoded.WriteString(call[i+len(pre) : j])
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded.String())
	s.Require().NoError(err)
	return decoded
}

func (s *ScriptSuite) TestUploadAndRun() {
	console := ae3gis.NewStubConsole(
		ae3gis.StubReply{Match: "test -e", Output: "", RC: 1},
	)

	content := bytes.Repeat([]byte("configure me\n"), 250)
	job := &ae3gis.ScriptJob{
		Node:           "Workstation-1",
		Content:        content,
		RemotePath:     "/opt/lab/setup.sh",
		RunAfterUpload: true,
		Executable:     true,
	}

	res := job.Execute(console)
	s.Equal(ae3gis.StatusDone, res.Status)
	s.Empty(res.Error)

	// chunked transfer: every chunk within the console-safe size, content intact
	encodedLen := base64.StdEncoding.EncodedLen(len(content))
	expectedChunks := (encodedLen + 1023) / 1024
	s.Equal(expectedChunks, console.CallsMatching("printf '%s'"))
	s.Equal(content, s.rebuiltUpload(console))

	s.Equal(1, console.CallsMatching("mkdir -p /opt/lab"))
	s.Equal(1, console.CallsMatching("base64 -d"))
	s.Equal(1, console.CallsMatching("chmod +x /opt/lab/setup.sh"))
	s.Equal(2, console.CallsMatching("rm -f /tmp/.push-"))
	s.Equal(1, console.CallsMatching("sh /opt/lab/setup.sh"))
}

func (s *ScriptSuite) TestUploadWithoutRun() {
	console := ae3gis.NewStubConsole(
		ae3gis.StubReply{Match: "test -e", Output: "", RC: 1},
	)

	job := &ae3gis.ScriptJob{
		Node:       "Workstation-1",
		Content:    []byte("#!/bin/sh\necho hi\n"),
		RemotePath: "/opt/lab/setup.sh",
	}

	res := job.Execute(console)
	s.Equal(ae3gis.StatusDone, res.Status)
	s.Equal(0, console.CallsMatching("sh /opt/lab/setup.sh"))
	s.Equal(0, console.CallsMatching("chmod"), "scripts are not executable unless asked")
}

func (s *ScriptSuite) TestUploadSkipsExisting() {
	console := ae3gis.NewStubConsole(
		ae3gis.StubReply{Match: "test -e", Output: "", RC: 0},
	)

	job := &ae3gis.ScriptJob{
		Node:       "Workstation-1",
		Content:    []byte("echo hi"),
		RemotePath: "/opt/lab/setup.sh",
	}

	res := job.Execute(console)
	s.Equal(ae3gis.StatusSkipped, res.Status)
	s.Contains(res.Error, "overwrite is disabled")
	s.Equal(0, console.CallsMatching("printf"))
	s.Equal(0, console.CallsMatching("base64"))
}

func (s *ScriptSuite) TestUploadOverwrite() {
	console := ae3gis.NewStubConsole()

	job := &ae3gis.ScriptJob{
		Node:       "Workstation-1",
		Content:    []byte("echo hi"),
		RemotePath: "/opt/lab/setup.sh",
		Overwrite:  true,
	}

	res := job.Execute(console)
	s.Equal(ae3gis.StatusDone, res.Status)
	s.Equal(0, console.CallsMatching("test -e"), "overwrite skips the existence probe")
	s.Equal(1, console.CallsMatching("printf"))
}

func (s *ScriptSuite) TestUploadStepFailure() {
	console := ae3gis.NewStubConsole(
		ae3gis.StubReply{Match: "test -e", Output: "", RC: 1},
		ae3gis.StubReply{Match: "base64 -d", Output: "base64: invalid input", RC: 1},
	)

	job := &ae3gis.ScriptJob{
		Node:           "Workstation-1",
		Content:        []byte("echo hi"),
		RemotePath:     "/opt/lab/setup.sh",
		RunAfterUpload: true,
	}

	res := job.Execute(console)
	s.Equal(ae3gis.StatusFailed, res.Status)
	s.Contains(res.Error, "upload step failed")
	s.Equal(0, console.CallsMatching("sh /opt/lab/setup.sh"), "a broken upload is never run")
}

func (s *ScriptSuite) TestRemoteCommand() {
	console := ae3gis.NewStubConsole(
		ae3gis.StubReply{Match: "date", Output: "Tue Aug 26 12:00:00 UTC 2025", RC: 0},
	)

	job := &ae3gis.ScriptJob{Node: "Workstation-1", Command: "date"}

	res := job.Execute(console)
	s.Equal(ae3gis.StatusDone, res.Status)
	s.Equal(1, console.CallsMatching("sh -c 'date'"))
}

func (s *ScriptSuite) TestRemoteCommandQuoting() {
	console := ae3gis.NewStubConsole()

	job := &ae3gis.ScriptJob{Node: "Workstation-1", Command: "echo 'hello world'"}
	_ = job.Execute(console)

	s.Equal(1, console.CallsMatching(`sh -c 'echo '\''hello world'\'''`))
}

func (s *ScriptSuite) TestRemoteCommandFailure() {
	console := ae3gis.NewStubConsole(
		ae3gis.StubReply{Match: "deploy", Output: "deploy: no such service", RC: 3},
	)

	job := &ae3gis.ScriptJob{Node: "Workstation-1", Command: "deploy"}

	res := job.Execute(console)
	s.Equal(ae3gis.StatusFailed, res.Status)
	s.Contains(res.Error, "exited 3")
}

func (s *ScriptSuite) TestCustomShell() {
	console := ae3gis.NewStubConsole(
		ae3gis.StubReply{Match: "test -e", Output: "", RC: 1},
	)

	job := &ae3gis.ScriptJob{
		Node:           "Workstation-1",
		Content:        []byte("echo hi"),
		RemotePath:     "/opt/lab/setup.sh",
		Shell:          "ash",
		RunAfterUpload: true,
	}

	_ = job.Execute(console)
	s.Equal(1, console.CallsMatching("ash /opt/lab/setup.sh"))
}

func (s *ScriptSuite) TestDeadlinePadsUpload() {
	job := &ae3gis.ScriptJob{Node: "Workstation-1"}
	s.Equal(3*time.Minute, job.Deadline())

	job.RunWindow = 10 * time.Second
	s.Equal(70*time.Second, job.Deadline())
}
