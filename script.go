package ae3gis

import (
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"time"

	uuid "github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultShell     = "sh"
	defaultRunWindow = 2 * time.Minute

	uploadStepWindow = 5 * time.Second
	uploadChunkSize  = 1024
	// uploadBudget pads the job deadline beyond the run window to cover the transfer
	uploadBudget = time.Minute
)

// ScriptJob pushes file content onto a node through its console and optionally runs it.
// Consoles are the only transport lab nodes have, so content travels as base64 chunks
// reassembled remotely. A job with no Content and a Command is a plain remote execution.
type ScriptJob struct {
	Node           string
	Host           string
	Port           int
	Content        []byte
	RemotePath     string
	Command        string
	Shell          string
	RunAfterUpload bool
	Executable     bool
	Overwrite      bool
	RunWindow      time.Duration
}

// Name implements Job
func (j *ScriptJob) Name() string {
	return j.Node
}

// Kind implements Job
func (j *ScriptJob) Kind() string {
	return "script"
}

// Endpoint implements Job
func (j *ScriptJob) Endpoint() (string, int) {
	return j.Host, j.Port
}

// Deadline implements Job
func (j *ScriptJob) Deadline() time.Duration {
	return j.runWindow() + uploadBudget
}

func (j *ScriptJob) runWindow() time.Duration {
	if j.RunWindow > 0 {
		return j.RunWindow
	}
	return defaultRunWindow
}

func (j *ScriptJob) shell() string {
	if j.Shell != "" {
		return j.Shell
	}
	return defaultShell
}

// Execute implements Job
func (j *ScriptJob) Execute(c Consoler) NodeResult {
	result := NodeResult{
		Node:   j.Node,
		Role:   Classify(j.Node),
		Status: StatusDone,
	}

	if len(j.Content) > 0 {
		if !j.upload(c, &result) {
			return result
		}
		if !j.RunAfterUpload {
			return result
		}
	}

	command := j.Command
	if command == "" && j.RemotePath != "" {
		command = fmt.Sprintf("%s %s", j.shell(), j.RemotePath)
	} else if command != "" {
		command = fmt.Sprintf("%s -c %s", j.shell(), shellQuote(command))
	}
	if command == "" {
		return result
	}

	res, _ := step(c, j.Node, command, j.runWindow())
	result.Commands = append(result.Commands, res)
	if !res.Succeeded {
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("command exited %d", res.ExitCode)
		log.WithFields(log.Fields{
			"node": j.Node,
			"rc":   res.ExitCode,
			"func": "Consoler.RunStatus",
		}).Error("script run failed")
	}
	return result
}

// upload replays the content through the console. Returns false when the job should stop,
// either because the destination exists and overwrite is off, or because a step failed.
func (j *ScriptJob) upload(c Consoler, result *NodeResult) bool {
	if !j.Overwrite {
		res, _ := step(c, j.Node, fmt.Sprintf("test -e %s", j.RemotePath), uploadStepWindow)
		result.Commands = append(result.Commands, res)
		if res.ExitCode == 0 {
			result.Status = StatusSkipped
			result.Error = "remote path exists and overwrite is disabled"
			log.WithFields(log.Fields{
				"node": j.Node,
				"path": j.RemotePath,
			}).Info("upload skipped, destination exists")
			return false
		}
	}

	tmp := fmt.Sprintf("/tmp/.push-%s.b64", strings.Replace(uuid.New(), "-", "", -1)[:12])
	encoded := base64.StdEncoding.EncodeToString(j.Content)

	commands := []string{
		fmt.Sprintf("mkdir -p %s", path.Dir(j.RemotePath)),
		fmt.Sprintf("rm -f %s", tmp),
	}
	for off := 0; off < len(encoded); off += uploadChunkSize {
		end := off + uploadChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		commands = append(commands, fmt.Sprintf("printf '%%s' '%s' >> %s", encoded[off:end], tmp))
	}
	commands = append(commands, fmt.Sprintf("base64 -d %s > %s", tmp, j.RemotePath))
	if j.Executable {
		commands = append(commands, fmt.Sprintf("chmod +x %s", j.RemotePath))
	}
	commands = append(commands, fmt.Sprintf("rm -f %s", tmp))

	for _, command := range commands {
		res, _ := step(c, j.Node, command, uploadStepWindow)
		result.Commands = append(result.Commands, res)
		if !res.Succeeded {
			result.Status = StatusFailed
			result.Error = fmt.Sprintf("upload step failed: %s", command)
			log.WithFields(log.Fields{
				"node":    j.Node,
				"command": command,
				"rc":      res.ExitCode,
			}).Error("upload step failed")
			return false
		}
	}

	log.WithFields(log.Fields{
		"node":  j.Node,
		"path":  j.RemotePath,
		"bytes": len(j.Content),
	}).Info("script uploaded")
	return true
}

// shellQuote single-quotes a command for sh -c, escaping embedded quotes the POSIX way
func shellQuote(s string) string {
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}
