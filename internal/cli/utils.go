package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrew-d/go-termutil"
	log "github.com/sirupsen/logrus"
)

// Read collects non-empty lines from a reader, one arg per line. Lets node names be
// piped in instead of passed as args.
func Read(r io.Reader) []string {
	args := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			args = append(args, line)
		}
	}
	return args
}

// AssertName checks whether a string is usable as a node name
func AssertName(name string) {
	if strings.TrimSpace(name) == "" {
		log.WithFields(log.Fields{
			"name": name,
		}).Fatal("invalid node name")
	}
}

// ReadSource loads script content from a file, or from stdin when path is "-". Reading
// stdin from a terminal is refused so a forgotten pipe fails fast instead of hanging.
func ReadSource(path string) ([]byte, error) {
	if path == "-" {
		if termutil.Isatty(os.Stdin.Fd()) {
			return nil, fmt.Errorf("refusing to read script from a terminal, pipe it in")
		}
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// ValidateUnder ensures a local path sits under a base directory and returns it
// absolute. Script sources are operator-supplied; containment keeps a stray argument
// from shipping /etc/shadow to a lab node.
func ValidateUnder(base, path string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absBase, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, base)
	}
	return abs, nil
}
