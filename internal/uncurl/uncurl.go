// Package uncurl implements the functionality of the program, the CLI in package cmd is simply the
// entrypoint to exported functions and methods in this package.
package uncurl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/uncurl/convert"
)

// stdinPath is the path argument meaning "read from stdin".
const stdinPath = "-"

// Uncurl represents the uncurl program.
type Uncurl struct {
	stdin   io.Reader   // Curl commands are read from here when no file is given
	stdout  io.Writer   // Normal program output is written here
	stderr  io.Writer   // Logs, warnings and errors are written here
	logger  *log.Logger // The logger for the application
	version string      // The version of uncurl
}

// New returns a new [Uncurl].
func New(debug bool, version string, stdin io.Reader, stdout, stderr io.Writer) Uncurl {
	level := log.LevelInfo
	if debug {
		level = log.LevelDebug
	}

	logger := log.New(stderr, log.WithLevel(level))

	return Uncurl{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		logger:  logger,
		version: version,
	}
}

// readCurl reads the curl command at path, or from stdin if path is "-", returning
// the name to report it as and its normalised text.
//
// It is an error if the text doesn't look like a curl command at all.
func (u Uncurl) readCurl(path string) (name, text string, err error) {
	name, contents, err := u.read(path)
	if err != nil {
		return "", "", err
	}

	normalised, ok := convert.DetectAndNormalize(string(contents))
	if !ok {
		if strings.TrimSpace(string(contents)) == "" {
			return "", "", fmt.Errorf("%s is empty, expected a curl command", name)
		}

		return "", "", fmt.Errorf("%s does not look like a curl command", name)
	}

	return name, normalised, nil
}

// read reads the contents of path, or stdin if path is "-".
func (u Uncurl) read(path string) (name string, contents []byte, err error) {
	if path == stdinPath || path == "" {
		contents, err = io.ReadAll(u.stdin)
		if err != nil {
			return "", nil, fmt.Errorf("could not read stdin: %w", err)
		}

		return "stdin", contents, nil
	}

	contents, err = os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	return filepath.ToSlash(path), contents, nil
}

// write writes contents to the file at path, creating any parent directories.
func write(path string, contents string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}

	return nil
}

// siblingPath returns the path of a file called name in the same directory as path.
func siblingPath(path, name string) string {
	return filepath.Join(filepath.Dir(path), name)
}
