package watchdog

import (
	"fmt"
	"io"

	"github.com/syndicate/sliverd/internal/sliver/shellwords"
)

// ReadCommandLine reads r to EOF and tokenizes the result as a quoted
// gateway command line. Key material in the line (e.g. a PEM-encoded
// private key) contains real newline bytes, so the line cannot be read
// up to the first newline; the spawner writes it once and closes the
// pipe, so reading to EOF yields exactly one command line. Passing the
// command over a pipe rather than argv keeps it out of
// /proc/<pid>/cmdline.
func ReadCommandLine(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("watchdog: read command line: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("watchdog: empty command line on stdin")
	}
	argv, err := shellwords.Split(string(raw))
	if err != nil {
		return nil, fmt.Errorf("watchdog: parse command line: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("watchdog: command line had no tokens")
	}
	return argv, nil
}
