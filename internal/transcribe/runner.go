package transcribe

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// lineRunner executes one external process and streams its stderr lines to a
// callback while the process is still running, so long inference calls can
// report progress incrementally.
type lineRunner interface {
	Run(ctx context.Context, name string, args []string, onLine func(line string)) (exitCode int, stderrTail string, err error)
}

// execLineRunner runs commands via os/exec with a scanned stderr pipe.
type execLineRunner struct{}

// Run executes the command, forwarding each stderr line as it arrives and
// retaining a bounded tail for error reporting.
func (r *execLineRunner) Run(ctx context.Context, name string, args []string, onLine func(line string)) (int, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, "", err
	}

	if err := cmd.Start(); err != nil {
		return -1, "", err
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if onLine != nil {
			onLine(line)
		}
		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}
	}

	err = cmd.Wait()
	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return exitCode, strings.Join(tail, "\n"), err
	}
	return exitCode, strings.Join(tail, "\n"), nil
}
