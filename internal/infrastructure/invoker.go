package infrastructure

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/domain"
)

// ExitStatus is the terminal outcome of an invoked process
type ExitStatus struct {
	Code int
	Err  error // set when waiting failed for a reason other than nonzero exit
}

// Process exposes a running external command as line streams plus a
// terminal outcome. Stdout and Stderr close at EOF; Done delivers exactly
// one ExitStatus after both output streams have closed.
type Process struct {
	Stdout <-chan string
	Stderr <-chan string
	Done   <-chan ExitStatus
}

// Invoker spawns external extraction commands. It applies no timeout of its
// own; cancel the context to kill the process.
type Invoker struct {
	logger *zap.Logger
}

// NewInvoker creates a new process invoker
func NewInvoker(logger *zap.Logger) *Invoker {
	return &Invoker{logger: logger}
}

// Start launches binary with the given arguments and returns its output
// streams. A failure to start at all is reported as *domain.LaunchError;
// a nonzero exit is reported through Done, not as an error here.
func (i *Invoker) Start(ctx context.Context, binary string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &domain.LaunchError{Binary: binary, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &domain.LaunchError{Binary: binary, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &domain.LaunchError{Binary: binary, Err: err}
	}

	i.logger.Debug("Process started",
		zap.String("command", CommandLine(binary, args...)),
		zap.Int("pid", cmd.Process.Pid))

	stdout := make(chan string, 64)
	stderr := make(chan string, 64)
	done := make(chan ExitStatus, 1)

	scanned := make(chan struct{}, 2)
	go scanLines(stdoutPipe, stdout, scanned)
	go scanLines(stderrPipe, stderr, scanned)

	go func() {
		// Both scanners must drain before Wait closes the pipes
		<-scanned
		<-scanned

		err := cmd.Wait()
		status := ExitStatus{}
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				status.Code = exitErr.ExitCode()
			} else {
				status.Code = -1
				status.Err = err
			}
		}

		i.logger.Debug("Process exited",
			zap.String("binary", binary),
			zap.Int("exit_code", status.Code))

		done <- status
		close(done)
	}()

	return &Process{Stdout: stdout, Stderr: stderr, Done: done}, nil
}

func scanLines(r io.Reader, out chan<- string, finished chan<- struct{}) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out)
	finished <- struct{}{}
}
