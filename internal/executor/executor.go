package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"sysqueryd/internal/errcode"
	"sysqueryd/internal/logger"
	"sysqueryd/internal/metrics"
)

var log = logger.WithComponent("executor")

// MaxLineBytes bounds the captured first line, newline included.
const MaxLineBytes = 2048

var (
	ErrLaunch = errors.New("command launch failed")
	ErrWait   = errors.New("command wait failed")
)

// Runner runs a shell command and returns the first line of its stdout.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Shell runs commands as `<Path> -c <command>`.
type Shell struct {
	Path string
}

func New(shell string) *Shell {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Shell{Path: shell}
}

// Run launches command, keeps the first line of output (at most
// MaxLineBytes-1 bytes, like fgets) and waits for the process. The trailing
// newline is kept. A non-zero exit status is not an error; only failure to
// start the process or to collect its completion is.
func (s *Shell) Run(ctx context.Context, command string) (string, error) {
	start := time.Now()
	defer func() { metrics.CommandDuration.Observe(time.Since(start).Seconds()) }()

	cmd := exec.CommandContext(ctx, s.Path, "-c", command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", launchErr(command, err)
	}
	if err := cmd.Start(); err != nil {
		return "", launchErr(command, err)
	}

	line, readErr := readFirstLine(stdout)
	// drain so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return line, errcode.New(errcode.WaitFailed, fmt.Errorf("%w: %q: %v", ErrWait, command, err))
		}
		log.Debug("command exited non-zero", "command", command, "exit_code", exitErr.ExitCode())
	}
	if readErr != nil {
		log.Warn("reading command output failed", "command", command, "error", readErr)
	}
	return line, nil
}

func readFirstLine(r io.Reader) (string, error) {
	br := bufio.NewReader(io.LimitReader(r, MaxLineBytes-1))
	line, err := br.ReadString('\n')
	if err == io.EOF {
		err = nil
	}
	return line, err
}

func launchErr(command string, err error) error {
	return errcode.New(errcode.LaunchFailed, fmt.Errorf("%w: %q: %v", ErrLaunch, command, err))
}
