package progress

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"xnatflow/internal/logging"
	"xnatflow/internal/services"
)

// waitDelay bounds how long Run waits for the output pipes to close after the
// process group has been killed.
const waitDelay = 5 * time.Second

// Command is an external pipeline program.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Run starts the command, pumps its stdout through Pump, and copies stderr to
// the log at warn level. A non-zero exit or a failed progress update is
// returned as an error. The command runs in its own process group so that
// cancelling ctx also stops any children it spawned.
func (c Command) Run(ctx context.Context, u Updater, logger *slog.Logger) error {
	if c.Path == "" {
		return services.Wrap(services.ErrValidation, "progress", "run", "command is required", nil)
	}
	logger = logging.NewComponentLogger(logger, "pipeline")

	cmd := exec.CommandContext(ctx, c.Path, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Path, err)
	}
	logger.Info("pipeline command started",
		logging.String("command", c.Path),
		logging.Int("pid", cmd.Process.Pid))

	var wg sync.WaitGroup
	var pumpErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		pumpErr = Pump(ctx, stdout, u, logger)
	}()
	go func() {
		defer wg.Done()
		copyStderr(stderr, logger)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", c.Path, err)
	}
	if pumpErr != nil {
		return pumpErr
	}
	logger.Info("pipeline command finished", logging.String("command", c.Path))
	return nil
}

func copyStderr(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		logger.Warn(scanner.Text(),
			logging.String(logging.FieldEventType, "pipeline_stderr"),
			logging.String("stream", "stderr"))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stderr line too long; discarding remaining stderr", logging.Error(err))
		_, _ = io.Copy(io.Discard, r)
	}
}
