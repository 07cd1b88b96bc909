package progress

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"xnatflow/internal/logging"
)

// maxLineBytes bounds a single line of pipeline output.
const maxLineBytes = 1 << 20

// Updater receives forwarded progress reports.
type Updater interface {
	Update(ctx context.Context, stepID, description string, percent float64) error
}

// Pump reads r line by line until EOF. Progress lines go to u; everything
// else is logged as pipeline output. Malformed progress lines are logged and
// dropped. The first Update error is returned once r is drained so the
// command writing to r never blocks on a full pipe.
func Pump(ctx context.Context, r io.Reader, u Updater, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "progress")
	sampler := logging.NewProgressSampler(10)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var firstErr error
	for scanner.Scan() {
		line := scanner.Text()
		report, ok, err := Parse(line)
		if !ok {
			logger.Info(line, logging.String(logging.FieldEventType, "pipeline_output"))
			continue
		}
		if err != nil {
			logging.WarnWithContext(logger, "ignoring malformed progress line", "progress_malformed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "workflow percentage not updated for this line"),
				logging.String(logging.FieldErrorHint, "emit step=<id> percent=<0-100> [desc=<text>]"))
			continue
		}
		if firstErr != nil {
			continue
		}
		if sampler.ShouldLog(report.StepID, report.Percent) {
			logger.Info("pipeline progress",
				logging.String("step", report.StepID),
				logging.Float64("percent", report.Percent),
				logging.String("description", report.Description))
		}
		if u == nil {
			continue
		}
		if err := u.Update(ctx, report.StepID, report.Description, report.Percent); err != nil {
			firstErr = err
			logging.ErrorWithContext(logger, "progress update failed", "progress_update_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check XNAT connectivity; later progress lines are not forwarded"))
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep the writer unblocked after an oversized line.
		_, _ = io.Copy(io.Discard, r)
		if firstErr == nil {
			return err
		}
	}
	return firstErr
}
