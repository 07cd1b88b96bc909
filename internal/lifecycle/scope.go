package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"xnatflow/internal/launch"
	"xnatflow/internal/logging"
	"xnatflow/internal/notifications"
	"xnatflow/internal/services"
)

const (
	SubjectComplete = "Pipeline complete"
	SubjectFailed   = "Pipeline failed"
)

// Finalizer moves the remote workflow into a terminal state.
type Finalizer interface {
	Complete(ctx context.Context) error
	Fail(ctx context.Context, description string) error
}

// Notifier delivers outcome messages.
type Notifier interface {
	Deliver(ctx context.Context, msg notifications.Message) error
}

// Body is the wrapped unit of pipeline work.
type Body func(ctx context.Context) error

// Options configures a Scope.
type Options struct {
	Tracker  Finalizer
	Notifier Notifier
	Run      launch.Run
	// ErrorStream receives the failure report; defaults to os.Stderr.
	ErrorStream io.Writer
	Logger      *slog.Logger
}

// Scope guarantees terminal-state reporting around one run.
type Scope struct {
	tracker  Finalizer
	notifier Notifier
	run      launch.Run
	stderr   io.Writer
	logger   *slog.Logger
}

// New validates options and builds a Scope.
func New(opts Options) (*Scope, error) {
	if opts.Tracker == nil {
		return nil, services.Wrap(services.ErrConfiguration, "lifecycle", "new", "tracker is required", nil)
	}
	stderr := opts.ErrorStream
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Scope{
		tracker:  opts.Tracker,
		notifier: opts.Notifier,
		run:      opts.Run,
		stderr:   stderr,
		logger:   logging.NewComponentLogger(opts.Logger, "lifecycle"),
	}, nil
}

// Run executes body and finalizes the workflow on every exit path.
func (s *Scope) Run(ctx context.Context, body Body) error {
	finalCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			primary := fmt.Errorf("pipeline panicked: %v", r)
			s.report(primary, debug.Stack())
			_ = s.finishFailure(finalCtx, primary)
			panic(r)
		}
	}()

	if bodyErr := body(ctx); bodyErr != nil {
		s.report(bodyErr, nil)
		return s.finishFailure(finalCtx, bodyErr)
	}
	return s.finishSuccess(finalCtx)
}

func (s *Scope) finishSuccess(ctx context.Context) error {
	if err := s.tracker.Complete(ctx); err != nil {
		logging.ErrorWithContext(s.logger, "could not mark workflow complete", "workflow_complete_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "the remote record may still show Running; check XNAT"),
			logging.Error(err))
		return err
	}

	if !s.run.Arguments.NotifyFlag {
		return nil
	}
	if err := s.notify(ctx, SubjectComplete, notifications.KindSuccess, s.successBody()); err != nil {
		logging.WarnWithContext(s.logger, "success notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run succeeded but recipients were not emailed"),
			logging.String(logging.FieldErrorHint, "check mail.host and the relay"))
	}
	return nil
}

func (s *Scope) finishFailure(ctx context.Context, primary error) error {
	errs := []error{primary}

	if err := s.tracker.Fail(ctx, s.failureDescription()); err != nil {
		logging.ErrorWithContext(s.logger, "could not mark workflow failed", "workflow_fail_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "the remote record may not show Failed; check XNAT"),
			logging.Error(err))
		errs = append(errs, err)
	}

	if s.run.Arguments.NotifyFlag {
		if err := s.notify(ctx, SubjectFailed, notifications.KindFailure, s.failureBody()); err != nil {
			logging.WarnWithContext(s.logger, "failure notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "recipients were not told about the failed run"),
				logging.String(logging.FieldErrorHint, "check mail.host and the relay"))
			errs = append(errs, err)
		}
	}

	if len(errs) == 1 {
		return primary
	}
	return errors.Join(errs...)
}

func (s *Scope) notify(ctx context.Context, subject string, kind notifications.Kind, body string) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Deliver(ctx, notifications.Message{
		Recipients: s.run.Recipients(),
		Subject:    subject,
		Body:       body,
		Kind:       kind,
	})
}

func (s *Scope) failureDescription() string {
	if s.run.LogFile == "" {
		return ""
	}
	return fmt.Sprintf("see %s for errors", s.run.LogFile)
}

func (s *Scope) successBody() string {
	return fmt.Sprintf("Pipeline %s for %s is complete\n\n%s",
		s.run.Arguments.Pipeline, s.run.DisplayName(), s.run.Summary())
}

func (s *Scope) failureBody() string {
	return fmt.Sprintf("Pipeline %s for %s failed\n\nsee the logs for details or contact your site administrator\n\n%s",
		s.run.Arguments.Pipeline, s.run.DisplayName(), s.run.Summary())
}

// report writes the body's error, and a stack for panics, to the error
// stream.
func (s *Scope) report(err error, stack []byte) {
	fmt.Fprintf(s.stderr, "pipeline %s failed: %v\n", s.run.DisplayName(), err)
	if len(stack) > 0 {
		_, _ = s.stderr.Write(stack)
	}
}
