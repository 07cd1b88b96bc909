package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"xnatflow/internal/journal"
	"xnatflow/internal/logging"
	"xnatflow/internal/services"
	"xnatflow/internal/workflowdoc"
	"xnatflow/internal/xnat"
)

const component = "tracker"

// Remote is the subset of the XNAT client the tracker drives.
type Remote interface {
	Obtain(ctx context.Context) (xnat.Session, error)
	Search(ctx context.Context, session xnat.Session, runID string) ([]string, error)
	FetchWorkflow(ctx context.Context, session xnat.Session, id string) ([]byte, error)
	Store(ctx context.Context, session xnat.Session, document string) error
	CloseSession(ctx context.Context, session xnat.Session) error
}

// Recorder receives one entry per remote action. Failures are logged and
// otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Options configures Open.
type Options struct {
	Remote    Remote
	RunID     string
	Synthesis workflowdoc.SynthesisInput
	Recorder  Recorder
	Logger    *slog.Logger
	// Now overrides the clock used for timestamps, mainly for tests.
	Now func() time.Time
}

// Tracker owns one run's workflow record and remote session lifecycle.
type Tracker struct {
	remote   Remote
	recorder Recorder
	logger   *slog.Logger
	sampler  *logging.ProgressSampler
	now      func() time.Time

	runID      string
	workflowID string
	state      State
	record     workflowdoc.Record
	session    xnat.Session
	envSet     bool
	updated    bool
	pushes     int
}

// Open locates a pre-run record for the run or synthesizes and pushes a new
// one. Search failures are downgraded to "not found"; a failed initial push
// is returned as ErrSync.
func Open(ctx context.Context, opts Options) (*Tracker, error) {
	if opts.Remote == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "remote client is required", nil)
	}
	runID := strings.TrimSpace(opts.RunID)
	if runID == "" {
		return nil, services.Wrap(services.ErrValidation, component, "open", "run id is required", nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := logging.NewComponentLogger(opts.Logger, component).With(logging.String(logging.FieldRunID, runID))
	t := &Tracker{
		remote:   opts.Remote,
		recorder: opts.Recorder,
		logger:   logger,
		sampler:  logging.NewProgressSampler(10),
		now:      now,
		runID:    runID,
	}

	located, err := t.locate(ctx)
	if err != nil {
		return nil, err
	}
	if located {
		return t, nil
	}

	synthesis := opts.Synthesis
	synthesis.RunID = runID
	if synthesis.LaunchTime.IsZero() {
		synthesis.LaunchTime = now()
	}
	record := workflowdoc.Synthesize(synthesis)
	if err := t.push(ctx, record, journal.OpCreate); err != nil {
		return nil, err
	}
	t.state = StateSynthesized
	t.logger.Info("synthesized workflow record",
		logging.String(logging.FieldEventType, "workflow_synthesized"),
		logging.String("pipeline", record.PipelineName()),
		logging.String("project", record.ExternalID()))
	return t, nil
}

// locate runs the best-effort search. It only returns an error when the
// context is done.
func (t *Tracker) locate(ctx context.Context) (bool, error) {
	session, ids, err := t.search(ctx)
	if err != nil {
		if !services.Downgradable(err) {
			return false, err
		}
		logging.WarnWithContext(t.logger, "workflow search failed; creating a new record", "workflow_search_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "an existing queued record for this run may be left orphaned"),
			logging.String(logging.FieldErrorHint, "check XNAT connectivity and credentials"),
			logging.Error(err))
		t.recordEntry(ctx, journal.Entry{Operation: journal.OpSearchFailed}, err)
		return false, nil
	}
	t.session = session

	for _, id := range ids {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		record, err := t.fetch(ctx, session, id)
		if err != nil {
			t.logger.Warn("skipping workflow candidate",
				logging.String(logging.FieldWorkflowID, id),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Error(err))
			continue
		}
		if !record.Status().PreRun() {
			t.logger.Debug("workflow candidate not in a pre-run state",
				logging.String(logging.FieldWorkflowID, id),
				logging.String("status", record.Status().String()))
			continue
		}

		t.record = record
		t.workflowID = id
		t.envSet = false
		t.state = StateLocated
		t.logger.Info("adopted existing workflow record",
			logging.String(logging.FieldEventType, "workflow_adopted"),
			logging.String(logging.FieldWorkflowID, id),
			logging.String("status", record.Status().String()))
		t.recordEntry(ctx, t.entry(journal.OpAdopt, record, session), nil)
		return true, nil
	}

	notFound := services.Wrap(services.ErrRecordNotFound, component, "search",
		"no pre-run workflow among "+pluralCandidates(len(ids)), nil)
	t.logger.Info("no pre-run workflow found", logging.Error(notFound))
	return false, nil
}

func (t *Tracker) search(ctx context.Context) (xnat.Session, []string, error) {
	session, err := t.remote.Obtain(ctx)
	if err != nil {
		return xnat.Session{}, nil, err
	}
	ids, err := t.remote.Search(ctx, session, t.runID)
	if err != nil {
		return xnat.Session{}, nil, err
	}
	return session, ids, nil
}

func (t *Tracker) fetch(ctx context.Context, session xnat.Session, id string) (workflowdoc.Record, error) {
	data, err := t.remote.FetchWorkflow(ctx, session, id)
	if err != nil {
		return workflowdoc.Record{}, err
	}
	return workflowdoc.Parse(data)
}

// SetEnvironment writes the execution environment block and pushes it. It
// must be called at most once and before the first Update. An environment
// block already present on an adopted record is replaced.
func (t *Tracker) SetEnvironment(ctx context.Context, env workflowdoc.Environment) error {
	if t.state.Terminal() {
		return services.Wrap(services.ErrValidation, component, "set environment", "", ErrTerminal)
	}
	if t.updated {
		return services.Wrap(services.ErrValidation, component, "set environment", "", ErrEnvironmentOrder)
	}
	base := t.record
	if !t.envSet {
		base = base.WithoutEnvironment()
	}
	next, err := base.WithEnvironment(env)
	if err != nil {
		return err
	}
	if err := t.push(ctx, next, journal.OpSetEnvironment); err != nil {
		return err
	}
	t.envSet = true
	return nil
}

// Update reports progress: status Running, a fresh step launch time, and the
// given step label, description, and percent. Percent must be a finite value
// in 0..100.
func (t *Tracker) Update(ctx context.Context, stepID, description string, percent float64) error {
	if t.state.Terminal() {
		return services.Wrap(services.ErrValidation, component, "update", "", ErrTerminal)
	}
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 || percent > 100 {
		return services.Wrap(services.ErrValidation, component, "update",
			fmt.Sprintf("percent %v outside 0..100", percent), nil)
	}
	next := t.record.
		WithStatus(workflowdoc.StatusRunning).
		WithStepLaunchTime(t.now()).
		WithProgress(stepID, description, percent)
	if err := t.push(ctx, next, journal.OpUpdate); err != nil {
		return err
	}
	t.state = StateRunning
	t.updated = true

	attrs := []logging.Attr{
		logging.String("step", stepID),
		logging.String("description", description),
		logging.Float64("percent", percent),
	}
	if t.sampler.ShouldLog(stepID, percent) {
		t.logger.Info("workflow progress", logging.Args(attrs...)...)
	} else {
		t.logger.Debug("workflow progress", logging.Args(attrs...)...)
	}
	return nil
}

// Complete marks the run Complete at 100%, clears the current step, pushes,
// and closes the session. When only the close fails the tracker is still
// Completed and the close error is returned.
func (t *Tracker) Complete(ctx context.Context) error {
	if t.state.Terminal() {
		return services.Wrap(services.ErrValidation, component, "complete", "", ErrTerminal)
	}
	next := t.record.
		WithStatus(workflowdoc.StatusComplete).
		WithStepLaunchTime(t.now()).
		WithPercent(100).
		WithoutCurrentStep()
	if err := t.push(ctx, next, journal.OpComplete); err != nil {
		return err
	}
	t.state = StateCompleted
	t.logger.Info("workflow complete", logging.String(logging.FieldEventType, "workflow_complete"))
	return t.close(ctx)
}

// Fail marks the run Failed, pushes, and closes the session. An empty
// description leaves the existing step description untouched.
func (t *Tracker) Fail(ctx context.Context, description string) error {
	if t.state.Terminal() {
		return services.Wrap(services.ErrValidation, component, "fail", "", ErrTerminal)
	}
	next := t.record.WithStatus(workflowdoc.StatusFailed)
	if description != "" {
		next = next.WithStepDescription(description)
	}
	if err := t.push(ctx, next, journal.OpFail); err != nil {
		return err
	}
	t.state = StateFailed
	t.logger.Info("workflow failed", logging.String(logging.FieldEventType, "workflow_failed"))
	return t.close(ctx)
}

// push obtains a fresh session, stores next, and commits it locally only on
// success.
func (t *Tracker) push(ctx context.Context, next workflowdoc.Record, op journal.Operation) error {
	session, err := t.remote.Obtain(ctx)
	if err != nil {
		err = services.Wrap(services.ErrSync, component, string(op), "obtain session", err)
		t.recordEntry(ctx, t.entry(op, next, xnat.Session{}), err)
		return err
	}

	document, err := next.Serialize()
	if err != nil {
		err = services.Wrap(services.ErrSync, component, string(op), "serialize workflow", err)
		t.recordEntry(ctx, t.entry(op, next, session), err)
		return err
	}

	if err := t.remote.Store(ctx, session, document); err != nil {
		err = services.Wrap(services.ErrSync, component, string(op), "push workflow", err)
		t.recordEntry(ctx, t.entry(op, next, session), err)
		return err
	}

	t.record = next
	t.session = session
	t.pushes++
	t.recordEntry(ctx, t.entry(op, next, session), nil)
	t.logger.Debug("workflow pushed",
		logging.String(logging.FieldOperation, string(op)),
		logging.String("session", session.Fingerprint()),
		logging.String("status", next.Status().String()))
	return nil
}

// close releases the session used by the last push.
func (t *Tracker) close(ctx context.Context) error {
	err := t.remote.CloseSession(ctx, t.session)
	if err != nil {
		err = services.Wrap(services.ErrSync, component, "close", "close session", err)
	}
	t.recordEntry(ctx, t.entry(journal.OpClose, t.record, t.session), err)
	return err
}

func (t *Tracker) entry(op journal.Operation, record workflowdoc.Record, session xnat.Session) journal.Entry {
	step, _ := record.CurrentStepID()
	return journal.Entry{
		WorkflowID: t.workflowID,
		Operation:  op,
		Status:     record.Status().String(),
		Percent:    record.PercentComplete(),
		StepID:     step,
		Session:    session.Fingerprint(),
	}
}

func (t *Tracker) recordEntry(ctx context.Context, entry journal.Entry, cause error) {
	if t.recorder == nil {
		return
	}
	entry.RunID = t.runID
	entry.CorrelationID, _ = services.RequestIDFromContext(ctx)
	entry.RecordedAt = t.now()
	entry.Outcome = journal.OutcomeOK
	if cause != nil {
		entry.Outcome = journal.OutcomeError
		entry.ErrorKind = services.Kind(cause)
		entry.ErrorMessage = cause.Error()
	}
	if err := t.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		t.logger.Warn("journal write failed",
			logging.String(logging.FieldOperation, string(entry.Operation)),
			logging.Error(err))
	}
}

// RunID returns the run identifier.
func (t *Tracker) RunID() string { return t.runID }

// WorkflowID returns the server key of an adopted record, or "" for a
// synthesized one.
func (t *Tracker) WorkflowID() string { return t.workflowID }

// State returns the current lifecycle state.
func (t *Tracker) State() State { return t.state }

// Record returns the last successfully pushed (or adopted) record.
func (t *Tracker) Record() workflowdoc.Record { return t.record }

// Pushes returns the number of successful pushes.
func (t *Tracker) Pushes() int { return t.pushes }

// IsTerminal reports whether err is a rejected terminal transition.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}

func pluralCandidates(n int) string {
	if n == 1 {
		return "1 candidate"
	}
	return fmt.Sprintf("%d candidates", n)
}
