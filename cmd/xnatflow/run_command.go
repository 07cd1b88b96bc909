package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"xnatflow/internal/config"
	"xnatflow/internal/journal"
	"xnatflow/internal/launch"
	"xnatflow/internal/lifecycle"
	"xnatflow/internal/logging"
	"xnatflow/internal/notifications"
	"xnatflow/internal/progress"
	"xnatflow/internal/runlock"
	"xnatflow/internal/services"
	"xnatflow/internal/tracker"
	"xnatflow/internal/xnat"
)

type runFlags struct {
	host         string
	user         string
	password     string
	pipeline     string
	project      string
	dataType     string
	id           string
	label        string
	workflowID   string
	notify       bool
	notifyEmails []string
	parameters   []string
	extra        []string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a pipeline command and mirror its progress to the XNAT workflow record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			run, err := flags.toRun(cfg)
			if err != nil {
				return err
			}
			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return executeRun(signalCtx, cfg, run, progress.Command{Path: args[0], Args: args[1:]}, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().SetInterspersed(false)

	f := cmd.Flags()
	f.StringVar(&flags.host, "host", "", "XNAT base URL (defaults to xnat.base_url)")
	f.StringVarP(&flags.user, "user", "u", "", "XNAT user (defaults to xnat.username)")
	f.StringVar(&flags.password, "pwd", "", "XNAT password (defaults to xnat.password)")
	f.StringVar(&flags.pipeline, "pipeline", "", "Pipeline name or path")
	f.StringVar(&flags.project, "project", "", "Project the data item belongs to")
	f.StringVar(&flags.dataType, "data-type", "", "XSI type of the data item")
	f.StringVar(&flags.id, "id", "", "Data item identifier")
	f.StringVar(&flags.label, "label", "", "Data item label")
	f.StringVar(&flags.workflowID, "workflow-id", "", "Workflow identifier (defaults to --id)")
	f.BoolVar(&flags.notify, "notify", false, "Email recipients when the run finishes")
	f.StringArrayVar(&flags.notifyEmails, "notify-email", nil, "Additional notification recipient (repeatable)")
	f.StringArrayVarP(&flags.parameters, "parameter", "p", nil, "Pipeline parameter name=v1,v2 (repeatable)")
	f.StringArrayVar(&flags.extra, "arg", nil, "Extra launcher argument key=value recorded in summaries (repeatable)")

	return cmd
}

func (f runFlags) toRun(cfg *config.Config) (launch.Run, error) {
	params, err := launch.ParseParameterFlags(f.parameters)
	if err != nil {
		return launch.Run{}, err
	}
	extra := make(map[string]string, len(f.extra))
	for _, raw := range f.extra {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return launch.Run{}, services.Wrap(services.ErrValidation, "cli", "run",
				fmt.Sprintf("invalid --arg %q (want key=value)", raw), nil)
		}
		extra[strings.TrimSpace(key)] = value
	}

	run := launch.Run{
		Arguments: launch.Arguments{
			Host:         firstNonEmpty(f.host, cfg.XNAT.BaseURL),
			User:         firstNonEmpty(f.user, cfg.XNAT.Username),
			Password:     firstNonEmpty(f.password, cfg.XNAT.Password),
			Pipeline:     f.pipeline,
			Project:      f.project,
			DataType:     f.dataType,
			ID:           f.id,
			Label:        f.label,
			WorkflowID:   f.workflowID,
			NotifyFlag:   f.notify,
			NotifyEmails: f.notifyEmails,
			Extra:        extra,
		},
		Parameters:  params,
		AdminEmails: cfg.Mail.AdminEmails,
	}
	if err := run.Validate(); err != nil {
		return launch.Run{}, err
	}
	return run, nil
}

// executeRun drives one pipeline run end to end. Errors before the workflow
// record exists are returned directly; once it exists, every outcome goes
// through the lifecycle scope.
func executeRun(ctx context.Context, cfg *config.Config, run launch.Run, command progress.Command, stderr io.Writer) error {
	runID := run.RunID()

	lock, err := runlock.Acquire(cfg.LockDir(), runID)
	if err != nil {
		return err
	}
	defer lock.Release()

	runLog, err := logging.NewRunLogger(cfg, runID)
	if err != nil {
		return err
	}
	defer runLog.Close()
	run.LogFile = runLog.Path

	ctx = services.WithRequestID(services.WithRunID(ctx, runID), uuid.NewString())
	logger := logging.WithContext(ctx, runLog.Logger)
	logger.Info("pipeline run starting",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("pipeline", run.Arguments.Pipeline),
		logging.String("command", command.Path),
		logging.String("log_file", run.LogFile))

	store, err := journal.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := xnat.NewClient(xnat.Options{
		Identity: xnat.Identity{
			BaseURL:  run.Arguments.Host,
			Username: run.Arguments.User,
			Password: run.Arguments.Password,
		},
		Timeout:            cfg.XNATTimeout(),
		InsecureSkipVerify: cfg.XNAT.TLSInsecureSkipVerify,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	tr, err := tracker.Open(ctx, tracker.Options{
		Remote:    client,
		RunID:     runID,
		Synthesis: run.SynthesisInput(),
		Recorder:  store,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	scope, err := lifecycle.New(lifecycle.Options{
		Tracker:     tr,
		Notifier:    notifications.NewService(cfg, logger),
		Run:         run,
		ErrorStream: stderr,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	command.Env = append(command.Env,
		"XNATFLOW_RUN_ID="+runID,
		"XNATFLOW_WORKFLOW_ID="+tr.WorkflowID(),
		"XNATFLOW_LOG_FILE="+run.LogFile,
	)
	err = scope.Run(ctx, func(ctx context.Context) error {
		if err := tr.SetEnvironment(ctx, run.Environment()); err != nil {
			return err
		}
		return command.Run(ctx, tr, logger)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	logger.Info("pipeline run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String(logging.FieldWorkflowID, tr.WorkflowID()),
		logging.Int("pushes", tr.Pushes()))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
