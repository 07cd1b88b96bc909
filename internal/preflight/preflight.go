package preflight

import (
	"context"
	"log/slog"

	"xnatflow/internal/config"
	"xnatflow/internal/notifications"
	"xnatflow/internal/xnat"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The mail relay is only checked when email notifications are enabled.
func RunAll(ctx context.Context, cfg *config.Config, logger *slog.Logger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	client, err := xnat.NewClient(xnat.Options{
		Identity: xnat.Identity{
			BaseURL:  cfg.XNAT.BaseURL,
			Username: cfg.XNAT.Username,
			Password: cfg.XNAT.Password,
		},
		Timeout:            cfg.XNATTimeout(),
		InsecureSkipVerify: cfg.XNAT.TLSInsecureSkipVerify,
		Logger:             logger,
	})
	if err != nil {
		results = append(results, Result{Name: "XNAT", Detail: err.Error()})
	} else {
		results = append(results, CheckXNAT(ctx, client, client.BaseURL()))
	}

	if cfg.Notifications.Email {
		mailer := notifications.NewMailer(cfg.Mail.Host, cfg.Mail.From)
		results = append(results, CheckMailRelay(ctx, mailer.Addr()))
	}

	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
