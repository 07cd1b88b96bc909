package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"xnatflow/internal/journal"
	"xnatflow/internal/runlock"
	"xnatflow/internal/services"
	"xnatflow/internal/testsupport"
	"xnatflow/internal/workflowdoc"
)

const progressScript = `echo "converting scans"
echo "@@xnatflow progress step=1 percent=50 desc=dcm2nii"
echo "@@xnatflow progress step=2 percent=90 desc=cleanup"
echo "XNATFLOW_RUN_ID=$XNATFLOW_RUN_ID" > "$(dirname "$0")/env.txt"
`

func lastStoredStatus(t *testing.T, env *cliTestEnv, id string) workflowdoc.Status {
	t.Helper()
	doc, ok := env.fake.Document(id)
	if !ok {
		t.Fatalf("no stored document for %s", id)
	}
	record, err := workflowdoc.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse stored document: %v", err)
	}
	return record.Status()
}

func TestRunCompletesWorkflow(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "pipeline.sh", progressScript)

	_, stderr, err := runCLI(t, []string{"run",
		"--pipeline", "dicom_to_nifti",
		"--project", "PROJ",
		"--data-type", "xnat:mrSessionData",
		"--id", "XNAT_E00042",
		"--label", "session1",
		"-p", "scanids=1,2",
		"--", script}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v (stderr %q)", err, stderr)
	}

	if status := lastStoredStatus(t, env, "XNAT_E00042"); status != workflowdoc.StatusComplete {
		t.Fatalf("final status = %s, want Complete", status)
	}
	// create, environment, two updates, complete
	if stores := env.fake.Stores(); len(stores) != 5 {
		t.Fatalf("expected 5 stores, got %d", len(stores))
	}
	if len(env.sink.Messages()) != 0 {
		t.Fatal("expected no email without --notify")
	}

	written, err := os.ReadFile(dir + "/env.txt")
	if err != nil {
		t.Fatalf("read env capture: %v", err)
	}
	requireContains(t, string(written), "XNATFLOW_RUN_ID=XNAT_E00042")

	store, err := journal.Open(env.cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer store.Close()
	entries, err := store.ListRun(context.Background(), "XNAT_E00042")
	if err != nil {
		t.Fatalf("ListRun: %v", err)
	}
	if len(entries) == 0 || entries[len(entries)-1].Operation != journal.OpClose {
		t.Fatalf("expected journal to end with close, got %+v", entries)
	}
	if entries[0].CorrelationID == "" {
		t.Fatal("expected correlation id on journal entries")
	}

	out, _, err := runCLI(t, []string{"history", "XNAT_E00042"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Run XNAT_E00042")
	requireContains(t, out, "Set Environment")
	requireContains(t, out, "Complete")
}

func TestRunFailureMarksWorkflowFailedAndNotifies(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAdminEmails("admin@example.org"))
	script := testsupport.WriteScript(t, t.TempDir(), "fail.sh", `echo "@@xnatflow progress step=1 percent=10"
echo "segfault" >&2
exit 7
`)

	_, stderr, err := runCLI(t, []string{"run",
		"--pipeline", "dicom_to_nifti",
		"--id", "XNAT_E00043",
		"--notify",
		"--notify-email", "owner@example.org",
		"--", script}, env.configPath)
	if !errors.Is(err, errReported) {
		t.Fatalf("run err = %v, want reported failure", err)
	}
	requireContains(t, stderr, "pipeline XNAT_E00043 failed")

	if status := lastStoredStatus(t, env, "XNAT_E00043"); status != workflowdoc.StatusFailed {
		t.Fatalf("final status = %s, want Failed", status)
	}
	doc, _ := env.fake.Document("XNAT_E00043")
	requireContains(t, doc, "XNAT_E00043.log for errors")

	messages := env.sink.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected one failure email, got %d", len(messages))
	}
	requireContains(t, messages[0].Data, "Subject: Pipeline failed")
	if got := strings.Join(messages[0].Recipients, ","); got != "owner@example.org,admin@example.org" {
		t.Fatalf("recipients = %s", got)
	}
}

func TestRunSuccessNotifiesWhenRequested(t *testing.T) {
	env := setupCLITestEnv(t)
	script := testsupport.WriteScript(t, t.TempDir(), "ok.sh", "true")

	_, _, err := runCLI(t, []string{"run",
		"--pipeline", "dicom_to_nifti",
		"--id", "XNAT_E00044",
		"--notify",
		"-p", "useremail=user@example.org",
		"--", script}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	messages := env.sink.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected one success email, got %d", len(messages))
	}
	requireContains(t, messages[0].Data, "Subject: Pipeline complete")
	requireContains(t, messages[0].Data, "pwd = ********")
}

func TestRunAdoptsQueuedRecord(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.Seed(`<wrk:Workflow xmlns:wrk="http://nrg.wustl.edu/workflow" ID="XNAT_E00045" data_type="xnat:mrSessionData" ExternalID="PROJ" pipeline_name="dicom_to_nifti" status="Queued" launch_time="2024-01-01T00:00:00"/>`)
	script := testsupport.WriteScript(t, t.TempDir(), "ok.sh", "true")

	if _, _, err := runCLI(t, []string{"run", "--pipeline", "dicom_to_nifti", "--id", "XNAT_E00045", "--", script}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}
	// adopted: environment, complete
	if stores := env.fake.Stores(); len(stores) != 2 {
		t.Fatalf("expected 2 stores for adopted record, got %d", len(stores))
	}
	if status := lastStoredStatus(t, env, "XNAT_E00045"); status != workflowdoc.StatusComplete {
		t.Fatalf("final status = %s, want Complete", status)
	}
}

func TestRunRejectsMissingArguments(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"run", "--id", "1", "--", "/bin/true"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(env.fake.Calls()) != 0 {
		t.Fatal("expected no remote calls for invalid arguments")
	}
}

func TestRunRequiresCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run", "--pipeline", "p", "--id", "1"}, env.configPath); err == nil {
		t.Fatal("expected error without a command")
	}
}

func TestRunRefusesLockedRun(t *testing.T) {
	env := setupCLITestEnv(t)
	lock, err := runlock.Acquire(env.cfg.LockDir(), "XNAT_E00046")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, []string{"run", "--pipeline", "p", "--id", "XNAT_E00046", "--", "/bin/true"}, env.configPath)
	if !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}
