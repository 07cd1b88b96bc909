package launch_test

import (
	"errors"
	"strings"
	"testing"

	"xnatflow/internal/launch"
	"xnatflow/internal/services"
)

func sampleRun() launch.Run {
	params, _ := launch.ParseParameterFlags([]string{
		"scanids=3,1",
		"project=proj",
		"useremail=alice@example.org",
		"adminemail=admin@example.org",
	})
	return launch.Run{
		Arguments: launch.Arguments{
			Host:         "https://xnat.example.org",
			User:         "alice",
			Password:     "hunter2",
			Pipeline:     "/pipelines/dicom_to_nifti.xml",
			Project:      "proj",
			DataType:     "xnat:mrSessionData",
			ID:           "XNAT_E0001",
			Label:        "session1",
			NotifyFlag:   true,
			NotifyEmails: []string{"alice@example.org"},
		},
		Parameters:  params,
		LogFile:     "/var/log/xnatflow/XNAT_E0001.log",
		AdminEmails: []string{"site@example.org"},
	}
}

func TestParseParameterFlagsAccumulatesInOrder(t *testing.T) {
	params, err := launch.ParseParameterFlags([]string{"scanids=1,2", "subject=S1", "scanids=3", "empty="})
	if err != nil {
		t.Fatalf("ParseParameterFlags: %v", err)
	}
	if len(params) != 3 || params[0].Name != "scanids" || params[1].Name != "subject" {
		t.Fatalf("unexpected order: %+v", params)
	}
	if got := strings.Join(params.Get("scanids"), ","); got != "1,2,3" {
		t.Fatalf("unexpected scanids %q", got)
	}
	if v, ok := params.First("subject"); !ok || v != "S1" {
		t.Fatalf("unexpected subject %q %v", v, ok)
	}
	if _, ok := params.First("empty"); ok {
		t.Fatal("empty parameter should have no first value")
	}
	if _, ok := params.First("missing"); ok {
		t.Fatal("missing parameter should not resolve")
	}
}

func TestParseParameterFlagsRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"novalue", "=x"} {
		if _, err := launch.ParseParameterFlags([]string{raw}); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", raw, err)
		}
	}
}

func TestSummaryRedactsPasswordAndSorts(t *testing.T) {
	summary := sampleRun().Summary()

	if strings.Contains(summary, "hunter2") {
		t.Fatalf("password leaked: %s", summary)
	}
	if !strings.Contains(summary, "    pwd = ********\n") {
		t.Fatalf("missing redacted password: %s", summary)
	}
	if !strings.HasPrefix(summary, "log file: /var/log/xnatflow/XNAT_E0001.log\n") {
		t.Fatalf("missing log file line: %s", summary)
	}
	if strings.Index(summary, "    dataType =") > strings.Index(summary, "    host =") {
		t.Fatalf("arguments not sorted: %s", summary)
	}
	params := summary[strings.Index(summary, "parameters:"):]
	if strings.Index(params, "    adminemail") > strings.Index(params, "    scanids = 3, 1") {
		t.Fatalf("parameters not sorted: %s", params)
	}

	noLog := sampleRun()
	noLog.LogFile = ""
	if !strings.HasPrefix(noLog.Summary(), "no log file (output is stdout/stderr)\n") {
		t.Fatalf("unexpected no-log summary: %s", noLog.Summary())
	}
}

func TestSummaryRedactsPasswordLikeExtraArguments(t *testing.T) {
	run := sampleRun()
	run.Arguments.Extra = map[string]string{
		"password":  "hunter2",
		"xnat_pass": "pw2",
		"API_Token": "tok3",
		"session":   "kept",
	}
	summary := run.Summary()

	for _, secret := range []string{"hunter2", "pw2", "tok3"} {
		if strings.Contains(summary, secret) {
			t.Fatalf("%q leaked: %s", secret, summary)
		}
	}
	for _, line := range []string{"    password = ********\n", "    xnat_pass = ********\n", "    API_Token = ********\n", "    session = kept\n"} {
		if !strings.Contains(summary, line) {
			t.Fatalf("missing %q in summary: %s", line, summary)
		}
	}
}

func TestRecipientsUnionKeepsDuplicates(t *testing.T) {
	got := sampleRun().Recipients()
	want := []string{"alice@example.org", "alice@example.org", "admin@example.org", "site@example.org"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected recipients %v", got)
	}
}

func TestRunIDPrefersWorkflowID(t *testing.T) {
	run := sampleRun()
	if run.RunID() != "XNAT_E0001" {
		t.Fatalf("unexpected fallback run id %q", run.RunID())
	}
	run.Arguments.WorkflowID = "wf-9"
	if run.RunID() != "wf-9" || run.SynthesisInput().RunID != "wf-9" {
		t.Fatalf("expected workflow id to win")
	}
}

func TestValidate(t *testing.T) {
	if err := sampleRun().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	run := sampleRun()
	run.Arguments.Host = "ftp://xnat.example.org"
	if err := run.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for scheme, got %v", err)
	}
	run = sampleRun()
	run.Arguments.User = ""
	run.Arguments.ID = ""
	err := run.Validate()
	if err == nil || !strings.Contains(err.Error(), "u, id") {
		t.Fatalf("expected missing u and id, got %v", err)
	}
}

func TestEnvironmentMirrorsArguments(t *testing.T) {
	env := sampleRun().Environment()
	if env.Pipeline != "/pipelines/dicom_to_nifti.xml" || env.User != "alice" || env.ID != "XNAT_E0001" || !env.Notify {
		t.Fatalf("unexpected environment %+v", env)
	}
	if len(env.Parameters) != 4 || env.Parameters[0].Name != "scanids" {
		t.Fatalf("parameter order not preserved: %+v", env.Parameters)
	}
}
