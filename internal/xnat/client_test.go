package xnat_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"xnatflow/internal/services"
	"xnatflow/internal/testsupport"
	"xnatflow/internal/xnat"
)

const seededWorkflow = `<?xml version="1.0" encoding="UTF-8"?>
<wrk:Workflow xmlns:wrk="http://nrg.wustl.edu/workflow" ID="run-42" data_type="xnat:mrSessionData" ExternalID="proj" pipeline_name="/pipelines/dicom_to_nifti.xml" status="Queued" launch_time="2024-05-01T10:00:00"/>`

func newClient(t *testing.T, fake *testsupport.FakeXNAT) *xnat.Client {
	t.Helper()
	client, err := xnat.NewClient(xnat.Options{
		Identity: xnat.Identity{BaseURL: fake.URL() + "/", Username: fake.Username, Password: fake.Password},
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRejectsUnsupportedScheme(t *testing.T) {
	_, err := xnat.NewClient(xnat.Options{Identity: xnat.Identity{BaseURL: "ftp://xnat.example.org"}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := xnat.NewClient(xnat.Options{Identity: xnat.Identity{BaseURL: "https://"}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing host, got %v", err)
	}
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	client, err := xnat.NewClient(xnat.Options{Identity: xnat.Identity{BaseURL: "https://xnat.example.org/"}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.BaseURL() != "https://xnat.example.org" {
		t.Fatalf("unexpected base url %q", client.BaseURL())
	}
}

func TestObtainReturnsFreshTokens(t *testing.T) {
	fake := testsupport.NewFakeXNAT(t)
	client := newClient(t, fake)
	ctx := context.Background()

	first, err := client.Obtain(ctx)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	second, err := client.Obtain(ctx)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	if first.Token == "" || first.Token == second.Token {
		t.Fatalf("expected distinct tokens, got %q and %q", first.Token, second.Token)
	}
	if first.Fingerprint() == "" || strings.Contains(first.Fingerprint(), first.Token) {
		t.Fatalf("fingerprint must not expose token: %q", first.Fingerprint())
	}
}

func TestObtainRejectsBadCredentials(t *testing.T) {
	fake := testsupport.NewFakeXNAT(t)
	client, err := xnat.NewClient(xnat.Options{
		Identity: xnat.Identity{BaseURL: fake.URL(), Username: fake.Username, Password: "wrong"},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Obtain(context.Background())
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestSearchFetchStoreClose(t *testing.T) {
	fake := testsupport.NewFakeXNAT(t)
	key := fake.Seed(seededWorkflow)
	client := newClient(t, fake)
	ctx := context.Background()

	session, err := client.Obtain(ctx)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	ids, err := client.Search(ctx, session, "run-42")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 1 || ids[0] != key {
		t.Fatalf("unexpected search result %v (want [%s])", ids, key)
	}

	missing, err := client.Search(ctx, session, "run-unknown")
	if err != nil {
		t.Fatalf("Search unknown: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no matches, got %v", missing)
	}

	body, err := client.FetchWorkflow(ctx, session, key)
	if err != nil {
		t.Fatalf("FetchWorkflow: %v", err)
	}
	if !strings.Contains(string(body), `ID="run-42"`) {
		t.Fatalf("unexpected document: %s", body)
	}

	updated := strings.Replace(seededWorkflow, `status="Queued"`, `status="Running"`, 1)
	if err := client.Store(ctx, session, updated); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := client.CloseSession(ctx, session); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	stored, ok := fake.Document("run-42")
	if !ok || !strings.Contains(stored, `status="Running"`) {
		t.Fatalf("expected stored running document, got %q", stored)
	}
	for _, call := range fake.Calls() {
		if call.Name != "login" && call.Session != session.Token {
			t.Fatalf("call %s used session %q, want %q", call.Name, call.Session, session.Token)
		}
	}
}

func TestStoreFaultIsClassified(t *testing.T) {
	fake := testsupport.NewFakeXNAT(t)
	fake.Set(func(f *testsupport.FakeXNAT) { f.FailStore = true })
	client := newClient(t, fake)
	ctx := context.Background()

	session, err := client.Obtain(ctx)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	err = client.Store(ctx, session, seededWorkflow)
	if !errors.Is(err, services.ErrRPCFault) {
		t.Fatalf("expected fault, got %v", err)
	}
	var fault *xnat.FaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected *FaultError, got %T", err)
	}
	if fault.Message != "store rejected" {
		t.Fatalf("unexpected fault message %q", fault.Message)
	}
	if services.Kind(err) != "fault" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
}

func TestCallWithExpiredSessionIsTransportError(t *testing.T) {
	fake := testsupport.NewFakeXNAT(t)
	client := newClient(t, fake)

	_, err := client.Search(context.Background(), xnat.Session{Token: "stale"}, "run-42")
	if !errors.Is(err, services.ErrRPCTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchWorkflowRejectsEmptyID(t *testing.T) {
	fake := testsupport.NewFakeXNAT(t)
	client := newClient(t, fake)

	_, err := client.FetchWorkflow(context.Background(), xnat.Session{Token: "x"}, "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
