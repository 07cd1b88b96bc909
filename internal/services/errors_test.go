package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"xnatflow/internal/services"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := services.Wrap(services.ErrRPCTransport, "xnat", "StoreXML.store", "post envelope", cause)

	if !errors.Is(err, services.ErrRPCTransport) {
		t.Fatalf("expected transport marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "xnat: StoreXML.store: post envelope") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapDefaultsDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrRPCTransport) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestKindClassifiesMarkers(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrAuthentication, "xnat", "login", "", nil), "authentication"},
		{services.Wrap(services.ErrRPCFault, "xnat", "search", "", nil), "fault"},
		{services.Wrap(services.ErrRPCTransport, "xnat", "search", "", nil), "transport"},
		{services.Wrap(services.ErrSync, "tracker", "update", "", nil), "sync"},
		{errors.New("plain"), "unknown"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDowngradable(t *testing.T) {
	if !services.Downgradable(services.Wrap(services.ErrRPCTransport, "xnat", "search", "", nil)) {
		t.Fatal("expected transport error to be downgradable")
	}
	if !services.Downgradable(services.Wrap(services.ErrRPCFault, "xnat", "search", "", nil)) {
		t.Fatal("expected fault to be downgradable")
	}
	canceled := services.Wrap(services.ErrRPCTransport, "xnat", "search", "", context.Canceled)
	if services.Downgradable(canceled) {
		t.Fatal("expected cancellation to propagate")
	}
	if services.Downgradable(errors.New("other")) {
		t.Fatal("expected unmarked error to propagate")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "42")
	ctx = services.WithOperation(ctx, "update")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "42" {
		t.Fatalf("unexpected run id %q", id)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "update" {
		t.Fatalf("unexpected operation %q", op)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("unexpected request id %q", rid)
	}
	if got := services.WithRunID(ctx, ""); got != ctx {
		t.Fatal("expected empty run id to leave context untouched")
	}
}
