// Package services defines shared utilities consumed by the workflow tracker,
// the lifecycle scope, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, remote operation names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (authentication, transport, fault, sync, notification) so callers can
//     decide which ones to downgrade and which ones to propagate.
//
// Use these helpers when wiring new remote calls so operational behaviour
// (error handling, observability) stays uniform across the client.
package services
