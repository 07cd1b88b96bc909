// Package preflight provides readiness checks for the services and paths
// xnatflow depends on.
//
// The CLI "xnatflow check" command runs RunAll and renders each Result as a
// table row. The individual checks are also usable on their own: CheckXNAT
// logs in and closes the session again, CheckMailRelay only opens a TCP
// connection to the relay, and CheckDirectoryAccess inspects permissions.
//
// Checks never return errors; failures are reported through Result.Detail.
package preflight
