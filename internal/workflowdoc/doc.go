// Package workflowdoc models the XNAT workflow status document that mirrors
// one pipeline run.
//
// A Record is an immutable value over the XML tree. Every With* builder
// returns a new Record backed by a copy of the document, so a tracker can keep
// its committed record untouched until the remote push for the new one has
// succeeded. Serialize is pure and may be called any number of times.
package workflowdoc
