// Package main hosts the xnatflow CLI entrypoint and command graph.
//
// "xnatflow run" wraps a pipeline command: it finds or creates the run's
// workflow record on XNAT, forwards the command's progress lines to it, and
// marks the record Complete or Failed when the command exits, emailing the
// configured recipients. The remaining commands inspect the local push
// journal, check connectivity, scaffold configuration, and send a test
// notification.
package main
