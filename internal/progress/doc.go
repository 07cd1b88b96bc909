// Package progress reads the line protocol pipeline commands use to report
// where they are, and forwards each report to the workflow tracker.
//
// A progress line looks like:
//
//	@@xnatflow progress step=<id> percent=<float> desc=<text>
//
// desc is optional and runs to the end of the line. Any other output is
// copied to the run log untouched.
package progress
