// Package journal keeps a local SQLite audit trail of every workflow push and
// session close issued by xnatflow.
//
// The remote record only shows the latest state of a run. The journal shows
// how it got there, including pushes that failed and search-phase failures
// that caused a fresh record to be synthesized. Rows are append-only and keyed
// by run id.
package journal
