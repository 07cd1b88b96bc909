// Package tracker mirrors one pipeline run's status into its remote workflow
// record.
//
// Open performs find-or-create: it searches for a pre-run record for the run
// id and adopts the first match, or synthesizes a fresh Running record and
// pushes it. After that every mutation is pushed immediately with a newly
// obtained session, and the in-memory record only advances once the push
// succeeds. Complete and Fail are terminal; they close the remote session and
// reject any further transition with ErrTerminal.
//
// A Tracker is owned by a single run and is not safe for concurrent use.
package tracker
