// Package lifecycle wraps one pipeline run so that it always ends in a
// terminal workflow status.
//
// Scope.Run executes the body and then finalizes: Complete plus an optional
// success notification when the body returns nil; Fail plus an optional
// failure notification, and a report on the error stream, when it returns an
// error or panics. The body's error is always what the caller sees.
// Finalization errors are logged and joined behind it; a panic is re-raised
// after finalization.
package lifecycle
