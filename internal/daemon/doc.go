// Package daemon hosts the long-running arklined process: it owns the record
// store, the dispatcher, and the worker pool, guards against concurrent
// instances with a lock file, and resumes interrupted records on startup.
package daemon
