// Package pipeline drives records through their ordered processing steps:
// the dispatcher picks the next runnable step, the worker pool executes its
// handler, and the handler's outcome determines whether the record pauses
// for a human, halts on error, or continues to the next step.
package pipeline
