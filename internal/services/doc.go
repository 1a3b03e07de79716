// Package services holds cross-cutting support for the external service
// adapters: error classification shared with the pipeline, and context
// annotation helpers used for structured logging.
package services
