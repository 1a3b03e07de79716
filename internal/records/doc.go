// Package records persists the archival record aggregate: records, their
// pages, and the ordered processing steps the pipeline drives. All pipeline
// state lives here; the dispatcher and handlers are stateless between calls.
package records
