// Package logging configures slog output for arkline.
//
// Two handler formats are supported: a compact console format for interactive
// use and JSON for machine consumption. Context helpers derive standardized
// fields (record id, step, correlation id) so every log line emitted during a
// step execution can be traced back to the dispatch that caused it.
package logging
