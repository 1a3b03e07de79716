// Package handlers contains the built-in step handlers: filename parsing,
// registry lookup, computed-field generation, text extraction, identifier
// minting, and translation. Handlers report recoverable domain failures by
// marking their step with a readable log message; only genuinely unexpected
// conditions are returned as errors.
package handlers
