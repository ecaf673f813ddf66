// Package dispatch maps bridge command codes to external tool invocations.
//
// Ownership boundary:
// - command taxonomy (code -> kind)
//
// - per-kind argument templates
//
// - one synchronous invocation per known command
//
// A failed invocation is a result, not an error: the handshake acknowledges
// every command whatever the outcome.
package dispatch
