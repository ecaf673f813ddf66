// Package admin serves a read-only HTTP view of the bridge.
//
// Ownership boundary:
// - health, handshake status and prometheus metrics endpoints
//
// The admin server never touches the register window; it only reads the
// status copy published by the poll loop.
package admin
