// Package tools runs the external generators the bridge dispatches to.
//
// Ownership boundary:
// - process spawning from explicit argument lists
//
// - exit status and bounded output capture
//
// Nothing here goes through a shell; argument vectors reach the executable
// exactly as built.
package tools
