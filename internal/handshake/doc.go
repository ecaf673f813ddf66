// Package handshake runs the valid/done protocol on the register window.
//
// States cycle Idle -> CommandPending -> Processing -> Completed -> Idle.
// Exactly one command is in flight at any time. Done is raised only while
// the host holds valid, and dropped only after the host has released it.
// Nothing in the cycle has a timeout: a tool that never exits or a host that
// never clears valid stalls the bridge, which is reported but not recovered.
package handshake
