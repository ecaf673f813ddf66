// Package daemon wires the bridge process together.
//
// Ownership boundary:
// - acquiring and releasing the register window
//
// - building the dispatcher and poll loop
//
// - optional admin server lifecycle
//
// Lifecycle order:
// - open window -> build dispatcher -> build loop -> (admin) -> poll
//
// - the window is released on every exit path
package daemon
