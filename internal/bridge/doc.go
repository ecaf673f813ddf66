// Package bridge owns access to the shared FPGA register window.
//
// Ownership boundary:
// - mapping and releasing the physical window
//
// - volatile 32-bit register loads and stores
//
// Every access goes through sync/atomic so that neither the compiler nor the
// CPU caches or reorders it relative to neighbouring register accesses. The
// other writer is the FPGA/host side, not another goroutine.
package bridge
