// Package update runs background update checks for plugins.
//
// A Coordinator owns at most one in-flight run (a worker) per component. The
// worker walks the phases Init, Lookup, Check, Download and Idle in order,
// skipping the phases its flags disable, and finishes through a single exit
// point that publishes the final status and runs queued callbacks.
//
// Callers that submit while a run is in flight join it instead of starting a
// second one. Check and Download can still be switched on for a joined run as
// long as the worker has not entered that phase yet; Lookup is fixed when the
// run starts. The TryResponse returned by Submit reports what the caller was
// actually granted.
//
// The phase and the flags of a run live in one immutable value that is
// replaced with compare-and-swap, so a flag upgrade can never slip in after
// the worker has moved past the phase it controls.
package update
