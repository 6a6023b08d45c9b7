package update

import (
	"strings"
	"sync/atomic"
)

// PhaseFlags selects which phases of a run do work
type PhaseFlags struct {
	Lookup   bool `json:"lookup"`
	Check    bool `json:"check"`
	Download bool `json:"download"`
}

// Any reports whether at least one flag is set
func (f PhaseFlags) Any() bool {
	return f.Lookup || f.Check || f.Download
}

// Has reports whether the flag controlling phase p is set
func (f PhaseFlags) Has(p Phase) bool {
	switch p {
	case PhaseLookup:
		return f.Lookup
	case PhaseCheck:
		return f.Check
	case PhaseDownload:
		return f.Download
	default:
		return false
	}
}

// With returns a copy with the flag controlling phase p set
func (f PhaseFlags) With(p Phase) PhaseFlags {
	switch p {
	case PhaseLookup:
		f.Lookup = true
	case PhaseCheck:
		f.Check = true
	case PhaseDownload:
		f.Download = true
	}
	return f
}

// Intersect returns the flags set in both f and other
func (f PhaseFlags) Intersect(other PhaseFlags) PhaseFlags {
	return PhaseFlags{
		Lookup:   f.Lookup && other.Lookup,
		Check:    f.Check && other.Check,
		Download: f.Download && other.Download,
	}
}

// String lists the set flags, e.g. "lookup+check"
func (f PhaseFlags) String() string {
	var parts []string
	if f.Lookup {
		parts = append(parts, "lookup")
	}
	if f.Check {
		parts = append(parts, "check")
	}
	if f.Download {
		parts = append(parts, "download")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// runState is the phase of a run together with its flags. Values are never
// modified once published; every change installs a new one.
type runState struct {
	phase Phase
	flags PhaseFlags
}

// stateCell holds the current runState of a worker
type stateCell struct {
	current atomic.Pointer[runState]
}

func newStateCell(flags PhaseFlags) *stateCell {
	c := &stateCell{}
	c.current.Store(&runState{phase: PhaseInit, flags: flags})
	return c
}

func (c *stateCell) load() runState {
	return *c.current.Load()
}

// tryFlag switches on the flag controlling phase p. It succeeds when the flag
// is already set or the run has not entered p yet. Lookup is decided when the
// run is created and never changes.
func (c *stateCell) tryFlag(p Phase) bool {
	for {
		cur := c.current.Load()
		if cur.flags.Has(p) {
			return true
		}
		if p == PhaseLookup || cur.phase >= p {
			return false
		}
		next := &runState{phase: cur.phase, flags: cur.flags.With(p)}
		if c.current.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// advance moves the run into phase p before any of p's work starts and returns
// the installed state. The flags of the returned state for p and every earlier
// phase are final. Phases never move backwards.
func (c *stateCell) advance(p Phase) runState {
	for {
		cur := c.current.Load()
		if cur.phase >= p {
			return *cur
		}
		next := &runState{phase: p, flags: cur.flags}
		if c.current.CompareAndSwap(cur, next) {
			return *next
		}
	}
}
