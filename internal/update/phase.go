package update

import "fmt"

// Phase is one stage of an update run. Phases are totally ordered.
type Phase int32

const (
	// PhaseInit reads the settings of the run
	PhaseInit Phase = iota
	// PhaseLookup asks the catalog for the latest release
	PhaseLookup
	// PhaseCheck compares the running version with the latest release
	PhaseCheck
	// PhaseDownload downloads and stages the latest release
	PhaseDownload
	// PhaseIdle means no run is in flight
	PhaseIdle
)

var phaseNames = [...]string{
	PhaseInit:     "init",
	PhaseLookup:   "lookup",
	PhaseCheck:    "check",
	PhaseDownload: "download",
	PhaseIdle:     "idle",
}

// String implements fmt.Stringer
func (p Phase) String() string {
	if p < PhaseInit || p > PhaseIdle {
		return fmt.Sprintf("phase(%d)", int32(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name written by MarshalText
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}
