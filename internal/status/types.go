package status

import "time"

// Code is the outcome of the most recent update run for a component
type Code string

const (
	// CodeReady means no run has happened since the coordinator was created
	CodeReady Code = "READY"

	// CodePleaseWait means a run is in progress
	CodePleaseWait Code = "PLEASE_WAIT"

	// CodeLookupSuccess means the catalog lookup succeeded and no check was requested
	CodeLookupSuccess Code = "LOOKUP_SUCCESS"

	// CodeUpdateAvailable means a different remote version exists and no download was requested
	CodeUpdateAvailable Code = "UPDATE_AVAILABLE"

	// CodeUpdateDownloaded means the remote release was downloaded and staged
	CodeUpdateDownloaded Code = "UPDATE_DOWNLOADED"

	// CodeNoUpdate means the running version equals the remote version
	CodeNoUpdate Code = "NO_UPDATE"

	// CodeSpecialTag means the running version is a pre-release build and is never updated
	CodeSpecialTag Code = "SPECIAL_TAG"

	// CodeDisabled means updates are disabled by configuration
	CodeDisabled Code = "DISABLED"

	// CodeFailConnection means the catalog could not be reached or returned garbage
	CodeFailConnection Code = "FAIL_CONNECTION"

	// CodeFailDownload means the release could not be downloaded or unpacked
	CodeFailDownload Code = "FAIL_DOWNLOAD"

	// CodeFailNoVersion means the release name did not carry a parseable version
	CodeFailNoVersion Code = "FAIL_NOVERSION"

	// CodeFailBadID means the catalog does not know the resource id
	CodeFailBadID Code = "FAIL_BADID"

	// CodeFailAPIKey means the catalog rejected the configured API key
	CodeFailAPIKey Code = "FAIL_APIKEY"
)

// IsFailure reports whether the code is one of the FAIL_* codes
func (c Code) IsFailure() bool {
	switch c {
	case CodeFailConnection, CodeFailDownload, CodeFailNoVersion, CodeFailBadID, CodeFailAPIKey:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the code describes a finished run
func (c Code) IsTerminal() bool {
	return c != CodeReady && c != CodePleaseWait
}

// Snapshot is the latest known remote release metadata for a component plus the
// status of the run that produced it. Snapshots are values; holders replace them
// wholesale instead of mutating fields in place.
type Snapshot struct {
	// Status is the outcome of the latest run
	Status Code `json:"status"`

	// Name is the full release title as published in the catalog, e.g. "MyPlugin v1.2.3"
	Name string `json:"name,omitempty"`

	// Version is the version parsed out of Name
	Version string `json:"version,omitempty"`

	// Link is the download URL of the release artifact
	Link string `json:"link,omitempty"`

	// ReleaseType is the catalog release channel (release, beta, alpha)
	ReleaseType string `json:"releaseType,omitempty"`

	// GameVersion is the platform version the release targets
	GameVersion string `json:"gameVersion,omitempty"`

	// UpdatedAt is when the snapshot was last written
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NewSnapshot returns the snapshot of a component that has never run
func NewSnapshot() Snapshot {
	return Snapshot{Status: CodeReady}
}

// HasAllValues reports whether every release field is present, i.e. whether a
// previous lookup left behind something a check or download can work against.
func (s Snapshot) HasAllValues() bool {
	return s.Name != "" && s.Version != "" && s.Link != "" && s.ReleaseType != "" && s.GameVersion != ""
}

// WithStatus returns a copy of the snapshot with the given status
func (s Snapshot) WithStatus(code Code) Snapshot {
	s.Status = code
	now := time.Now()
	s.UpdatedAt = &now
	return s
}

// Cleared returns a copy with every release field removed, keeping the status
func (s Snapshot) Cleared() Snapshot {
	return Snapshot{Status: s.Status, UpdatedAt: s.UpdatedAt}
}
