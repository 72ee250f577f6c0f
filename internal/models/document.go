package models

import "fmt"

// Control describes one range input of the editor surface.
type Control struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
	Value float64 `json:"value"`
}

// SyncState is the lifecycle state of an editor session.
type SyncState int

const (
	StateUninitialized SyncState = iota
	StateReady
	StateSaving
	StateReverting
	StateDisposed
)

func (s SyncState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateReverting:
		return "reverting"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// MarshalText lets SyncState appear as a string in JSON.
func (s SyncState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses the names produced by MarshalText.
func (s *SyncState) UnmarshalText(b []byte) error {
	for st := StateUninitialized; st <= StateDisposed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown sync state %q", b)
}

// Session is the API view of one open document.
type Session struct {
	ID       string    `json:"id"`
	URI      string    `json:"uri"`
	State    SyncState `json:"state"`
	Dirty    bool      `json:"dirty"`
	Controls []Control `json:"controls,omitempty"`
}

// EventKind names a document event.
type EventKind string

const (
	// EventEdit fires after every accepted value change. Hosts use it to
	// mark the document dirty.
	EventEdit          EventKind = "edit"
	EventSaved         EventKind = "saved"
	EventReverted      EventKind = "reverted"
	EventChangedOnDisk EventKind = "changedOnDisk"
	EventDisposed      EventKind = "disposed"
)

// Event is published on the event bus whenever a document changes.
type Event struct {
	Kind     EventKind `json:"kind"`
	Document string    `json:"document"`
	URI      string    `json:"uri"`
	Dirty    bool      `json:"dirty"`
	Key      string    `json:"key,omitempty"`
	Value    *float64  `json:"value,omitempty"`
}

// BackupInfo identifies a backup artifact.
type BackupInfo struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// Info is returned by GET /api/info.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Pattern  string `json:"pattern"`
	Open     int    `json:"open_documents"`
	// Dropped counts events discarded because a subscriber fell behind.
	Dropped  uint64 `json:"dropped_events"`
}
