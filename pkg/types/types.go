// Package types defines the wire and persistence model shared by the
// scheduler, journal, snapshot and control-plane packages.
package types

// PlayerID identifies a player within a scheduler scope.
type PlayerID string

// EventKind classifies a recorded playback event.
type EventKind string

const (
	EventState   EventKind = "STATE"   // player state transition
	EventContent EventKind = "CONTENT" // active leaf set changed
	EventFinish  EventKind = "FINISH"  // player reached percent 1
	EventTrigger EventKind = "TRIGGER" // trigger point fired
)

// PlayerStatus is a point-in-time view of one player, used by status
// queries and the control plane.
type PlayerStatus struct {
	ID       PlayerID `json:"id"`
	State    string   `json:"state"`
	Elapsed  float64  `json:"elapsed"`  // seconds
	Duration float64  `json:"duration"` // seconds
	Percent  float64  `json:"percent"`  // [0,1]
	Speed    float64  `json:"speed"`
	Loop     bool     `json:"loop"`
	Active   []string `json:"active,omitempty"` // names of the active leaf states
}

// PlayerSnapshot is the persisted position of a player.
type PlayerSnapshot struct {
	ID        PlayerID `json:"id"`
	State     string   `json:"state"`
	Elapsed   float64  `json:"elapsed"`
	Percent   float64  `json:"percent"`
	UpdatedAt int64    `json:"updated_at"` // Unix ms
}

// SnapshotData is the full persisted scheduler state.
type SnapshotData struct {
	Players   map[PlayerID]*PlayerSnapshot `json:"players"`
	SchemaVer int                          `json:"schema_ver"`
	LastSeq   uint64                       `json:"last_seq"` // last journal seq folded into this snapshot
}
