package journal

import "github.com/ChuLiYu/workclip/pkg/types"

// ============================================================================
// Journal Type Definitions
// Responsibility: Define the records written to the playback journal
// ============================================================================

// Event represents one journal record
type Event struct {
	Seq       uint64          `json:"seq"`              // Sequence number (monotonic across rotations)
	Session   string          `json:"session"`          // Journal session that wrote the event
	Kind      types.EventKind `json:"kind"`             // Event kind
	PlayerID  types.PlayerID  `json:"player_id"`        // Player the event belongs to
	From      string          `json:"from,omitempty"`   // Previous state / active set
	To        string          `json:"to,omitempty"`     // New state / active set
	Percent   float64         `json:"percent"`          // Player percent when the event happened
	Elapsed   float64         `json:"elapsed"`          // Player elapsed seconds
	Detail    string          `json:"detail,omitempty"` // Free-form detail (callback name, trigger name)
	Timestamp int64           `json:"timestamp"`        // Unix millisecond timestamp
	Checksum  uint32          `json:"checksum"`         // CRC32 checksum
}

// EventHandler processes one event during Replay
type EventHandler func(event Event) error
