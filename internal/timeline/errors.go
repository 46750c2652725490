package timeline

import "errors"

// Authoring findings reported by Validity. Playback never returns these;
// at runtime the same conditions degrade to "skip" or "false".
var (
	ErrMissingState  = errors.New("clip has no bound state")
	ErrEmptyRange    = errors.New("clip range has zero or negative length")
	ErrRangeMismatch = errors.New("clip percent range does not match its time range")
	ErrInvalidSpeed  = errors.New("clip speed must be positive")
)
