package timeline

import (
	"fmt"
	"strings"
)

// Direction selects which crossings fire a TriggerPoint.
type Direction int

const (
	Increase Direction = iota
	Descending
	Both
)

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Descending:
		return "descending"
	case Both:
		return "both"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection is the inverse of String. The empty string is Increase.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "increase", "up":
		return Increase, nil
	case "descending", "decrease", "down":
		return Descending, nil
	case "both":
		return Both, nil
	}
	return Increase, fmt.Errorf("unknown trigger direction %q", s)
}

// unsetPercent marks "no previous sample yet".
const unsetPercent = -1.0

// TriggerPoint fires once each time a driving percent strictly crosses a
// fixed threshold in the configured direction.
//
// The previous sample used for crossing detection skips samples that sit
// exactly on the threshold, so hovering on it and then moving past counts
// as a single crossing. The first sample after Reset never fires.
type TriggerPoint struct {
	trigger   float64
	direction Direction
	valid     bool

	last      float64
	reference float64
}

// NewTriggerPoint returns an armed trigger point.
func NewTriggerPoint(trigger float64, direction Direction) *TriggerPoint {
	t := &TriggerPoint{
		trigger:   clamp01(trigger),
		direction: direction,
		valid:     true,
	}
	t.Reset()
	return t
}

// Reset forgets the previous sample, as on (re)entry.
func (t *TriggerPoint) Reset() {
	t.last = unsetPercent
	t.reference = unsetPercent
}

func (t *TriggerPoint) Trigger() float64     { return t.trigger }
func (t *TriggerPoint) Direction() Direction { return t.direction }
func (t *TriggerPoint) Valid() bool          { return t.valid }
func (t *TriggerPoint) LastPercent() float64 { return t.last }

// SetValid arms or disarms the point. A disarmed point still tracks the
// percent, so re-arming does not fire for movement made while disarmed.
func (t *TriggerPoint) SetValid(valid bool) { t.valid = valid }

// SetPercent records a sample and reports whether it fired.
func (t *TriggerPoint) SetPercent(percent float64) bool {
	ref := t.reference
	t.last = percent
	if percent != t.trigger {
		t.reference = percent
	}
	if !t.valid || ref == unsetPercent {
		return false
	}
	up := ref < t.trigger && t.trigger < percent
	down := ref > t.trigger && t.trigger > percent
	switch t.direction {
	case Increase:
		return up
	case Descending:
		return down
	case Both:
		return up || down
	}
	return false
}
