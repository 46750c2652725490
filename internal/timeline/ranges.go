package timeline

import "math"

// epsilon is the tolerance used for every "approximately zero" guard.
const epsilon = 1e-9

func nearlyZero(x float64) bool {
	return math.Abs(x) < epsilon
}

// clamp01 clamps x into [0,1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// safeDiv returns a/b, or 0 when b is approximately zero or the result is
// not a finite number.
func safeDiv(a, b float64) float64 {
	if nearlyZero(b) {
		return 0
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// TimeRange is a [Begin,End] interval in seconds.
type TimeRange struct {
	Begin float64 `json:"begin" yaml:"begin"`
	End   float64 `json:"end" yaml:"end"`
}

// Length returns End-Begin. It may be negative; callers treat a
// non-positive length as empty.
func (r TimeRange) Length() float64 {
	return r.End - r.Begin
}

// Contains reports whether t lies in [Begin,End].
func (r TimeRange) Contains(t float64) bool {
	return t >= r.Begin && t <= r.End
}

// PercentRange is a [Begin,End] interval of normalized progress.
type PercentRange struct {
	Begin float64 `json:"begin" yaml:"begin"`
	End   float64 `json:"end" yaml:"end"`
}

// Length returns End-Begin.
func (r PercentRange) Length() float64 {
	return r.End - r.Begin
}

func (r PercentRange) empty() bool {
	return r.Length() < epsilon
}

// Contains reports whether p lies in [Begin,End]. Both ends are inclusive
// so that a segment ending at p=1 observes the final percent.
func (r PercentRange) Contains(p float64) bool {
	return p >= r.Begin && p <= r.End
}

// Normalize maps p linearly so that Begin->0 and End->1. Values outside the
// range map outside [0,1]. An empty range normalizes everything to 0.
func (r PercentRange) Normalize(p float64) float64 {
	return safeDiv(p-r.Begin, r.Length())
}

// Clamp returns p limited to [Begin,End].
func (r PercentRange) Clamp(p float64) float64 {
	if p < r.Begin {
		return r.Begin
	}
	if p > r.End {
		return r.End
	}
	return p
}

// WorkRange is the footprint of a clip inside its parent: where it sits in
// the parent's seconds and the matching slice of the parent's percent.
type WorkRange struct {
	Time    TimeRange    `json:"time" yaml:"time"`
	Percent PercentRange `json:"percent" yaml:"percent"`
}

// SetTimeLength resizes the time footprint to newLength seconds and
// recomputes the percent footprint against the parent's total length. A
// parent length of ~0 yields a zero percent footprint.
func (w *WorkRange) SetTimeLength(newLength, totalParentLength float64) {
	if newLength < 0 {
		newLength = 0
	}
	w.Time.End = w.Time.Begin + newLength
	w.relayout(totalParentLength)
}

// SetBeginTime moves the footprint, keeping its length.
func (w *WorkRange) SetBeginTime(begin, totalParentLength float64) {
	length := w.Time.Length()
	w.Time.Begin = begin
	w.Time.End = begin + length
	w.relayout(totalParentLength)
}

func (w *WorkRange) relayout(total float64) {
	w.Percent.Begin = safeDiv(w.Time.Begin, total)
	w.Percent.End = safeDiv(w.Time.End, total)
}

// wrapLoop folds a raw local fraction (playthroughs elapsed) into a single
// playthrough in [0,1]. An exact integer k >= 1 reads as 1.0, i.e. loop k
// just completed, not loop k+1 just started. Negative fractions mirror the
// rule: they wrap into [0,1) and an exact integer reads as 0.0.
func wrapLoop(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	whole := math.Round(raw)
	if math.Abs(raw-whole) < epsilon {
		if whole >= 1 {
			return 1
		}
		return 0
	}
	return raw - math.Floor(raw)
}
