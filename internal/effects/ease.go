package effects

import (
	"fmt"
	"strings"
)

// Ease maps a linear progress in [0,1] to an eased progress in [0,1].
type Ease func(t float64) float64

var eases = map[string]Ease{
	"linear":   func(t float64) float64 { return t },
	"smooth":   func(t float64) float64 { return t * t * (3 - 2*t) },
	"smoother": func(t float64) float64 { return t * t * t * (t*(6*t-15) + 10) },
	"in_quad":  func(t float64) float64 { return t * t },
	"out_quad": func(t float64) float64 { return t * (2 - t) },
	"in_out_cubic": func(t float64) float64 {
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := -2*t + 2
		return 1 - u*u*u/2
	},
}

// EaseNames lists the registered easing curves.
func EaseNames() []string {
	return []string{"linear", "smooth", "smoother", "in_quad", "out_quad", "in_out_cubic"}
}

// ParseEase looks up an easing curve by name. An empty name is linear.
func ParseEase(name string) (Ease, error) {
	if name == "" {
		return eases["linear"], nil
	}
	e, ok := eases[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("effects: unknown ease %q", name)
	}
	return e, nil
}
