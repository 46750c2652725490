package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TimelineVersion is the only document version this package reads.
const TimelineVersion = "workclip.v1"

var (
	ErrUnknownReference  = errors.New("config: unknown reference")
	ErrCycle             = errors.New("config: container reference cycle")
	ErrUnknownEffectKind = errors.New("config: unknown effect kind")
	ErrVersion           = errors.New("config: unsupported timeline version")
)

// Effect kinds.
const (
	KindTween   = "tween"
	KindTrigger = "trigger"
	KindHold    = "hold"
)

// Timeline is an authored timeline document.
type Timeline struct {
	Version    string                   `yaml:"version"`
	Effects    map[string]EffectSpec    `yaml:"effects"`
	Containers map[string]ContainerSpec `yaml:"containers"`
	Players    []PlayerSpec             `yaml:"players"`
}

// EffectSpec describes one leaf state. Fields apply per kind.
type EffectSpec struct {
	Kind     string  `yaml:"kind"`
	Duration float64 `yaml:"duration,omitempty"` // tween, hold
	From     float64 `yaml:"from,omitempty"`     // tween
	To       float64 `yaml:"to,omitempty"`       // tween
	Ease     string  `yaml:"ease,omitempty"`     // tween

	Percent   float64 `yaml:"percent,omitempty"`   // trigger
	Direction string  `yaml:"direction,omitempty"` // trigger
	Callback  string  `yaml:"callback,omitempty"`  // trigger
}

// ContainerSpec is an ordered list of clips.
type ContainerSpec struct {
	Clips []ClipSpec `yaml:"clips"`
}

// ClipSpec places a state reference on its container's time axis. Speed
// and Loops are two views of one ratio; when both appear, the one written
// later in the document wins.
type ClipSpec struct {
	State  string   `yaml:"state"`
	Begin  float64  `yaml:"begin"`
	Length float64  `yaml:"length"`
	Speed  *float64 `yaml:"speed,omitempty"`
	Loops  *float64 `yaml:"loops,omitempty"`

	loopsLast bool
}

// UnmarshalYAML records whether loops follows speed.
func (c *ClipSpec) UnmarshalYAML(node *yaml.Node) error {
	type plain ClipSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = ClipSpec(p)
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			switch node.Content[i].Value {
			case "speed":
				c.loopsLast = false
			case "loops":
				c.loopsLast = true
			}
		}
	}
	return nil
}

// LoopsWin reports whether Loops should be applied after Speed.
func (c ClipSpec) LoopsWin() bool {
	if c.Loops == nil {
		return false
	}
	return c.Speed == nil || c.loopsLast
}

// PlayerSpec describes a player bound to a container.
type PlayerSpec struct {
	ID      string `yaml:"id"`
	Content string `yaml:"content"`
	// Duration defaults to the content's time length.
	Duration       *float64 `yaml:"duration,omitempty"`
	Speed          float64  `yaml:"speed,omitempty"`
	Loop           bool     `yaml:"loop,omitempty"`
	AutoPlay       bool     `yaml:"auto_play,omitempty"`
	FinishCallback string   `yaml:"finish_callback,omitempty"`
	// SetPercentOnExit forces the content to this percent when the player exits.
	SetPercentOnExit *float64 `yaml:"set_percent_on_exit,omitempty"`
}

// LoadTimeline reads and checks a timeline document.
func LoadTimeline(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTimeline(data)
}

// ParseTimeline decodes a timeline document and checks its references.
func ParseTimeline(data []byte) (*Timeline, error) {
	var doc Timeline
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse timeline: %w", err)
	}
	if err := doc.Check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Check verifies the version, effect kinds, references and the absence of
// container cycles. All findings are joined.
func (d *Timeline) Check() error {
	var errs []error
	if d.Version != TimelineVersion {
		errs = append(errs, fmt.Errorf("%w: %q (want %q)", ErrVersion, d.Version, TimelineVersion))
	}
	for _, name := range sortedNames(d.Effects) {
		switch d.Effects[name].Kind {
		case KindTween, KindTrigger, KindHold:
		default:
			errs = append(errs, fmt.Errorf("%w: effect %q has kind %q", ErrUnknownEffectKind, name, d.Effects[name].Kind))
		}
		if _, clash := d.Containers[name]; clash {
			errs = append(errs, fmt.Errorf("config: %q is both an effect and a container", name))
		}
	}
	for _, name := range sortedNames(d.Containers) {
		for i, clip := range d.Containers[name].Clips {
			if !d.defined(clip.State) {
				errs = append(errs, fmt.Errorf("%w: container %q clip %d state %q", ErrUnknownReference, name, i, clip.State))
			}
		}
	}
	errs = append(errs, d.checkCycles()...)

	seen := make(map[string]bool)
	for i, p := range d.Players {
		if _, ok := d.Containers[p.Content]; !ok {
			errs = append(errs, fmt.Errorf("%w: player %d content %q", ErrUnknownReference, i, p.Content))
		}
		if p.ID != "" && seen[p.ID] {
			errs = append(errs, fmt.Errorf("config: duplicate player id %q", p.ID))
		}
		seen[p.ID] = true
	}
	return errors.Join(errs...)
}

func (d *Timeline) defined(name string) bool {
	if _, ok := d.Effects[name]; ok {
		return true
	}
	_, ok := d.Containers[name]
	return ok
}

// checkCycles runs a DFS over container references.
func (d *Timeline) checkCycles() []error {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(d.Containers))
	var errs []error
	var visit func(name string, path []string)
	visit = func(name string, path []string) {
		switch marks[name] {
		case visiting:
			errs = append(errs, fmt.Errorf("%w: %v", ErrCycle, append(path, name)))
			return
		case done:
			return
		}
		marks[name] = visiting
		for _, clip := range d.Containers[name].Clips {
			if _, ok := d.Containers[clip.State]; ok {
				visit(clip.State, append(path, name))
			}
		}
		marks[name] = done
	}
	for _, name := range sortedNames(d.Containers) {
		if marks[name] == unvisited {
			visit(name, nil)
		}
	}
	return errs
}

// Player returns the player spec with the given id.
func (d *Timeline) Player(id string) (PlayerSpec, bool) {
	for _, p := range d.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerSpec{}, false
}

// CallbackNames lists every finish and trigger callback the document
// references, sorted and without duplicates.
func (d *Timeline) CallbackNames() []string {
	seen := make(map[string]struct{})
	for _, p := range d.Players {
		if p.FinishCallback != "" {
			seen[p.FinishCallback] = struct{}{}
		}
	}
	for _, e := range d.Effects {
		if e.Callback != "" {
			seen[e.Callback] = struct{}{}
		}
	}
	return sortedNames(seen)
}
