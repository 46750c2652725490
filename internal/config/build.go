package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ChuLiYu/workclip/internal/effects"
	"github.com/ChuLiYu/workclip/internal/timeline"
)

// Env carries the runtime collaborators wired into built graphs.
type Env struct {
	Callbacks *timeline.Callbacks
	Observers *timeline.Observers
}

// Built is one player and the object graph it drives. Every Build call
// returns fresh instances, so two players never share a leaf.
type Built struct {
	Spec     PlayerSpec
	Player   *timeline.Player
	Content  *timeline.WorkClipContainer
	Triggers []*effects.Trigger
	Tweens   []*effects.Tween
}

type builder struct {
	doc *Timeline
	env Env
	out *Built
}

// Build constructs the player described by spec. The player is not
// entered.
func (d *Timeline) Build(spec PlayerSpec, env Env) (*Built, error) {
	out := &Built{Spec: spec}
	b := &builder{doc: d, env: env, out: out}
	content, err := b.container(spec.Content, nil)
	if err != nil {
		return nil, err
	}
	out.Content = content

	duration := content.GetTimeLength()
	if spec.Duration != nil {
		duration = *spec.Duration
	}
	opts := timeline.PlayerOptions{
		Name:           spec.ID,
		Duration:       duration,
		Speed:          spec.Speed,
		Loop:           spec.Loop,
		AutoPlay:       spec.AutoPlay,
		FinishCallback: spec.FinishCallback,
		Callbacks:      env.Callbacks,
		Observers:      env.Observers,
	}
	if spec.SetPercentOnExit != nil {
		opts.SetPercentOnExit = true
		opts.ExitPercent = *spec.SetPercentOnExit
	}
	out.Player = timeline.NewPlayer(content, opts)
	return out, nil
}

// BuildAll builds every player in document order.
func (d *Timeline) BuildAll(env Env) ([]*Built, error) {
	out := make([]*Built, 0, len(d.Players))
	for _, spec := range d.Players {
		b, err := d.Build(spec, env)
		if err != nil {
			return nil, fmt.Errorf("config: player %q: %w", spec.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Validity builds every player and reports authoring problems in its
// content tree, plus player durations that disagree with their content.
func (d *Timeline) Validity() error {
	if err := d.Check(); err != nil {
		return err
	}
	var errs []error
	for _, spec := range d.Players {
		b, err := d.Build(spec, Env{})
		if err != nil {
			errs = append(errs, fmt.Errorf("player %q: %w", spec.ID, err))
			continue
		}
		if err := b.Content.Validity(); err != nil {
			errs = append(errs, fmt.Errorf("player %q: %w", spec.ID, err))
		}
		if b.Player.Duration() <= 0 {
			errs = append(errs, fmt.Errorf("player %q: duration %g finishes on the first tick", spec.ID, b.Player.Duration()))
		}
	}
	return errors.Join(errs...)
}

func (b *builder) state(name string, path []string) (timeline.PlayableState, error) {
	if spec, ok := b.doc.Effects[name]; ok {
		return b.effect(name, spec)
	}
	if _, ok := b.doc.Containers[name]; ok {
		return b.container(name, path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReference, name)
}

func (b *builder) container(name string, path []string) (*timeline.WorkClipContainer, error) {
	spec, ok := b.doc.Containers[name]
	if !ok {
		return nil, fmt.Errorf("%w: container %q", ErrUnknownReference, name)
	}
	if slices.Contains(path, name) {
		return nil, fmt.Errorf("%w: %v", ErrCycle, append(path, name))
	}
	path = append(path, name)

	clips := make([]*timeline.WorkClip, 0, len(spec.Clips))
	for _, cs := range spec.Clips {
		state, err := b.state(cs.State, path)
		if err != nil {
			return nil, err
		}
		clip := timeline.NewWorkClip(state, cs.Begin, cs.Length)
		if cs.LoopsWin() {
			if cs.Speed != nil {
				clip.SetSpeed(*cs.Speed)
			}
			clip.SetLoopCount(*cs.Loops)
		} else if cs.Speed != nil {
			clip.SetSpeed(*cs.Speed)
		}
		clips = append(clips, clip)
	}
	c := timeline.NewWorkClipContainer(name, clips...)
	c.SetObservers(b.env.Observers)
	return c, nil
}

func (b *builder) effect(name string, spec EffectSpec) (timeline.PlayableState, error) {
	switch spec.Kind {
	case KindTween:
		ease, err := effects.ParseEase(spec.Ease)
		if err != nil {
			return nil, fmt.Errorf("effect %q: %w", name, err)
		}
		tw := effects.NewTween(name, spec.From, spec.To, spec.Duration, ease)
		b.out.Tweens = append(b.out.Tweens, tw)
		return tw, nil
	case KindTrigger:
		dir, err := timeline.ParseDirection(spec.Direction)
		if err != nil {
			return nil, fmt.Errorf("effect %q: %w", name, err)
		}
		tr := effects.NewTrigger(name, spec.Percent, dir, spec.Callback, b.env.Callbacks)
		b.out.Triggers = append(b.out.Triggers, tr)
		return tr, nil
	case KindHold:
		return effects.NewHold(name, spec.Duration), nil
	}
	return nil, fmt.Errorf("%w: effect %q has kind %q", ErrUnknownEffectKind, name, spec.Kind)
}

func sortedNames[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
