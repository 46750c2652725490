package timeline

import (
	"maps"
	"slices"
	"sync"
)

// PlayerStateFunc observes a player's state transitions.
type PlayerStateFunc func(p *Player, from, to PlayerState)

// ContentChangeFunc observes a container whose active leaf set changed.
type ContentChangeFunc func(c *WorkClipContainer, oldActive, newActive []PlayableState, percent float64)

// Observers is a broadcast list owned by whatever scope manages player
// lifetimes. Observers must not drive the player that notified them.
//
// Subscription is safe from any goroutine; notification happens on the
// goroutine driving the player.
type Observers struct {
	mu      sync.RWMutex
	nextID  int
	state   map[int]PlayerStateFunc
	content map[int]ContentChangeFunc
}

// NewObservers returns an empty observer list.
func NewObservers() *Observers {
	return &Observers{
		state:   make(map[int]PlayerStateFunc),
		content: make(map[int]ContentChangeFunc),
	}
}

// OnPlayerStateChanged subscribes fn and returns its unsubscribe func.
func (o *Observers) OnPlayerStateChanged(fn PlayerStateFunc) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.state[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.state, id)
		o.mu.Unlock()
	}
}

// OnContentElementChanged subscribes fn and returns its unsubscribe func.
func (o *Observers) OnContentElementChanged(fn ContentChangeFunc) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.content[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.content, id)
		o.mu.Unlock()
	}
}

// stateFuncs copies subscribers in subscription order so callbacks run
// without the lock held.
func (o *Observers) stateFuncs() []PlayerStateFunc {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := sortedKeys(o.state)
	out := make([]PlayerStateFunc, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.state[id])
	}
	return out
}

func (o *Observers) contentFuncs() []ContentChangeFunc {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := sortedKeys(o.content)
	out := make([]ContentChangeFunc, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.content[id])
	}
	return out
}

func (o *Observers) playerStateChanged(p *Player, from, to PlayerState) {
	if o == nil {
		return
	}
	for _, fn := range o.stateFuncs() {
		fn(p, from, to)
	}
}

func (o *Observers) contentElementChanged(c *WorkClipContainer, oldActive, newActive []PlayableState, percent float64) {
	if o == nil {
		return
	}
	for _, fn := range o.contentFuncs() {
		fn(c, oldActive, newActive, percent)
	}
}

func sortedKeys[V any](m map[int]V) []int {
	return slices.Sorted(maps.Keys(m))
}

// Callbacks resolves finish callbacks by name.
type Callbacks struct {
	mu  sync.RWMutex
	fns map[string]func()
}

// NewCallbacks returns an empty registry.
func NewCallbacks() *Callbacks {
	return &Callbacks{fns: make(map[string]func())}
}

// Register binds name to fn, replacing any previous binding.
func (c *Callbacks) Register(name string, fn func()) {
	c.mu.Lock()
	c.fns[name] = fn
	c.mu.Unlock()
}

// Unregister removes name.
func (c *Callbacks) Unregister(name string) {
	c.mu.Lock()
	delete(c.fns, name)
	c.mu.Unlock()
}

// Invoke runs the callback bound to name and reports whether one existed.
func (c *Callbacks) Invoke(name string) bool {
	if c == nil || name == "" {
		return false
	}
	c.mu.RLock()
	fn, ok := c.fns[name]
	c.mu.RUnlock()
	if !ok || fn == nil {
		return false
	}
	fn()
	return true
}
