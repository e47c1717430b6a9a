package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInterrupt signals that a hook handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// Func is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type Func func(ctx context.Context, event string, data interface{}) (interface{}, error)

type entry struct {
	priority int
	fn       Func
	name     string
}

// Center manages event hook registrations. Extensions register handlers for
// mission lifecycle events and run in priority order.
type Center struct {
	mu    sync.RWMutex
	hooks map[string][]*entry
}

// NewCenter creates a new Center.
func NewCenter() *Center {
	return &Center{hooks: make(map[string][]*entry)}
}

// Register adds a Func for the given event with the given priority (lower runs
// first). name is used for Unregister.
func (c *Center) Register(event string, priority int, name string, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.hooks[event]
	entries = append(entries, &entry{priority: priority, fn: fn, name: name})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.hooks[event] = entries
}

// Unregister removes all hooks with the given name for the given event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.hooks[event]
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	c.hooks[event] = entries[:n]
}

// UnregisterAll removes all hooks registered with the given name across all
// events.
func (c *Center) UnregisterAll(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event, entries := range c.hooks {
		n := 0
		for _, e := range entries {
			if e.name != name {
				entries[n] = e
				n++
			}
		}
		c.hooks[event] = entries[:n]
	}
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler, allowing modification.
// If any handler returns ErrInterrupt, execution stops.
func (c *Center) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	c.mu.RLock()
	entries := make([]*entry, len(c.hooks[event]))
	copy(entries, c.hooks[event])
	c.mu.RUnlock()

	var err error
	for _, e := range entries {
		data, err = e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return data, err
		}
	}
	return data, nil
}

// ---- Hook event name constants ----

const (
	OnMissionComplete     = "on_mission_complete"
	OnAllMissionsComplete = "on_all_missions_complete"
	OnMissionsReset       = "on_missions_reset"
	OnPlayerConnect       = "on_player_connect"
	OnPlayerDisconnect    = "on_player_disconnect"
	OnMapChange           = "on_map_change"
)
