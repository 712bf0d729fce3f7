// Package registry tracks the application's wanted set of channel and room
// subscriptions, independent of connection state, and re-asserts that set to
// the server after every successful (re)connection. A fresh server-side
// socket starts with no subscriptions, so the resync is mandatory.
package registry

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/seryvo/realtime/src/types"
)

// CommandSink emits subscribe and unsubscribe commands onto the wire.
type CommandSink interface {
	Subscribe(ch types.ChannelID, room types.RoomID)
	Unsubscribe(ch types.ChannelID, room types.RoomID)
}

// Registry holds the wanted set. All operations are idempotent with respect
// to registry state.
type Registry struct {
	sink      CommandSink
	connected func() bool
	logger    zerolog.Logger

	mu     sync.Mutex
	wanted []types.Subscription // insertion order, preserved for resync
}

// New creates a registry. connected reports whether commands sent now will
// reach the server; while it is false, operations mutate local state only.
func New(sink CommandSink, connected func() bool, logger zerolog.Logger) *Registry {
	return &Registry{
		sink:      sink,
		connected: connected,
		logger:    logger.With().Str("component", "registry").Logger(),
	}
}

// Subscribe adds a channel subscription, optionally scoped to a room.
// Re-adding an existing entry is a no-op.
func (r *Registry) Subscribe(ch types.ChannelID, room types.RoomID) {
	r.mu.Lock()
	if r.has(ch, room) {
		r.mu.Unlock()
		return
	}
	r.wanted = append(r.wanted, types.Subscription{Channel: ch, Room: room})
	live := r.connected()
	r.mu.Unlock()

	r.logger.Debug().Str("channel", string(ch)).Str("room", string(room)).Msg("subscription added")
	if live {
		r.sink.Subscribe(ch, room)
	}
}

// Unsubscribe removes a subscription. While connected the corresponding
// unsubscribe command is sent immediately; while disconnected this is a pure
// local-state operation.
func (r *Registry) Unsubscribe(ch types.ChannelID, room types.RoomID) {
	r.mu.Lock()
	found := false
	for i, s := range r.wanted {
		if s.Channel == ch && s.Room == room {
			r.wanted = append(r.wanted[:i:i], r.wanted[i+1:]...)
			found = true
			break
		}
	}
	live := found && r.connected()
	r.mu.Unlock()

	if !found {
		return
	}
	r.logger.Debug().Str("channel", string(ch)).Str("room", string(room)).Msg("subscription removed")
	if live {
		r.sink.Unsubscribe(ch, room)
	}
}

// JoinRoom subscribes to a single room, deriving the channel from the room's
// "<prefix>:<id>" convention.
func (r *Registry) JoinRoom(room types.RoomID) {
	r.Subscribe(types.ChannelForRoom(room), room)
}

// LeaveRoom removes a room subscription.
func (r *Registry) LeaveRoom(room types.RoomID) {
	r.Unsubscribe(types.ChannelForRoom(room), room)
}

// Resync re-asserts the whole wanted set to the server, one subscribe
// command per entry in insertion order. Installed as the first connect
// observer so it runs exactly once per (re)connection, before any consumer
// reacts to the connect signal.
func (r *Registry) Resync() {
	r.mu.Lock()
	wanted := make([]types.Subscription, len(r.wanted))
	copy(wanted, r.wanted)
	r.mu.Unlock()

	if len(wanted) == 0 {
		return
	}
	r.logger.Info().Int("subscriptions", len(wanted)).Msg("resynchronizing subscriptions")
	for _, s := range wanted {
		r.sink.Subscribe(s.Channel, s.Room)
	}
}

// Snapshot returns a copy of the wanted set in insertion order.
func (r *Registry) Snapshot() []types.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]types.Subscription, len(r.wanted))
	copy(cp, r.wanted)
	return cp
}

func (r *Registry) has(ch types.ChannelID, room types.RoomID) bool {
	for _, s := range r.wanted {
		if s.Channel == ch && s.Room == room {
			return true
		}
	}
	return false
}
