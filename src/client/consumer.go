package client

import (
	"context"
	"sync"

	"github.com/seryvo/realtime/src/conn"
	"github.com/seryvo/realtime/src/router"
	"github.com/seryvo/realtime/src/types"
)

// Consumer is a scoped registration handle for one independent observer,
// typically a UI view or tracking session. Every handler and lifecycle
// callback it registers is revoked by a single Close, leaving the shared
// connection and other consumers untouched.
type Consumer struct {
	name string
	c    *Client

	mu     sync.Mutex
	closed bool
	regs   []router.RegID
	obs    []conn.ObserverID
}

// Consumer creates a registration handle. name is used for logging only.
func (c *Client) Consumer(name string) *Consumer {
	return &Consumer{name: name, c: c}
}

// Attach ensures the underlying connection is established, connecting on
// demand. Safe to call from many consumers concurrently; they all share one
// handshake.
func (cs *Consumer) Attach(ctx context.Context) error {
	return cs.c.Connect(ctx)
}

// On registers a handler for one exact message kind.
func (cs *Consumer) On(kind types.MessageKind, fn router.Handler) *Consumer {
	cs.addReg(func() router.RegID { return cs.c.router.Handle(kind, fn) })
	return cs
}

// OnChannel registers a handler for every frame on a channel.
func (cs *Consumer) OnChannel(ch types.ChannelID, fn router.Handler) *Consumer {
	cs.addReg(func() router.RegID { return cs.c.router.HandleChannel(ch, fn) })
	return cs
}

// OnAll registers a wildcard handler.
func (cs *Consumer) OnAll(fn router.Handler) *Consumer {
	cs.addReg(func() router.RegID { return cs.c.router.HandleAll(fn) })
	return cs
}

// OnConnect registers a lifecycle callback for successful (re)connects.
func (cs *Consumer) OnConnect(fn func()) *Consumer {
	cs.addObs(func() conn.ObserverID { return cs.c.conn.OnConnect(fn) })
	return cs
}

// OnDisconnect registers a lifecycle callback for disconnects.
func (cs *Consumer) OnDisconnect(fn func(reason string)) *Consumer {
	cs.addObs(func() conn.ObserverID { return cs.c.conn.OnDisconnect(fn) })
	return cs
}

// OnError registers a callback for transport and server-reported errors.
func (cs *Consumer) OnError(fn func(err error)) *Consumer {
	cs.addObs(func() conn.ObserverID { return cs.c.conn.OnError(fn) })
	return cs
}

// Subscribe adds a channel subscription to the shared wanted set.
func (cs *Consumer) Subscribe(ch types.ChannelID, room types.RoomID) {
	cs.c.registry.Subscribe(ch, room)
}

// JoinRoom adds a room subscription to the shared wanted set.
func (cs *Consumer) JoinRoom(room types.RoomID) {
	cs.c.registry.JoinRoom(room)
}

// LeaveRoom removes a room subscription from the shared wanted set.
func (cs *Consumer) LeaveRoom(room types.RoomID) {
	cs.c.registry.LeaveRoom(room)
}

// SendLocation sends a driver GPS fix, dropped if disconnected.
func (cs *Consumer) SendLocation(p types.DriverLocationPayload) {
	cs.c.emitter.SendLocation(p)
}

// SendChat sends a chat message, dropped if disconnected.
func (cs *Consumer) SendChat(room types.RoomID, message string) {
	cs.c.emitter.SendChat(room, message)
}

// SendTyping sends a typing indicator, dropped if disconnected.
func (cs *Consumer) SendTyping(room types.RoomID, typing bool) {
	cs.c.emitter.SendTyping(room, typing)
}

// MarkChatRead marks a room's messages as read, dropped if disconnected.
func (cs *Consumer) MarkChatRead(room types.RoomID, messageID string) {
	cs.c.emitter.MarkChatRead(room, messageID)
}

// Close revokes everything this consumer registered. After Close returns no
// callback belonging to this consumer fires again. Idempotent.
func (cs *Consumer) Close() {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return
	}
	cs.closed = true
	regs := cs.regs
	obs := cs.obs
	cs.regs = nil
	cs.obs = nil
	cs.mu.Unlock()

	for _, id := range regs {
		cs.c.router.Remove(id)
	}
	for _, id := range obs {
		cs.c.conn.RemoveObserver(id)
	}
	cs.c.logger.Debug().Str("consumer", cs.name).Msg("consumer detached")
}

func (cs *Consumer) addReg(register func() router.RegID) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return
	}
	cs.regs = append(cs.regs, register())
}

func (cs *Consumer) addObs(register func() conn.ObserverID) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return
	}
	cs.obs = append(cs.obs, register())
}
