// Package client assembles the realtime transport: one explicitly
// constructed instance owns the connection manager, router, subscription
// registry, and command emitter, and hands out lifecycle-scoped consumer
// handles. There is no process-wide singleton; session management constructs
// and shuts down instances, and tests create isolated ones.
package client

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/seryvo/realtime/config"
	"github.com/seryvo/realtime/src/auth"
	"github.com/seryvo/realtime/src/conn"
	"github.com/seryvo/realtime/src/emit"
	"github.com/seryvo/realtime/src/registry"
	"github.com/seryvo/realtime/src/router"
	"github.com/seryvo/realtime/src/types"
)

// Client is the top-level realtime transport service.
type Client struct {
	cfg      config.Config
	logger   zerolog.Logger
	conn     *conn.Manager
	router   *router.Router
	registry *registry.Registry
	emitter  *emit.Emitter
}

type options struct {
	dialer        conn.Dialer
	autoSubscribe []types.ChannelID
}

// Option customizes client construction.
type Option func(*options)

// WithDialer replaces the websocket dialer, letting tests drive the full
// lifecycle without a network.
func WithDialer(d conn.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithAutoSubscribe seeds the subscription registry with channels wanted for
// the whole session, e.g. notifications.
func WithAutoSubscribe(channels ...types.ChannelID) Option {
	return func(o *options) { o.autoSubscribe = channels }
}

// New wires a client. tokens is queried just-in-time on every connection
// attempt, so credential rotation needs no restart.
func New(cfg config.Config, tokens auth.TokenProvider, logger zerolog.Logger, opts ...Option) *Client {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = conn.NewWSDialer(cfg.HandshakeTimeout, cfg.WriteTimeout)
	}

	r := router.New(logger)
	m := conn.NewManager(cfg, o.dialer, tokens, r, logger)
	r.BindLiveness(m)
	r.BindErrors(m.ForwardError)

	em := emit.New(m, logger)
	reg := registry.New(em, func() bool { return m.State() == conn.StateConnected }, logger)

	// The registry's resync must be the first connect observer, so the
	// wanted set is re-asserted before any consumer reacts to the signal.
	m.OnConnect(reg.Resync)

	for _, ch := range o.autoSubscribe {
		reg.Subscribe(ch, "")
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		conn:     m,
		router:   r,
		registry: reg,
		emitter:  em,
	}
}

// Connect establishes the connection, blocking until the handshake resolves.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Shutdown closes the connection and suppresses reconnection. Consumers keep
// their registrations; a later Connect resumes service.
func (c *Client) Shutdown() {
	c.conn.Disconnect()
}

// State returns the connection lifecycle state.
func (c *Client) State() conn.State {
	return c.conn.State()
}

// Subscribe adds a session-wide channel subscription.
func (c *Client) Subscribe(ch types.ChannelID, room types.RoomID) {
	c.registry.Subscribe(ch, room)
}

// Unsubscribe removes a session-wide channel subscription.
func (c *Client) Unsubscribe(ch types.ChannelID, room types.RoomID) {
	c.registry.Unsubscribe(ch, room)
}

// JoinRoom adds a session-wide room subscription.
func (c *Client) JoinRoom(room types.RoomID) {
	c.registry.JoinRoom(room)
}

// LeaveRoom removes a session-wide room subscription.
func (c *Client) LeaveRoom(room types.RoomID) {
	c.registry.LeaveRoom(room)
}

// Subscriptions returns the current wanted set.
func (c *Client) Subscriptions() []types.Subscription {
	return c.registry.Snapshot()
}
