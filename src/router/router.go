// Package router classifies every inbound frame and dispatches it to the
// registered handlers, tier by tier: exact kind, then channel-wide, then
// wildcard. Control frames are consumed internally and never reach
// application handlers.
package router

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/seryvo/realtime/src/types"
)

// Handler receives one inbound envelope. Handlers run to completion, one at
// a time, on the connection's read goroutine.
type Handler func(env types.Envelope)

// RegID identifies one handler registration.
type RegID uint64

// LivenessSink is notified when a liveness response is consumed.
type LivenessSink interface {
	PongReceived()
}

// entry is a single registration. The removed flag is checked at invoke
// time so a revoked handler never fires again, even when revocation races a
// dispatch already snapshotting its tier.
type entry struct {
	id      RegID
	fn      Handler
	removed atomic.Bool
}

// Router dispatches inbound frames to interested handlers.
type Router struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	nextID    RegID
	byKind    map[types.MessageKind][]*entry
	byChannel map[types.ChannelID][]*entry
	wildcard  []*entry

	liveness LivenessSink
	onError  func(err error)
}

// New creates an empty router.
func New(logger zerolog.Logger) *Router {
	return &Router{
		logger:    logger.With().Str("component", "router").Logger(),
		byKind:    make(map[types.MessageKind][]*entry),
		byChannel: make(map[types.ChannelID][]*entry),
	}
}

// BindLiveness wires the sink that consumes pong frames.
func (r *Router) BindLiveness(sink LivenessSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveness = sink
}

// BindErrors wires the sink receiving server-reported error frames.
func (r *Router) BindErrors(fn func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// Handle registers a handler for one exact message kind.
func (r *Router) Handle(kind types.MessageKind, fn Handler) RegID {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.newEntry(fn)
	r.byKind[kind] = append(r.byKind[kind], e)
	return e.id
}

// HandleChannel registers a handler for every frame on a channel,
// regardless of kind or room.
func (r *Router) HandleChannel(ch types.ChannelID, fn Handler) RegID {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.newEntry(fn)
	r.byChannel[ch] = append(r.byChannel[ch], e)
	return e.id
}

// HandleAll registers a wildcard handler receiving every application frame.
func (r *Router) HandleAll(fn Handler) RegID {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.newEntry(fn)
	r.wildcard = append(r.wildcard, e)
	return e.id
}

func (r *Router) newEntry(fn Handler) *entry {
	r.nextID++
	return &entry{id: r.nextID, fn: fn}
}

// Remove revokes a registration. After Remove returns, the handler is not
// invoked again, frame in flight or not.
func (r *Router) Remove(id RegID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for kind, entries := range r.byKind {
		r.byKind[kind] = removeEntry(entries, id)
	}
	for ch, entries := range r.byChannel {
		r.byChannel[ch] = removeEntry(entries, id)
	}
	r.wildcard = removeEntry(r.wildcard, id)
}

func removeEntry(entries []*entry, id RegID) []*entry {
	for i, e := range entries {
		if e.id == id {
			e.removed.Store(true)
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// Dispatch parses one raw frame and delivers it. Malformed frames are
// logged and dropped. A failing handler does not prevent delivery to the
// remaining handlers in its tier or in subsequent tiers.
func (r *Router) Dispatch(raw []byte) {
	env, err := types.Decode(raw)
	if err != nil {
		r.logger.Warn().Err(err).Msg("malformed frame dropped")
		return
	}

	if env.Kind.IsControl() {
		if env.Kind == types.KindPong {
			r.mu.RLock()
			sink := r.liveness
			r.mu.RUnlock()
			if sink != nil {
				sink.PongReceived()
			}
		}
		return
	}

	if env.Kind == types.KindError {
		r.forwardError(env)
		// Error frames may also carry an application payload; fall through.
	}

	r.mu.RLock()
	kindTier := snapshot(r.byKind[env.Kind])
	channelTier := snapshot(r.byChannel[env.Channel])
	wildcardTier := snapshot(r.wildcard)
	r.mu.RUnlock()

	for _, tier := range [][]*entry{kindTier, channelTier, wildcardTier} {
		for _, e := range tier {
			r.invoke(e, env)
		}
	}
}

func (r *Router) forwardError(env types.Envelope) {
	p, err := types.DecodePayload(env)
	msg := "server error"
	if err == nil {
		if ep, ok := p.(*types.ErrorPayload); ok && ep.Message != "" {
			msg = ep.Message
		}
	}
	r.logger.Warn().Str("message", msg).Msg("server reported error")

	r.mu.RLock()
	onError := r.onError
	r.mu.RUnlock()
	if onError != nil {
		onError(fmt.Errorf("server error: %s", msg))
	}
}

func snapshot(entries []*entry) []*entry {
	if len(entries) == 0 {
		return nil
	}
	cp := make([]*entry, len(entries))
	copy(cp, entries)
	return cp
}

// invoke runs one handler, isolating panics so the rest of the tier still
// receives the frame.
func (r *Router) invoke(e *entry, env types.Envelope) {
	if e.removed.Load() {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("panic", rec).
				Str("type", string(env.Kind)).
				Msg("handler panicked")
		}
	}()
	e.fn(env)
}
