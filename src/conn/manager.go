package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/seryvo/realtime/config"
	"github.com/seryvo/realtime/src/auth"
	"github.com/seryvo/realtime/src/types"
)

var (
	// ErrNotConnected is returned by Send while the connection is down.
	ErrNotConnected = errors.New("not connected")
	// ErrNoToken is returned when the token provider has no credential.
	ErrNoToken = errors.New("no auth token available")
	// ErrClosed is returned when an attempt loses a race with Disconnect.
	ErrClosed = errors.New("connection closed intentionally")
)

// FrameSink receives every raw inbound frame, one at a time, in arrival
// order.
type FrameSink interface {
	Dispatch(raw []byte)
}

// Manager owns the physical socket and its lifecycle state machine. It is
// the single point of truth for "are we connected": it performs reconnection
// with exponential backoff after unexpected closures and probes liveness
// with application-level ping frames.
type Manager struct {
	cfg    config.Config
	dialer Dialer
	tokens auth.TokenProvider
	sink   FrameSink
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	sock    types.Conn
	gen     uint64
	stopc   chan struct{}
	pongc   chan struct{}
	pending *inflight
	retry   *time.Timer
	attempt int

	writeMu sync.Mutex

	obsMu        sync.Mutex
	nextObs      ObserverID
	onConnect    []observerEntry[func()]
	onDisconnect []observerEntry[func(reason string)]
	onError      []observerEntry[func(err error)]
}

// inflight is one connection attempt shared by every concurrent Connect
// caller, so overlapping calls observe a single handshake and its outcome.
type inflight struct {
	done chan struct{}
	err  error
}

// NewManager creates a connection manager. sink receives inbound frames.
func NewManager(cfg config.Config, dialer Dialer, tokens auth.TokenProvider, sink FrameSink, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		tokens: tokens,
		sink:   sink,
		logger: logger.With().Str("component", "conn").Logger(),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes the connection, suspending the caller until the
// handshake resolves. It is idempotent under concurrent invocation: while an
// attempt is in flight every caller waits on that same attempt, and a call
// made while already connected returns immediately. A manual call cancels
// any pending automatic retry and attempts at once.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	if p := m.pending; p != nil {
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	p := &inflight{done: make(chan struct{})}
	m.pending = p
	m.state = StateConnecting
	m.mu.Unlock()

	p.err = m.dial(ctx)
	close(p.done)
	return p.err
}

// dial performs one handshake and finalizes the attempt under the lock.
func (m *Manager) dial(ctx context.Context) error {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("credential unavailable, not connecting")
		return m.failAttempt(fmt.Errorf("fetch token: %w", err), false)
	}
	if token == "" {
		m.logger.Warn().Msg("no auth token, not connecting")
		return m.failAttempt(ErrNoToken, false)
	}

	wsurl, err := m.cfg.WSURL(token)
	if err != nil {
		return m.failAttempt(fmt.Errorf("derive ws url: %w", err), false)
	}

	sock, err := m.dialer.Dial(ctx, wsurl)
	if err != nil {
		m.logger.Warn().Err(err).Msg("handshake failed")
		return m.failAttempt(err, true)
	}

	m.mu.Lock()
	m.pending = nil
	if m.state == StateClosedIntentionally {
		m.mu.Unlock()
		sock.Close()
		return ErrClosed
	}
	m.sock = sock
	m.state = StateConnected
	m.attempt = 0
	m.gen++
	gen := m.gen
	stopc := make(chan struct{})
	pongc := make(chan struct{}, 1)
	m.stopc = stopc
	m.pongc = pongc
	m.mu.Unlock()

	m.logger.Info().Msg("connected")
	go m.readLoop(gen, sock)
	go m.liveness(stopc, pongc, sock)
	m.notifyConnect()
	return nil
}

// failAttempt clears the in-flight attempt and, when the failure is
// retryable and no intentional close raced the attempt, schedules the next
// automatic retry.
func (m *Manager) failAttempt(err error, retryable bool) error {
	m.mu.Lock()
	m.pending = nil
	if m.state == StateClosedIntentionally {
		m.mu.Unlock()
		return err
	}
	m.state = StateDisconnected
	m.mu.Unlock()

	m.notifyError(err)
	if retryable {
		m.scheduleRetry()
	}
	return err
}

// Disconnect closes the connection and unconditionally suppresses automatic
// reconnection until Connect is called again. It always succeeds and is
// idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	prev := m.state
	m.state = StateClosedIntentionally
	m.attempt = 0
	m.gen++
	sock := m.sock
	m.sock = nil
	if m.stopc != nil {
		close(m.stopc)
		m.stopc = nil
	}
	m.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
	if prev != StateClosedIntentionally && prev != StateDisconnected {
		m.logger.Info().Msg("disconnected")
		m.notifyDisconnect("closed by client")
	}
}

// Send serializes env onto the wire. Frames are written atomically;
// concurrent senders are serialized by a write lock.
func (m *Manager) Send(env types.Envelope) error {
	m.mu.Lock()
	sock := m.sock
	connected := m.state == StateConnected
	m.mu.Unlock()
	if !connected || sock == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	m.writeMu.Lock()
	err = sock.WriteMessage(data)
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Warn().Err(err).Str("type", string(env.Kind)).Msg("write failed")
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// PongReceived records a liveness response. Called by the router when it
// consumes a pong control frame.
func (m *Manager) PongReceived() {
	m.mu.Lock()
	pongc := m.pongc
	m.mu.Unlock()
	if pongc == nil {
		return
	}
	select {
	case pongc <- struct{}{}:
	default:
	}
}

// readLoop pumps inbound frames into the sink until the socket dies.
// Dispatch is synchronous, so frames are processed one at a time in arrival
// order.
func (m *Manager) readLoop(gen uint64, sock types.Conn) {
	for {
		raw, err := sock.ReadMessage()
		if err != nil {
			m.connectionLost(gen, sock, err)
			return
		}
		m.sink.Dispatch(raw)
	}
}

// connectionLost handles an unexpected closure. A stale generation means the
// socket was already replaced or intentionally closed.
func (m *Manager) connectionLost(gen uint64, sock types.Conn, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.sock = nil
	if m.stopc != nil {
		close(m.stopc)
		m.stopc = nil
	}
	m.state = StateReconnecting
	m.mu.Unlock()

	sock.Close()
	m.logger.Warn().Err(cause).Msg("connection lost")
	m.notifyDisconnect("connection lost")
	m.scheduleRetry()
}

// scheduleRetry arms the next automatic reconnection attempt, or surfaces a
// terminal disconnect once the attempt budget is exhausted.
func (m *Manager) scheduleRetry() {
	m.mu.Lock()
	if m.state == StateClosedIntentionally || m.pending != nil || m.retry != nil {
		m.mu.Unlock()
		return
	}
	m.attempt++
	if m.attempt > m.cfg.MaxReconnectAttempts {
		m.state = StateDisconnected
		m.attempt = 0
		m.mu.Unlock()
		m.logger.Error().Int("attempts", m.cfg.MaxReconnectAttempts).Msg("reconnect budget exhausted")
		m.notifyDisconnect("reconnect budget exhausted")
		return
	}
	attempt := m.attempt
	delay := retryDelay(attempt, m.cfg.ReconnectBase, m.cfg.ReconnectMax)
	m.retry = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.retry = nil
		m.mu.Unlock()
		_ = m.Connect(context.Background())
	})
	m.mu.Unlock()

	m.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")
}

// retryDelay computes the delay before the given 1-based attempt:
// base*2^(attempt-1), capped at max.
func retryDelay(attempt int, base, max time.Duration) time.Duration {
	b := &backoff.Backoff{Min: base, Max: max, Factor: 2}
	return b.ForAttempt(float64(attempt - 1))
}

// liveness sends a ping on a fixed interval and force-closes the socket when
// no pong arrives within the timeout, so a transport that is open but
// unresponsive still triggers reconnection.
func (m *Manager) liveness(stopc, pongc chan struct{}, sock types.Conn) {
	if m.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopc:
			return
		case <-ticker.C:
		}

		// Drop a pong left over from a previous probe.
		select {
		case <-pongc:
		default:
		}

		if err := m.Send(types.NewPing()); err != nil {
			return
		}

		deadline := time.NewTimer(m.cfg.PongTimeout)
		select {
		case <-stopc:
			deadline.Stop()
			return
		case <-pongc:
			deadline.Stop()
		case <-deadline.C:
			m.logger.Warn().Dur("timeout", m.cfg.PongTimeout).Msg("liveness probe timed out, forcing close")
			sock.Close()
			return
		}
	}
}
