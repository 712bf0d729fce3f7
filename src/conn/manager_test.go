package conn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seryvo/realtime/config"
	"github.com/seryvo/realtime/src/auth"
	"github.com/seryvo/realtime/src/types"
)

// mockConn implements types.Conn without a network. Frames pushed into inbox
// come out of ReadMessage; breakConn simulates an unexpected closure.
type mockConn struct {
	mu       sync.Mutex
	written  [][]byte
	autoPong bool
	inbox    chan []byte
	readErr  chan error
	closed   bool
	closedCh chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		inbox:    make(chan []byte, 16),
		readErr:  make(chan error, 1),
		closedCh: make(chan struct{}),
	}
}

func (c *mockConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case err := <-c.readErr:
		return nil, err
	case <-c.closedCh:
		return nil, errors.New("use of closed connection")
	}
}

func (c *mockConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.written = append(c.written, cp)
	if c.autoPong && bytes.Contains(data, []byte(`"type":"ping"`)) {
		pong, _ := types.NewEnvelope(types.KindPong, types.ChannelNotification, struct{}{})
		if raw, err := json.Marshal(pong); err == nil {
			select {
			case c.inbox <- raw:
			default:
			}
		}
	}
	return nil
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *mockConn) breakConn() {
	select {
	case c.readErr <- errors.New("connection reset by peer"):
	default:
	}
}

func (c *mockConn) wroteKind(kind types.MessageKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	needle := []byte(`"type":"` + string(kind) + `"`)
	for _, w := range c.written {
		if bytes.Contains(w, needle) {
			return true
		}
	}
	return false
}

// mockDialer hands out mockConns and records every dial.
type mockDialer struct {
	mu       sync.Mutex
	calls    int
	lastURL  string
	conns    []*mockConn
	fail     error
	gate     chan struct{}
	autoPong bool
}

func (d *mockDialer) Dial(ctx context.Context, url string) (types.Conn, error) {
	d.mu.Lock()
	d.calls++
	d.lastURL = url
	gate := d.gate
	fail := d.fail
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	c := newMockConn()
	c.autoPong = d.autoPong
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *mockDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *mockDialer) conn(i int) *mockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *mockDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// nopSink discards inbound frames.
type nopSink struct{}

func (nopSink) Dispatch([]byte) {}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ReconnectBase = 2 * time.Millisecond
	cfg.ReconnectMax = 10 * time.Millisecond
	cfg.MaxReconnectAttempts = 5
	cfg.PingInterval = 0 // individual tests opt in to liveness
	return cfg
}

func newTestManager(cfg config.Config, d Dialer) *Manager {
	return NewManager(cfg, d, auth.Static("tok"), nopSink{}, zerolog.Nop())
}

func TestRetryDelaySequence(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		got := retryDelay(i+1, time.Second, 30*time.Second)
		assert.Equal(t, w, got, "attempt %d", i+1)
	}
}

func TestConnectAndSend(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)
	defer m.Disconnect()

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateConnected, m.State())
	assert.Contains(t, d.lastURL, "token=tok")

	env, err := types.NewEnvelope(types.KindChatMessage, types.ChannelChat, types.ChatMessagePayload{RoomID: "chat:1", Message: "x"})
	require.NoError(t, err)
	require.NoError(t, m.Send(env))
	assert.True(t, d.conn(0).wroteKind(types.KindChatMessage))
}

func TestConnectWhileConnectedIsNoop(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)
	defer m.Disconnect()

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 1, d.callCount())
}

func TestConcurrentConnectSharesOneHandshake(t *testing.T) {
	gate := make(chan struct{})
	d := &mockDialer{gate: gate}
	m := newTestManager(testConfig(), d)
	defer m.Disconnect()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- m.Connect(context.Background()) }()
	}

	// Both callers are now either dialing or waiting on the same attempt.
	time.Sleep(20 * time.Millisecond)
	close(gate)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, 1, d.callCount())
	assert.Equal(t, StateConnected, m.State())
}

func TestConnectWithoutTokenIsNoop(t *testing.T) {
	d := &mockDialer{}
	m := NewManager(testConfig(), d, auth.Static(""), nopSink{}, zerolog.Nop())

	err := m.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
	assert.Equal(t, StateDisconnected, m.State())

	// No handshake was attempted and no retry is pending.
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, d.callCount())
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)
	defer m.Disconnect()

	require.NoError(t, m.Connect(context.Background()))
	d.conn(0).breakConn()

	require.Eventually(t, func() bool {
		return d.callCount() == 2 && m.State() == StateConnected
	}, time.Second, 5*time.Millisecond)
}

func TestNoReconnectAfterIntentionalClose(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	assert.Equal(t, StateClosedIntentionally, m.State())

	// The socket reporting closure after the fact must not trigger a retry.
	d.conn(0).breakConn()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, d.callCount())
	assert.Equal(t, StateClosedIntentionally, m.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)

	require.NoError(t, m.Connect(context.Background()))

	disconnects := 0
	m.OnDisconnect(func(string) { disconnects++ })
	m.Disconnect()
	m.Disconnect()
	assert.Equal(t, 1, disconnects)
}

func TestReconnectBudgetExhausted(t *testing.T) {
	d := &mockDialer{fail: errors.New("connection refused")}
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 2
	m := newTestManager(cfg, d)

	var reasonMu sync.Mutex
	var disconnectReason string
	m.OnDisconnect(func(reason string) {
		reasonMu.Lock()
		disconnectReason = reason
		reasonMu.Unlock()
	})

	require.Error(t, m.Connect(context.Background()))

	// One manual attempt plus the full retry budget, then nothing.
	require.Eventually(t, func() bool {
		return d.callCount() == 3 && m.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, d.callCount())
	reasonMu.Lock()
	assert.Equal(t, "reconnect budget exhausted", disconnectReason)
	reasonMu.Unlock()

	// An explicit Connect resumes service.
	d.setFail(nil)
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateConnected, m.State())
	m.Disconnect()
}

func TestManualConnectCancelsScheduledRetry(t *testing.T) {
	d := &mockDialer{fail: errors.New("connection refused")}
	cfg := testConfig()
	cfg.ReconnectBase = time.Hour // pending retry would fire far in the future
	cfg.ReconnectMax = time.Hour
	m := newTestManager(cfg, d)
	defer m.Disconnect()

	require.Error(t, m.Connect(context.Background()))
	require.Equal(t, 1, d.callCount())

	d.setFail(nil)
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 2, d.callCount())
	assert.Equal(t, StateConnected, m.State())
}

func TestSendWhileDisconnected(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)

	env := types.NewPing()
	require.ErrorIs(t, m.Send(env), ErrNotConnected)
}

func TestLivenessTimeoutForcesReconnect(t *testing.T) {
	d := &mockDialer{} // conns never answer pings
	cfg := testConfig()
	cfg.PingInterval = 15 * time.Millisecond
	cfg.PongTimeout = 10 * time.Millisecond
	m := newTestManager(cfg, d)
	defer m.Disconnect()

	require.NoError(t, m.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return d.conn(0).wroteKind(types.KindPing) && d.callCount() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestPongKeepsConnectionAlive(t *testing.T) {
	d := &mockDialer{autoPong: true}
	cfg := testConfig()
	cfg.PingInterval = 10 * time.Millisecond
	cfg.PongTimeout = 50 * time.Millisecond
	m := NewManager(cfg, d, auth.Static("tok"), nil, zerolog.Nop())
	sink := &pongForwarder{m: m}
	m.sink = sink
	defer m.Disconnect()

	require.NoError(t, m.Connect(context.Background()))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, d.callCount())
	assert.Equal(t, StateConnected, m.State())
	assert.True(t, d.conn(0).wroteKind(types.KindPing))
}

// pongForwarder mimics the router's control-frame handling.
type pongForwarder struct{ m *Manager }

func (s *pongForwarder) Dispatch(raw []byte) {
	env, err := types.Decode(raw)
	if err == nil && env.Kind == types.KindPong {
		s.m.PongReceived()
	}
}

func TestObserverLifecycle(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)
	defer m.Disconnect()

	connects := 0
	id := m.OnConnect(func() { connects++ })

	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, 1, connects)

	// Revoked observers never fire again.
	m.RemoveObserver(id)
	d.conn(0).breakConn()
	require.Eventually(t, func() bool { return d.callCount() == 2 && m.State() == StateConnected },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, connects)
}

func TestObserversRunInRegistrationOrder(t *testing.T) {
	d := &mockDialer{}
	m := newTestManager(testConfig(), d)
	defer m.Disconnect()

	var order []string
	m.OnConnect(func() { order = append(order, "first") })
	m.OnConnect(func() { order = append(order, "second") })

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)
}
