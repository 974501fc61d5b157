package mixer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tourney-media/domain/mixer"
)

// Default connection policy
const (
	DefaultConnectAttempts   = 10
	DefaultReconnectAttempts = 1
	DefaultInitialDelay      = 1 * time.Second
	DefaultMaxDelay          = 30 * time.Second
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// ConnectionManager owns the single logical connection to the vision mixer.
// Send works in any state: it reconnects first when needed. At most one
// connection attempt runs at a time; callers that arrive while one is in
// flight wait for its outcome instead of dialing again.
type ConnectionManager struct {
	transport mixer.Transport
	addr      mixer.Address

	connectAttempts   int
	reconnectAttempts int
	initialDelay      time.Duration
	maxDelay          time.Duration
	sleep             SleepFunc
	logger            *slog.Logger

	mu          sync.Mutex
	state       mixer.ConnectionState
	connectedCh chan struct{} // closed while state is Connected
	inflight    *connectAttempt
	listening   bool
	openID      mixer.ListenerID
	closeID     mixer.ListenerID
	bgCtx       context.Context
	bgCancel    context.CancelFunc
}

type connectAttempt struct {
	done      chan struct{}
	err       error
	cancel    context.CancelFunc
	abandoned bool // set by Disconnect; guarded by ConnectionManager.mu
}

// ConnectionOption is a functional option for configuring ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithConnectAttempts sets the attempt budget of Connect and background reconnects
func WithConnectAttempts(n int) ConnectionOption {
	return func(m *ConnectionManager) {
		if n > 0 {
			m.connectAttempts = n
		}
	}
}

// WithReconnectAttempts sets the attempt budget of the reconnect Send performs
func WithReconnectAttempts(n int) ConnectionOption {
	return func(m *ConnectionManager) {
		if n > 0 {
			m.reconnectAttempts = n
		}
	}
}

// WithBackoff sets the initial and maximum delay between attempts
func WithBackoff(initial, max time.Duration) ConnectionOption {
	return func(m *ConnectionManager) {
		if initial > 0 {
			m.initialDelay = initial
		}
		if max > 0 {
			m.maxDelay = max
		}
	}
}

// WithSleep replaces the backoff sleeper (for testing)
func WithSleep(sleep SleepFunc) ConnectionOption {
	return func(m *ConnectionManager) {
		m.sleep = sleep
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(m *ConnectionManager) {
		m.logger = logger
	}
}

// NewConnectionManager creates a manager for the mixer at addr. It does not dial.
func NewConnectionManager(transport mixer.Transport, addr mixer.Address, opts ...ConnectionOption) *ConnectionManager {
	m := &ConnectionManager{
		transport:         transport,
		addr:              addr,
		connectAttempts:   DefaultConnectAttempts,
		reconnectAttempts: DefaultReconnectAttempts,
		initialDelay:      DefaultInitialDelay,
		maxDelay:          DefaultMaxDelay,
		sleep:             sleepContext,
		logger:            slog.Default(),
		state:             mixer.Disconnected,
		connectedCh:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.maxDelay < m.initialDelay {
		m.maxDelay = m.initialDelay
	}
	m.bgCtx, m.bgCancel = context.WithCancel(context.Background())

	return m
}

// State returns the current connection state
func (m *ConnectionManager) State() mixer.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the connection is up
func (m *ConnectionManager) IsConnected() bool {
	return m.State() == mixer.Connected
}

// Connect dials the mixer with the full attempt budget
func (m *ConnectionManager) Connect(ctx context.Context) error {
	return m.connect(ctx, m.connectAttempts)
}

// Send issues command to the mixer, reconnecting once first if the
// connection is down.
func (m *ConnectionManager) Send(ctx context.Context, command string, args any) (json.RawMessage, error) {
	if !m.IsConnected() {
		if err := m.connect(ctx, m.reconnectAttempts); err != nil {
			return nil, fmt.Errorf("vision mixer request %s: %w", command, err)
		}
	}

	resp, err := m.transport.Send(ctx, command, args)
	if err != nil {
		return nil, fmt.Errorf("vision mixer request %s failed: %w", command, err)
	}
	return resp, nil
}

// Disconnect closes the connection and stops background reconnects.
// Calling it when already disconnected is a no-op.
func (m *ConnectionManager) Disconnect() error {
	m.mu.Lock()
	m.stopListeningLocked()
	m.bgCancel()
	m.bgCtx, m.bgCancel = context.WithCancel(context.Background())
	wasDisconnected := m.state == mixer.Disconnected && m.inflight == nil
	if a := m.inflight; a != nil {
		a.abandoned = true
		a.cancel()
	}
	m.setDisconnectedLocked()
	m.mu.Unlock()

	if wasDisconnected {
		return nil
	}

	if err := m.transport.Disconnect(); err != nil && !errors.Is(err, mixer.ErrNotConnected) {
		return fmt.Errorf("failed to disconnect from vision mixer: %w", err)
	}
	m.logger.Info("disconnected from vision mixer", "url", m.addr.URL)
	return nil
}

// On subscribes to a transport event
func (m *ConnectionManager) On(event string, handler mixer.EventHandler) mixer.ListenerID {
	return m.transport.On(event, handler)
}

// Off removes a subscription made with On or Once
func (m *ConnectionManager) Off(event string, id mixer.ListenerID) {
	m.transport.Off(event, id)
}

// Once subscribes to the next occurrence of a transport event
func (m *ConnectionManager) Once(event string, handler mixer.EventHandler) mixer.ListenerID {
	return m.transport.Once(event, handler)
}

// connect runs one attempt sequence, or joins the one already in flight
func (m *ConnectionManager) connect(ctx context.Context, attempts int) error {
	m.mu.Lock()
	if m.state == mixer.Connected {
		m.mu.Unlock()
		return nil
	}
	if a := m.inflight; a != nil {
		m.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := &connectAttempt{done: make(chan struct{}), cancel: cancel}
	m.inflight = a
	m.state = mixer.Connecting
	m.startListeningLocked()
	m.mu.Unlock()

	err := m.runAttempts(attemptCtx, a, attempts)

	m.mu.Lock()
	abandoned := a.abandoned
	m.mu.Unlock()

	if abandoned {
		err = mixer.ErrConnectAbandoned
		// a dial that finished after Disconnect may have opened a socket;
		// close it while this attempt still holds the slot
		if derr := m.transport.Disconnect(); derr != nil && !errors.Is(derr, mixer.ErrNotConnected) {
			m.logger.Warn("failed to close abandoned vision mixer connection", "url", m.addr.URL, "error", derr)
		}
	}

	m.mu.Lock()
	if err != nil && m.state == mixer.Connecting {
		m.setDisconnectedLocked()
	}
	a.err = err
	m.inflight = nil
	m.mu.Unlock()
	close(a.done)

	return err
}

// runAttempts dials up to attempts times with exponential backoff
func (m *ConnectionManager) runAttempts(ctx context.Context, a *connectAttempt, attempts int) error {
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if m.IsConnected() {
			return nil
		}

		m.logger.Info("connecting to vision mixer",
			"url", m.addr.URL,
			"attempt", attempt,
			"max_attempts", attempts,
		)

		err := m.transport.Connect(ctx, m.addr)
		if err == nil {
			if !m.markConnected(a) {
				return mixer.ErrConnectAbandoned
			}
			m.logger.Info("connected to vision mixer", "url", m.addr.URL)
			return nil
		}

		if mixer.IsAuthenticationError(err) {
			m.logger.Error("vision mixer rejected credentials", "url", m.addr.URL, "error", err)
			if !errors.Is(err, mixer.ErrAuthentication) {
				err = fmt.Errorf("%w: %v", mixer.ErrAuthentication, err)
			}
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		delay := Backoff(attempt, m.initialDelay, m.maxDelay)
		m.logger.Warn("retrying vision mixer connection",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)

		if err := m.wait(ctx, delay); err != nil {
			return err
		}
	}

	if m.IsConnected() {
		return nil
	}

	m.logger.Error("giving up on vision mixer connection", "url", m.addr.URL, "attempts", attempts, "error", lastErr)
	return fmt.Errorf("%w at %s after %d attempt(s): %v", mixer.ErrUnableToConnect, m.addr.URL, attempts, lastErr)
}

// wait sleeps for d, returning early when the connection comes up
func (m *ConnectionManager) wait(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	connected := m.connectedCh
	m.mu.Unlock()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-connected:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	_ = m.sleep(waitCtx, d)
	return ctx.Err()
}

// markConnected moves to Connected unless Disconnect abandoned a
func (m *ConnectionManager) markConnected(a *connectAttempt) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a == nil || a.abandoned {
		return false
	}
	if m.state != mixer.Connected {
		m.state = mixer.Connected
		close(m.connectedCh)
	}
	return true
}

func (m *ConnectionManager) setDisconnectedLocked() {
	if m.state == mixer.Connected {
		m.connectedCh = make(chan struct{})
	}
	m.state = mixer.Disconnected
}

func (m *ConnectionManager) startListeningLocked() {
	if m.listening {
		return
	}
	m.listening = true
	m.openID = m.transport.On(mixer.EventConnectionOpened, m.handleOpened)
	m.closeID = m.transport.On(mixer.EventConnectionClosed, m.handleClosed)
}

func (m *ConnectionManager) stopListeningLocked() {
	if !m.listening {
		return
	}
	m.listening = false
	m.transport.Off(mixer.EventConnectionOpened, m.openID)
	m.transport.Off(mixer.EventConnectionClosed, m.closeID)
}

// handleOpened accepts the transport's success signal only while Connecting
func (m *ConnectionManager) handleOpened(mixer.Event) {
	m.mu.Lock()
	a := m.inflight
	connecting := m.state == mixer.Connecting
	m.mu.Unlock()
	if connecting {
		m.markConnected(a)
	}
}

// handleClosed drops to Disconnected and schedules a background reconnect
func (m *ConnectionManager) handleClosed(mixer.Event) {
	m.mu.Lock()
	if m.state != mixer.Connected {
		m.mu.Unlock()
		return
	}
	m.setDisconnectedLocked()
	ctx := m.bgCtx
	m.mu.Unlock()

	m.logger.Warn("vision mixer connection closed, reconnecting", "url", m.addr.URL)
	go func() {
		if err := m.connect(ctx, m.connectAttempts); err != nil && ctx.Err() == nil {
			m.logger.Error("background reconnect failed", "url", m.addr.URL, "error", err)
		}
	}()
}

// Backoff returns the delay after the given failed attempt (1-based):
// initial * 2^(attempt-1), capped at max.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
