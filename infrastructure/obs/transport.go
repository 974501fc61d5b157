package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tourney-media/domain/mixer"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultRequestTimeout = 10 * time.Second
	writeDeadline         = 10 * time.Second
)

// ErrConnectionClosed is returned for requests pending when the socket closes
var ErrConnectionClosed = errors.New("connection closed")

// RequestError is a request the mixer answered with a failure status
type RequestError struct {
	Request string
	Code    int
	Comment string
}

func (e *RequestError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s rejected (code %d): %s", e.Request, e.Code, e.Comment)
	}
	return fmt.Sprintf("%s rejected: %s", e.Request, e.Comment)
}

// wireProtocol is one obs-websocket protocol version
type wireProtocol interface {
	name() string
	// handshake authenticates a freshly dialed socket before the read loop starts
	handshake(ctx context.Context, conn *websocket.Conn, password string) error
	encodeRequest(id, request string, args any) ([]byte, error)
	decode(data []byte) (incoming, error)
}

// incoming is a decoded frame: either a response or a push event
type incoming struct {
	isEvent bool
	id      string
	event   string
	data    json.RawMessage
	err     error
}

// Transport is a mixer.Transport over an obs-websocket connection
type Transport struct {
	protocol       wireProtocol
	dialer         *websocket.Dialer
	emitter        *Emitter
	requestTimeout time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	current *session
}

// session is one live socket and its in-flight requests
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan incoming
	closed  bool
}

// TransportOption is a functional option for configuring Transport
type TransportOption func(*Transport)

// WithDialer sets a custom websocket dialer
func WithDialer(d *websocket.Dialer) TransportOption {
	return func(t *Transport) {
		t.dialer = d
	}
}

// WithRequestTimeout bounds how long Send waits for a response
func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d > 0 {
			t.requestTimeout = d
		}
	}
}

// WithTransportLogger sets the logger
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a transport speaking the given protocol version ("v4" or "v5")
func NewTransport(version string, opts ...TransportOption) (*Transport, error) {
	protocol, err := protocolFor(version)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		protocol: protocol,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		emitter:        NewEmitter(),
		requestTimeout: defaultRequestTimeout,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

func protocolFor(version string) (wireProtocol, error) {
	switch version {
	case "v5", "5", "":
		return protocolV5{}, nil
	case "v4", "4":
		return protocolV4{}, nil
	default:
		return nil, fmt.Errorf("unsupported obs-websocket protocol %q (want v4 or v5)", version)
	}
}

// Connect dials and authenticates. It emits ConnectionOpened on success.
func (t *Transport) Connect(ctx context.Context, addr mixer.Address) error {
	conn, _, err := t.dialer.DialContext(ctx, addr.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr.URL, err)
	}

	if err := t.protocol.handshake(ctx, conn, addr.Password); err != nil {
		conn.Close()
		return err
	}

	s := &session{conn: conn, pending: make(map[string]chan incoming)}

	t.mu.Lock()
	previous := t.current
	t.current = s
	t.mu.Unlock()

	if previous != nil {
		previous.conn.Close()
	}

	go t.readLoop(s)

	t.logger.Debug("obs-websocket session established", "url", addr.URL, "protocol", t.protocol.name())
	t.emitter.Emit(mixer.Event{Name: mixer.EventConnectionOpened})
	return nil
}

// Disconnect closes the socket. It is a no-op when not connected.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	s := t.current
	t.current = nil
	t.mu.Unlock()

	if s == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}

// Send issues a request and waits for its response
func (t *Transport) Send(ctx context.Context, request string, args any) (json.RawMessage, error) {
	t.mu.Lock()
	s := t.current
	t.mu.Unlock()
	if s == nil {
		return nil, mixer.ErrNotConnected
	}

	id := uuid.NewString()
	data, err := t.protocol.encodeRequest(id, request, args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", request, err)
	}

	ch, err := s.register(id)
	if err != nil {
		return nil, err
	}
	defer s.unregister(id)

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	err = s.conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", request, err)
	}

	timer := time.NewTimer(t.requestTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.err != nil {
			var reqErr *RequestError
			if errors.As(resp.err, &reqErr) {
				reqErr.Request = request
			}
			return nil, resp.err
		}
		return resp.data, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: no response after %s", request, t.requestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// On implements mixer.Transport
func (t *Transport) On(event string, handler mixer.EventHandler) mixer.ListenerID {
	return t.emitter.On(event, handler)
}

// Off implements mixer.Transport
func (t *Transport) Off(event string, id mixer.ListenerID) {
	t.emitter.Off(event, id)
}

// Once implements mixer.Transport
func (t *Transport) Once(event string, handler mixer.EventHandler) mixer.ListenerID {
	return t.emitter.Once(event, handler)
}

func (t *Transport) readLoop(s *session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("obs-websocket read failed", "error", err)
			}
			break
		}

		msg, err := t.protocol.decode(data)
		if err != nil {
			t.logger.Warn("dropping undecodable obs-websocket frame", "error", err)
			continue
		}

		if msg.isEvent {
			t.emitter.Emit(mixer.Event{Name: msg.event, Data: msg.data})
			continue
		}
		s.deliver(msg)
	}

	s.fail()

	// a session replaced by a newer Connect closes silently
	t.mu.Lock()
	replaced := t.current != nil && t.current != s
	if t.current == s {
		t.current = nil
	}
	t.mu.Unlock()

	if !replaced {
		t.emitter.Emit(mixer.Event{Name: mixer.EventConnectionClosed})
	}
}

func (s *session) register(id string) (chan incoming, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrConnectionClosed
	}
	ch := make(chan incoming, 1)
	s.pending[id] = ch
	return ch, nil
}

func (s *session) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *session) deliver(msg incoming) {
	s.mu.Lock()
	ch, ok := s.pending[msg.id]
	delete(s.pending, msg.id)
	s.mu.Unlock()
	if ok {
		ch <- msg
	}
}

// fail answers every pending request with ErrConnectionClosed
func (s *session) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.pending {
		ch <- incoming{id: id, err: ErrConnectionClosed}
		delete(s.pending, id)
	}
}

// authResponse computes the obs-websocket challenge response, shared by
// protocol 4.x and 5.x: base64(sha256(base64(sha256(password+salt)) + challenge))
func authResponse(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])
	authHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}

// Ensure Transport implements mixer.Transport
var _ mixer.Transport = (*Transport)(nil)
