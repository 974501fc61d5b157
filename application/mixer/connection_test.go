package mixer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"tourney-media/domain/mixer"
)

// stubTransport fails the first len(failures) dials, then succeeds
type stubTransport struct {
	mu        sync.Mutex
	failures  []error
	dials     int
	gate      chan struct{} // when set, Connect blocks until closed
	onDial    func()
	sendErr   error
	sent      []string
	responses map[string]json.RawMessage
	closed    int

	nextID    mixer.ListenerID
	listeners map[string]map[mixer.ListenerID]stubListener
}

type stubListener struct {
	handler mixer.EventHandler
	once    bool
}

func newStubTransport(failures ...error) *stubTransport {
	return &stubTransport{
		failures:  failures,
		responses: make(map[string]json.RawMessage),
		listeners: make(map[string]map[mixer.ListenerID]stubListener),
	}
}

func (s *stubTransport) Connect(ctx context.Context, addr mixer.Address) error {
	if s.onDial != nil {
		s.onDial()
	}
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	s.dials++
	n := s.dials
	s.mu.Unlock()

	if n <= len(s.failures) {
		return s.failures[n-1]
	}
	s.emit(mixer.EventConnectionOpened)
	return nil
}

func (s *stubTransport) Disconnect() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *stubTransport) Send(ctx context.Context, request string, args any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent = append(s.sent, request)
	if resp, ok := s.responses[request]; ok {
		return resp, nil
	}
	return json.RawMessage(`{}`), nil
}

func (s *stubTransport) On(event string, handler mixer.EventHandler) mixer.ListenerID {
	return s.add(event, handler, false)
}

func (s *stubTransport) Once(event string, handler mixer.EventHandler) mixer.ListenerID {
	return s.add(event, handler, true)
}

func (s *stubTransport) Off(event string, id mixer.ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners[event], id)
}

func (s *stubTransport) add(event string, handler mixer.EventHandler, once bool) mixer.ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if s.listeners[event] == nil {
		s.listeners[event] = make(map[mixer.ListenerID]stubListener)
	}
	s.listeners[event][s.nextID] = stubListener{handler: handler, once: once}
	return s.nextID
}

func (s *stubTransport) emit(event string) {
	s.emitData(event, nil)
}

func (s *stubTransport) emitData(event string, data json.RawMessage) {
	s.mu.Lock()
	var handlers []mixer.EventHandler
	for id, l := range s.listeners[event] {
		handlers = append(handlers, l.handler)
		if l.once {
			delete(s.listeners[event], id)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(mixer.Event{Name: event, Data: data})
	}
}

func (s *stubTransport) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *stubTransport) listenerCount(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[event])
}

// recordingSleep records requested delays and returns immediately
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return nil
}

func (r *recordingSleep) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(tr *stubTransport, sleeper *recordingSleep, opts ...ConnectionOption) *ConnectionManager {
	base := []ConnectionOption{
		WithSleep(sleeper.sleep),
		WithLogger(discardLogger()),
		WithBackoff(100*time.Millisecond, 400*time.Millisecond),
	}
	return NewConnectionManager(tr, mixer.Address{URL: "ws://127.0.0.1:4455"}, append(base, opts...)...)
}

func TestConnectionManager_ConnectRetriesThenSucceeds(t *testing.T) {
	networkErr := errors.New("dial tcp 127.0.0.1:4455: connect: connection refused")
	tr := newStubTransport(networkErr, networkErr, networkErr, networkErr)
	sleeper := &recordingSleep{}
	m := newTestManager(tr, sleeper, WithConnectAttempts(6))

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}

	if got := tr.dialCount(); got != 5 {
		t.Errorf("dials = %d, want 5", got)
	}
	if !m.IsConnected() {
		t.Error("expected manager to be connected")
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 400 * time.Millisecond}
	got := sleeper.recorded()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("delays = %v, want %v", got, want)
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("delay %d (%v) decreased from %v", i, got[i], got[i-1])
		}
	}
}

func TestConnectionManager_ConnectExhaustsBudget(t *testing.T) {
	networkErr := errors.New("i/o timeout")
	tr := newStubTransport(networkErr, networkErr, networkErr, networkErr)
	sleeper := &recordingSleep{}
	m := newTestManager(tr, sleeper, WithConnectAttempts(3))

	err := m.Connect(context.Background())
	if !errors.Is(err, mixer.ErrUnableToConnect) {
		t.Fatalf("Connect() error = %v, want ErrUnableToConnect", err)
	}
	if !strings.Contains(err.Error(), "i/o timeout") {
		t.Errorf("error %q should carry the last transport error", err)
	}
	if got := tr.dialCount(); got != 3 {
		t.Errorf("dials = %d, want 3", got)
	}
	if got := len(sleeper.recorded()); got != 2 {
		t.Errorf("sleeps = %d, want 2", got)
	}
	if m.State() != mixer.Disconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
}

func TestConnectionManager_AuthenticationFailureIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", mixer.ErrAuthentication},
		{"error text only", errors.New("Authentication Failed.")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newStubTransport(tt.err, tt.err, tt.err)
			sleeper := &recordingSleep{}
			m := newTestManager(tr, sleeper, WithConnectAttempts(10))

			err := m.Connect(context.Background())
			if !errors.Is(err, mixer.ErrAuthentication) {
				t.Fatalf("Connect() error = %v, want ErrAuthentication", err)
			}
			if got := tr.dialCount(); got != 1 {
				t.Errorf("dials = %d, want 1", got)
			}
			if got := len(sleeper.recorded()); got != 0 {
				t.Errorf("sleeps = %d, want 0", got)
			}
		})
	}
}

func TestConnectionManager_StateIsConnectingWhileDialing(t *testing.T) {
	tr := newStubTransport(errors.New("refused"))
	m := newTestManager(tr, &recordingSleep{}, WithConnectAttempts(2))

	var seen []mixer.ConnectionState
	tr.onDial = func() { seen = append(seen, m.State()) }

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}
	for i, s := range seen {
		if s != mixer.Connecting {
			t.Errorf("dial %d observed state %v, want connecting", i+1, s)
		}
	}
}

func TestConnectionManager_ConnectedSignalShortCircuitsRetries(t *testing.T) {
	tr := newStubTransport(errors.New("refused"), errors.New("refused"), errors.New("refused"))
	m := NewConnectionManager(tr, mixer.Address{URL: "ws://127.0.0.1:4455"},
		WithLogger(discardLogger()),
		WithConnectAttempts(5),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			// the transport finishes its handshake on its own mid-backoff
			tr.emit(mixer.EventConnectionOpened)
			<-ctx.Done()
			return ctx.Err()
		}),
	)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}
	if got := tr.dialCount(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
	if !m.IsConnected() {
		t.Error("expected manager to be connected")
	}
}

func TestConnectionManager_ConcurrentSendsDialOnce(t *testing.T) {
	tr := newStubTransport()
	tr.gate = make(chan struct{})
	m := newTestManager(tr, &recordingSleep{})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Send(context.Background(), "GetRecordDirectory", nil)
			errs <- err
		}()
	}

	// let callers pile up behind the in-flight attempt
	time.Sleep(50 * time.Millisecond)
	close(tr.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Send() unexpected error: %v", err)
		}
	}
	if got := tr.dialCount(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
	if got := len(tr.sent); got != callers {
		t.Errorf("sent = %d, want %d", got, callers)
	}
}

func TestConnectionManager_SendReconnectsExactlyOnce(t *testing.T) {
	tr := newStubTransport(errors.New("refused"), errors.New("refused"))
	sleeper := &recordingSleep{}
	m := newTestManager(tr, sleeper, WithConnectAttempts(10))

	_, err := m.Send(context.Background(), "StartRecord", nil)
	if !errors.Is(err, mixer.ErrUnableToConnect) {
		t.Fatalf("Send() error = %v, want ErrUnableToConnect", err)
	}
	if !strings.Contains(err.Error(), "StartRecord") {
		t.Errorf("error %q should name the command", err)
	}
	if got := tr.dialCount(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
	if got := len(sleeper.recorded()); got != 0 {
		t.Errorf("sleeps = %d, want 0", got)
	}

	// the next send gets a fresh attempt and succeeds on the third dial
	_, err = m.Send(context.Background(), "StartRecord", nil)
	if err == nil {
		t.Fatal("expected second send to fail on second dial")
	}
	if _, err := m.Send(context.Background(), "StartRecord", nil); err != nil {
		t.Fatalf("third Send() unexpected error: %v", err)
	}
	if got := tr.dialCount(); got != 3 {
		t.Errorf("dials = %d, want 3", got)
	}
}

func TestConnectionManager_SendWrapsTransportErrors(t *testing.T) {
	tr := newStubTransport()
	m := newTestManager(tr, &recordingSleep{})
	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	tr.sendErr = errors.New("request rejected: recording not active")
	_, err := m.Send(context.Background(), "StopRecord", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "StopRecord") || !strings.Contains(err.Error(), "recording not active") {
		t.Errorf("error %q should carry command and description", err)
	}
	if !errors.Is(err, tr.sendErr) {
		t.Error("transport error should be wrapped")
	}
}

func TestConnectionManager_ReconnectsAfterClose(t *testing.T) {
	tr := newStubTransport()
	m := newTestManager(tr, &recordingSleep{})
	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	tr.emit(mixer.EventConnectionClosed)

	deadline := time.Now().Add(2 * time.Second)
	for tr.dialCount() < 2 || !m.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatalf("no background reconnect: dials=%d state=%v", tr.dialCount(), m.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectionManager_DisconnectIsIdempotent(t *testing.T) {
	tr := newStubTransport()
	m := newTestManager(tr, &recordingSleep{})

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect() before connect: %v", err)
	}
	if tr.closed != 0 {
		t.Errorf("transport disconnected %d times, want 0", tr.closed)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect(): %v", err)
	}
	if err := m.Disconnect(); err != nil {
		t.Fatalf("second Disconnect(): %v", err)
	}
	if tr.closed != 1 {
		t.Errorf("transport disconnected %d times, want 1", tr.closed)
	}
	if m.State() != mixer.Disconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
	if n := tr.listenerCount(mixer.EventConnectionClosed); n != 0 {
		t.Errorf("close listeners = %d, want 0 after disconnect", n)
	}

	// a late close signal must not start a reconnect
	tr.emit(mixer.EventConnectionClosed)
	time.Sleep(20 * time.Millisecond)
	if got := tr.dialCount(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
}

func TestConnectionManager_DisconnectDuringDial(t *testing.T) {
	tr := newStubTransport()
	tr.gate = make(chan struct{})
	dialing := make(chan struct{})
	var once sync.Once
	tr.onDial = func() { once.Do(func() { close(dialing) }) }
	m := newTestManager(tr, &recordingSleep{})

	result := make(chan error, 1)
	go func() { result <- m.Connect(context.Background()) }()

	<-dialing
	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect(): %v", err)
	}
	close(tr.gate)

	err := <-result
	if !errors.Is(err, mixer.ErrConnectAbandoned) {
		t.Fatalf("Connect() error = %v, want ErrConnectAbandoned", err)
	}
	if m.State() != mixer.Disconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
	tr.mu.Lock()
	closed := tr.closed
	tr.mu.Unlock()
	if closed != 2 {
		t.Errorf("transport disconnected %d times, want 2 (disconnect and abandoned dial)", closed)
	}

	// the manager is usable again and watches for closes
	tr.gate = nil
	tr.onDial = nil
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() after abandoned attempt: %v", err)
	}
	if !m.IsConnected() {
		t.Error("expected manager to be connected")
	}
	if n := tr.listenerCount(mixer.EventConnectionClosed); n != 1 {
		t.Errorf("close listeners = %d, want 1", n)
	}
}

func TestConnectionManager_DisconnectWakesBackoff(t *testing.T) {
	tr := newStubTransport(errors.New("refused"), errors.New("refused"))
	sleeping := make(chan struct{})
	m := NewConnectionManager(tr, mixer.Address{URL: "ws://127.0.0.1:4455"},
		WithLogger(discardLogger()),
		WithConnectAttempts(5),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			close(sleeping)
			<-ctx.Done()
			return ctx.Err()
		}),
	)

	result := make(chan error, 1)
	go func() { result <- m.Connect(context.Background()) }()

	<-sleeping
	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect(): %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, mixer.ErrConnectAbandoned) {
			t.Errorf("Connect() error = %v, want ErrConnectAbandoned", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect() still waiting after Disconnect")
	}
	if got := tr.dialCount(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
	if m.State() != mixer.Disconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
}

func TestConnectionManager_EventForwarding(t *testing.T) {
	tr := newStubTransport()
	m := newTestManager(tr, &recordingSleep{})

	var mu sync.Mutex
	var got []string
	id := m.On("RecordStateChanged", func(e mixer.Event) {
		mu.Lock()
		got = append(got, "on")
		mu.Unlock()
	})
	m.Once("RecordStateChanged", func(e mixer.Event) {
		mu.Lock()
		got = append(got, "once")
		mu.Unlock()
	})

	tr.emit("RecordStateChanged")
	m.Off("RecordStateChanged", id)
	tr.emit("RecordStateChanged")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Errorf("handler calls = %v, want one on and one once", got)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, time.Second, 30*time.Second); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
