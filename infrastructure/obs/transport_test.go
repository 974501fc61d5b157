package obs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tourney-media/domain/mixer"

	"github.com/gorilla/websocket"
)

const (
	testSalt      = "PZVbYpvAnZut2SS6JNJytDm9"
	testChallenge = "ztTBnnuqrqaKDzRM3xcVdbYm"
)

// fakeOBS is an obs-websocket server speaking either protocol version
type fakeOBS struct {
	t        *testing.T
	version  string
	password string
	server   *httptest.Server

	mu        sync.Mutex
	conns     []*websocket.Conn
	requests  []string
	responses map[string]map[string]any
	failures  map[string]string
}

func newFakeOBS(t *testing.T, version, password string) *fakeOBS {
	t.Helper()
	f := &fakeOBS{
		t:         t,
		version:   version,
		password:  password,
		responses: make(map[string]map[string]any),
		failures:  make(map[string]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.close)
	return f
}

func (f *fakeOBS) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeOBS) respond(request string, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[request] = data
}

func (f *fakeOBS) fail(request, comment string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[request] = comment
}

func (f *fakeOBS) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeOBS) close() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	f.server.Close()
}

// dropClients closes every client socket without a close handshake
func (f *fakeOBS) dropClients() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (f *fakeOBS) push(frame any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if err := c.WriteJSON(frame); err != nil {
			f.t.Logf("push failed: %v", err)
		}
	}
}

func (f *fakeOBS) handle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Logf("upgrade failed: %v", err)
		return
	}

	if f.version == "v5" {
		if !f.identifyV5(conn) {
			conn.Close()
			return
		}
	}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var reply any
		if f.version == "v5" {
			reply = f.replyV5(data)
		} else {
			reply = f.replyV4(conn, data)
		}
		if reply == nil {
			continue
		}
		f.mu.Lock()
		err = conn.WriteJSON(reply)
		f.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (f *fakeOBS) identifyV5(conn *websocket.Conn) bool {
	hello := map[string]any{"obsWebSocketVersion": "5.1.0", "rpcVersion": 1}
	if f.password != "" {
		hello["authentication"] = map[string]string{"challenge": testChallenge, "salt": testSalt}
	}
	if err := conn.WriteJSON(map[string]any{"op": opHello, "d": hello}); err != nil {
		return false
	}

	var identify struct {
		Op int `json:"op"`
		D  struct {
			Authentication string `json:"authentication"`
		} `json:"d"`
	}
	if err := conn.ReadJSON(&identify); err != nil || identify.Op != opIdentify {
		return false
	}

	if f.password != "" && identify.D.Authentication != authResponse(f.password, testSalt, testChallenge) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthenticationFailed, "Authentication failed."),
			time.Now().Add(time.Second))
		return false
	}

	return conn.WriteJSON(map[string]any{"op": opIdentified, "d": map[string]any{"negotiatedRpcVersion": 1}}) == nil
}

func (f *fakeOBS) replyV5(data []byte) any {
	var req struct {
		D struct {
			RequestType string `json:"requestType"`
			RequestID   string `json:"requestId"`
		} `json:"d"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req.D.RequestType)

	status := map[string]any{"result": true, "code": 100}
	if comment, ok := f.failures[req.D.RequestType]; ok {
		status = map[string]any{"result": false, "code": 600, "comment": comment}
	}
	d := map[string]any{
		"requestType":   req.D.RequestType,
		"requestId":     req.D.RequestID,
		"requestStatus": status,
	}
	if resp, ok := f.responses[req.D.RequestType]; ok {
		d["responseData"] = resp
	}
	return map[string]any{"op": opRequestResponse, "d": d}
}

func (f *fakeOBS) replyV4(conn *websocket.Conn, data []byte) any {
	var req map[string]any
	if err := json.Unmarshal(data, &req); err != nil {
		return nil
	}
	requestType, _ := req["request-type"].(string)
	id, _ := req["message-id"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()

	reply := map[string]any{"message-id": id, "status": "ok"}
	switch requestType {
	case "GetAuthRequired":
		reply["authRequired"] = f.password != ""
		if f.password != "" {
			reply["challenge"] = testChallenge
			reply["salt"] = testSalt
		}
		return reply
	case "Authenticate":
		if req["auth"] != authResponse(f.password, testSalt, testChallenge) {
			reply["status"] = "error"
			reply["error"] = v4AuthFailed
		}
		return reply
	}

	f.requests = append(f.requests, requestType)
	if comment, ok := f.failures[requestType]; ok {
		reply["status"] = "error"
		reply["error"] = comment
		return reply
	}
	for k, v := range f.responses[requestType] {
		reply[k] = v
	}
	return reply
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTransport(t *testing.T, version string) *Transport {
	t.Helper()
	tr, err := NewTransport(version, WithRequestTimeout(2*time.Second), WithTransportLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}
	t.Cleanup(func() { tr.Disconnect() })
	return tr
}

// waitEvent subscribes to name and returns a channel receiving its events
func waitEvent(tr *Transport, name string) <-chan mixer.Event {
	ch := make(chan mixer.Event, 8)
	tr.On(name, func(e mixer.Event) { ch <- e })
	return ch
}

func receive(t *testing.T, ch <-chan mixer.Event, what string) mixer.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return mixer.Event{}
	}
}

func TestNewTransport_UnknownProtocol(t *testing.T) {
	if _, err := NewTransport("v3"); err == nil {
		t.Error("expected error for unsupported protocol")
	}
}

func TestAuthResponse(t *testing.T) {
	got := authResponse("supersecretpassword", testSalt, testChallenge)
	again := authResponse("supersecretpassword", testSalt, testChallenge)
	if got != again {
		t.Error("authResponse is not deterministic")
	}
	if got == authResponse("other", testSalt, testChallenge) {
		t.Error("different passwords produced the same response")
	}
	if len(got) != 44 {
		t.Errorf("len(authResponse) = %d, want 44 (base64 sha256)", len(got))
	}
}

func TestTransport_V5(t *testing.T) {
	for _, password := range []string{"", "hunter2"} {
		name := "no password"
		if password != "" {
			name = "with password"
		}
		t.Run(name, func(t *testing.T) {
			obs := newFakeOBS(t, "v5", password)
			obs.respond("GetRecordDirectory", map[string]any{"recordDirectory": "/recordings"})
			tr := newTestTransport(t, "v5")
			opened := waitEvent(tr, mixer.EventConnectionOpened)

			if err := tr.Connect(context.Background(), mixer.Address{URL: obs.url(), Password: password}); err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
			receive(t, opened, "ConnectionOpened")

			raw, err := tr.Send(context.Background(), "GetRecordDirectory", nil)
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			var resp struct {
				RecordDirectory string `json:"recordDirectory"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.RecordDirectory != "/recordings" {
				t.Errorf("recordDirectory = %q, want /recordings", resp.RecordDirectory)
			}
		})
	}
}

func TestTransport_V5WrongPassword(t *testing.T) {
	obs := newFakeOBS(t, "v5", "hunter2")
	tr := newTestTransport(t, "v5")

	err := tr.Connect(context.Background(), mixer.Address{URL: obs.url(), Password: "wrong"})
	if !errors.Is(err, mixer.ErrAuthentication) {
		t.Fatalf("Connect() error = %v, want ErrAuthentication", err)
	}
	if !mixer.IsAuthenticationError(err) {
		t.Error("IsAuthenticationError() = false")
	}
}

func TestTransport_V5MissingPassword(t *testing.T) {
	obs := newFakeOBS(t, "v5", "hunter2")
	tr := newTestTransport(t, "v5")

	err := tr.Connect(context.Background(), mixer.Address{URL: obs.url()})
	if !errors.Is(err, mixer.ErrAuthentication) {
		t.Fatalf("Connect() error = %v, want ErrAuthentication", err)
	}
}

func TestTransport_V5RequestFailure(t *testing.T) {
	obs := newFakeOBS(t, "v5", "")
	obs.fail("StartRecord", "recording already active")
	tr := newTestTransport(t, "v5")
	if err := tr.Connect(context.Background(), mixer.Address{URL: obs.url()}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	_, err := tr.Send(context.Background(), "StartRecord", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Send() error = %v, want *RequestError", err)
	}
	if reqErr.Request != "StartRecord" || reqErr.Code != 600 {
		t.Errorf("RequestError = %+v", reqErr)
	}
	if !strings.Contains(err.Error(), "recording already active") {
		t.Errorf("error %q does not carry the comment", err)
	}
}

func TestTransport_V5Events(t *testing.T) {
	obs := newFakeOBS(t, "v5", "")
	tr := newTestTransport(t, "v5")
	changed := waitEvent(tr, "RecordStateChanged")
	opened := waitEvent(tr, mixer.EventConnectionOpened)

	if err := tr.Connect(context.Background(), mixer.Address{URL: obs.url()}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	receive(t, opened, "ConnectionOpened")

	// wait until the server has registered the socket
	deadline := time.Now().Add(2 * time.Second)
	for {
		obs.mu.Lock()
		n := len(obs.conns)
		obs.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	obs.push(map[string]any{"op": opEvent, "d": map[string]any{
		"eventType": "RecordStateChanged",
		"eventData": map[string]any{"outputActive": true, "outputPath": "/rec/a.mkv"},
	}})

	e := receive(t, changed, "RecordStateChanged")
	if got := (DialectV5{}).RecordingPath(e); got != "/rec/a.mkv" {
		t.Errorf("RecordingPath = %q, want /rec/a.mkv", got)
	}
}

func TestTransport_ClosedByServer(t *testing.T) {
	obs := newFakeOBS(t, "v5", "")
	tr := newTestTransport(t, "v5")
	opened := waitEvent(tr, mixer.EventConnectionOpened)
	closed := waitEvent(tr, mixer.EventConnectionClosed)

	if err := tr.Connect(context.Background(), mixer.Address{URL: obs.url()}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	receive(t, opened, "ConnectionOpened")

	// make sure the server side socket is tracked before dropping it
	if _, err := tr.Send(context.Background(), "GetVersion", nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	obs.dropClients()
	receive(t, closed, "ConnectionClosed")

	if _, err := tr.Send(context.Background(), "GetVersion", nil); !errors.Is(err, mixer.ErrNotConnected) {
		t.Errorf("Send() after close error = %v, want ErrNotConnected", err)
	}
}

func TestTransport_SendBeforeConnect(t *testing.T) {
	tr := newTestTransport(t, "v5")
	if _, err := tr.Send(context.Background(), "GetVersion", nil); !errors.Is(err, mixer.ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Errorf("Disconnect() when idle error = %v", err)
	}
}

func TestTransport_DialFailure(t *testing.T) {
	tr := newTestTransport(t, "v5")
	err := tr.Connect(context.Background(), mixer.Address{URL: "ws://127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected dial error")
	}
	if mixer.IsAuthenticationError(err) {
		t.Errorf("dial error %v classified as authentication", err)
	}
}

func TestTransport_V4(t *testing.T) {
	obs := newFakeOBS(t, "v4", "hunter2")
	obs.respond("GetRecordingFolder", map[string]any{"rec-folder": "/old-obs"})
	obs.fail("StopRecording", "recording not active")
	tr := newTestTransport(t, "v4")

	if err := tr.Connect(context.Background(), mixer.Address{URL: obs.url(), Password: "hunter2"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	folder, err := (DialectV4{}).RecordingFolder(context.Background(), tr)
	if err != nil {
		t.Fatalf("RecordingFolder() error = %v", err)
	}
	if folder != "/old-obs" {
		t.Errorf("folder = %q, want /old-obs", folder)
	}

	err = (DialectV4{}).StopRecording(context.Background(), tr)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Comment != "recording not active" {
		t.Errorf("StopRecording() error = %v, want RequestError", err)
	}

	got := obs.received()
	if len(got) != 2 || got[0] != "GetRecordingFolder" || got[1] != "StopRecording" {
		t.Errorf("server received %v", got)
	}
}

func TestTransport_V4WrongPassword(t *testing.T) {
	obs := newFakeOBS(t, "v4", "hunter2")
	tr := newTestTransport(t, "v4")

	err := tr.Connect(context.Background(), mixer.Address{URL: obs.url(), Password: "nope"})
	if !errors.Is(err, mixer.ErrAuthentication) {
		t.Fatalf("Connect() error = %v, want ErrAuthentication", err)
	}
}

func TestProtocolV4_Decode(t *testing.T) {
	p := protocolV4{}

	msg, err := p.decode([]byte(`{"update-type":"RecordingStarted","recordingFilename":"/r/x.mkv"}`))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if !msg.isEvent || msg.event != "RecordingStarted" {
		t.Errorf("decode() = %+v, want RecordingStarted event", msg)
	}
	if got := (DialectV4{}).RecordingPath(mixer.Event{Name: msg.event, Data: msg.data}); got != "/r/x.mkv" {
		t.Errorf("RecordingPath = %q", got)
	}

	if _, err := p.decode([]byte(`{"status":"ok"}`)); err == nil {
		t.Error("expected error for frame without message-id")
	}
}

func TestProtocolV4_EncodeRequest(t *testing.T) {
	data, err := protocolV4{}.encodeRequest("42", "TakeSourceScreenshot", map[string]any{"sourceName": "Cam"})
	if err != nil {
		t.Fatalf("encodeRequest() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["request-type"] != "TakeSourceScreenshot" || got["message-id"] != "42" || got["sourceName"] != "Cam" {
		t.Errorf("encoded = %v", got)
	}

	if _, err := (protocolV4{}).encodeRequest("1", "X", []string{"not", "object"}); err == nil {
		t.Error("expected error for non-object arguments")
	}
}
