// Package mixer describes the vision mixer (OBS) that the production tool
// drives over its network control API.
package mixer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"tourney-media/domain/video"
)

// ConnectionState is the state of the single logical connection to the mixer
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Events every transport emits in addition to its protocol push events
const (
	EventConnectionOpened = "ConnectionOpened"
	EventConnectionClosed = "ConnectionClosed"
)

var (
	// ErrAuthentication is returned when the mixer rejects the credential
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnableToConnect is returned once the connection attempt budget is spent
	ErrUnableToConnect = errors.New("unable to connect to vision mixer")

	// ErrNotConnected is returned by a transport used before Connect
	ErrNotConnected = errors.New("not connected")

	// ErrConnectAbandoned is returned to callers of an attempt that
	// Disconnect cut short
	ErrConnectAbandoned = errors.New("connection attempt abandoned by disconnect")

	// ErrTimeout is returned when a replay buffer file never appears
	ErrTimeout = errors.New("timed out")

	// ErrNotRecording is returned when a recording timestamp is requested while idle
	ErrNotRecording = errors.New("mixer is not recording")
)

// IsAuthenticationError reports whether err is an authentication failure.
// Transports only report a description, so the text is inspected too.
func IsAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthentication) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "authentication")
}

// Address identifies a mixer control endpoint
type Address struct {
	URL      string
	Password string
}

// Event is a push event delivered by the transport
type Event struct {
	Name string
	Data json.RawMessage
}

// EventHandler receives transport events
type EventHandler func(Event)

// ListenerID identifies a registered handler for Off
type ListenerID uint64

// Transport is the bidirectional request/response and push-event channel
// to the mixer.
type Transport interface {
	Connect(ctx context.Context, addr Address) error
	Disconnect() error
	Send(ctx context.Context, request string, args any) (json.RawMessage, error)

	On(event string, handler EventHandler) ListenerID
	Off(event string, id ListenerID)
	Once(event string, handler EventHandler) ListenerID
}

// Sender issues one request to the mixer
type Sender interface {
	Send(ctx context.Context, request string, args any) (json.RawMessage, error)
}

// RecordingStatus is the mixer's view of the current recording
type RecordingStatus struct {
	Active   bool
	Timecode video.Timestamp
}

// Dialect encodes the wire-level request and response shapes of one
// protocol version.
type Dialect interface {
	Name() string

	TakeThumbnail(ctx context.Context, s Sender, source string, width int) ([]byte, error)
	CurrentScene(ctx context.Context, s Sender) (string, error)
	StartRecording(ctx context.Context, s Sender) error
	StopRecording(ctx context.Context, s Sender) error
	RecordingFolder(ctx context.Context, s Sender) (string, error)
	RecordingStatus(ctx context.Context, s Sender) (RecordingStatus, error)
	SaveReplayBuffer(ctx context.Context, s Sender) error

	// RecordingEvents names the push events that change the recording folder or file
	RecordingEvents() []string

	// RecordingPath extracts the output file path from a recording event, if present
	RecordingPath(e Event) string
}

// Controller is the capability interface higher layers use to drive the mixer
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	TakeThumbnail(ctx context.Context, source string, width int) ([]byte, error)
	CurrentScene(ctx context.Context) (string, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	RecordingFolder(ctx context.Context) (string, error)
	RecordingFile(ctx context.Context) (string, error)
	RecordingTimestamp(ctx context.Context) (video.Timestamp, error)
	SaveReplayBuffer(ctx context.Context) (string, error)

	On(event string, handler EventHandler) ListenerID
	Off(event string, id ListenerID)
}

// RecordingFiles inspects the mixer's recording folder on the local disk
type RecordingFiles interface {
	// NewestFile returns the most recently modified file in dir
	NewestFile(dir string) (string, error)

	// Watch starts watching dir for newly written files
	Watch(dir string) (DirWatch, error)
}

// DirWatch is an active watch on one directory. Close must always be called.
type DirWatch interface {
	// WaitForFile returns the next file written in the directory, or an
	// error wrapping ErrTimeout if none appears within timeout
	WaitForFile(ctx context.Context, timeout time.Duration) (string, error)
	Close() error
}
