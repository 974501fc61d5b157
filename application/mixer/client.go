package mixer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tourney-media/domain/mixer"
	"tourney-media/domain/video"
)

// DefaultReplayTimeout bounds how long SaveReplayBuffer waits for the file
const DefaultReplayTimeout = 10 * time.Second

// Client implements mixer.Controller on top of a ConnectionManager. The
// protocol version only changes the Dialect; backoff and queueing are shared.
type Client struct {
	conn          *ConnectionManager
	dialect       mixer.Dialect
	files         mixer.RecordingFiles
	cache         RecordingCache
	replayTimeout time.Duration
	logger        *slog.Logger

	mu            sync.Mutex
	subscriptions map[mixer.ListenerID]string
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithReplayTimeout sets how long SaveReplayBuffer waits for the saved file
func WithReplayTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.replayTimeout = d
		}
	}
}

// WithClientLogger sets the logger
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a mixer client and subscribes its recording cache to
// the events that invalidate it.
func NewClient(conn *ConnectionManager, dialect mixer.Dialect, files mixer.RecordingFiles, opts ...ClientOption) *Client {
	c := &Client{
		conn:          conn,
		dialect:       dialect,
		files:         files,
		replayTimeout: DefaultReplayTimeout,
		logger:        slog.Default(),
		subscriptions: make(map[mixer.ListenerID]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.subscribe(mixer.EventConnectionOpened, func(mixer.Event) {
		c.cache.Invalidate()
	})
	for _, name := range dialect.RecordingEvents() {
		c.subscribe(name, c.handleRecordingEvent)
	}

	return c
}

func (c *Client) subscribe(event string, handler mixer.EventHandler) {
	id := c.conn.On(event, handler)
	c.mu.Lock()
	c.subscriptions[id] = event
	c.mu.Unlock()
}

func (c *Client) handleRecordingEvent(e mixer.Event) {
	c.cache.Invalidate()
	if path := c.dialect.RecordingPath(e); path != "" {
		c.cache.SetFile(path)
	}
	c.logger.Debug("recording state changed", "event", e.Name)
}

// Close removes the client's event subscriptions
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, event := range c.subscriptions {
		c.conn.Off(event, id)
	}
	c.subscriptions = make(map[mixer.ListenerID]string)
}

// Dialect returns the protocol dialect in use
func (c *Client) Dialect() mixer.Dialect {
	return c.dialect
}

// State returns the connection state
func (c *Client) State() mixer.ConnectionState {
	return c.conn.State()
}

// Connect implements mixer.Controller
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Disconnect implements mixer.Controller
func (c *Client) Disconnect() error {
	return c.conn.Disconnect()
}

// IsConnected implements mixer.Controller
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// On implements mixer.Controller
func (c *Client) On(event string, handler mixer.EventHandler) mixer.ListenerID {
	return c.conn.On(event, handler)
}

// Off implements mixer.Controller
func (c *Client) Off(event string, id mixer.ListenerID) {
	c.conn.Off(event, id)
}

// TakeThumbnail returns an encoded image of source scaled to width
func (c *Client) TakeThumbnail(ctx context.Context, source string, width int) ([]byte, error) {
	if source == "" {
		var err error
		source, err = c.CurrentScene(ctx)
		if err != nil {
			return nil, err
		}
	}
	return c.dialect.TakeThumbnail(ctx, c.conn, source, width)
}

// CurrentScene returns the name of the program scene
func (c *Client) CurrentScene(ctx context.Context) (string, error) {
	return c.dialect.CurrentScene(ctx, c.conn)
}

// StartRecording implements mixer.Controller
func (c *Client) StartRecording(ctx context.Context) error {
	if err := c.dialect.StartRecording(ctx, c.conn); err != nil {
		return err
	}
	c.cache.Invalidate()
	return nil
}

// StopRecording implements mixer.Controller
func (c *Client) StopRecording(ctx context.Context) error {
	if err := c.dialect.StopRecording(ctx, c.conn); err != nil {
		return err
	}
	c.cache.Invalidate()
	return nil
}

// RecordingFolder returns the folder the mixer records into
func (c *Client) RecordingFolder(ctx context.Context) (string, error) {
	if folder, ok := c.cache.Folder(); ok {
		return folder, nil
	}

	folder, err := c.dialect.RecordingFolder(ctx, c.conn)
	if err != nil {
		return "", err
	}
	c.cache.SetFolder(folder)
	return folder, nil
}

// RecordingFile returns the file of the current or most recent recording
func (c *Client) RecordingFile(ctx context.Context) (string, error) {
	if file, ok := c.cache.File(); ok {
		return file, nil
	}

	folder, err := c.RecordingFolder(ctx)
	if err != nil {
		return "", err
	}

	file, err := c.files.NewestFile(folder)
	if err != nil {
		return "", fmt.Errorf("failed to find recording file: %w", err)
	}
	c.cache.SetFile(file)
	return file, nil
}

// RecordingTimestamp returns the current position in the active recording
func (c *Client) RecordingTimestamp(ctx context.Context) (video.Timestamp, error) {
	status, err := c.dialect.RecordingStatus(ctx, c.conn)
	if err != nil {
		return 0, err
	}
	if !status.Active {
		return 0, mixer.ErrNotRecording
	}
	return status.Timecode, nil
}

// SaveReplayBuffer saves the replay buffer and returns the path of the file
// the mixer writes. The folder is watched before the save is requested so
// the new file cannot be missed.
func (c *Client) SaveReplayBuffer(ctx context.Context) (string, error) {
	folder, err := c.RecordingFolder(ctx)
	if err != nil {
		return "", err
	}

	watch, err := c.files.Watch(folder)
	if err != nil {
		return "", fmt.Errorf("failed to watch %s: %w", folder, err)
	}
	defer watch.Close()

	if err := c.dialect.SaveReplayBuffer(ctx, c.conn); err != nil {
		return "", err
	}

	path, err := watch.WaitForFile(ctx, c.replayTimeout)
	if err != nil {
		return "", fmt.Errorf("replay buffer save: %w", err)
	}

	c.logger.Info("replay buffer saved", "path", path)
	return path, nil
}

// Ensure Client implements mixer.Controller
var _ mixer.Controller = (*Client)(nil)
