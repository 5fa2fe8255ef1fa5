package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Push message ops.
const (
	OpReady        = "ready"
	OpStats        = "stats"
	OpPlayerUpdate = "playerUpdate"
	OpEvent        = "event"
)

var ErrUnknownOp = errors.New("unknown op")

// Handler receives the decoded push messages of a socket.
type Handler interface {
	OnReady(ready Ready)
	OnStats(stats Stats)
	OnPlayerUpdate(update PlayerUpdateEvent)
	OnEvent(event Event)
	// OnDisconnect is called every time the connection drops, before any reconnect.
	OnDisconnect(err error)
}

// SocketConfig represents push socket configuration.
type SocketConfig struct {
	Host             string
	Port             int
	Password         string
	Secure           bool
	UserID           string
	ClientName       string
	Resume           bool
	MaxRetryAttempts int
	RetryDelay       time.Duration
}

// Socket is the push-event connection to one node. It reconnects on its own
// until the retry budget is spent.
type Socket struct {
	cfg      SocketConfig
	handler  Handler
	endpoint string
	dialer   *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSocket creates a socket. Call Connect to open it.
func NewSocket(cfg SocketConfig, handler Handler) *Socket {
	scheme := "ws"
	if cfg.Secure {
		scheme = "wss"
	}
	return &Socket{
		cfg:      cfg,
		handler:  handler,
		endpoint: fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, cfg.Host, cfg.Port),
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// SessionID returns the session announced by the last ready message.
func (s *Socket) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Socket) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", s.cfg.Password)
	h.Set("User-Id", s.cfg.UserID)
	h.Set("Client-Name", s.cfg.ClientName)
	if s.cfg.Resume {
		if sid := s.SessionID(); sid != "" {
			h.Set("Session-Id", sid)
		}
	}
	return h
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint, s.header())
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "failed to connect to %s: status %d", s.endpoint, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "failed to connect to %s", s.endpoint)
	}
	return conn, nil
}

// Connect opens the connection and starts the read loop.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("socket already connected")
	}
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	zlog.Info().Msgf("lavalink: socket connected: endpoint=%s", s.endpoint)
	go s.run(runCtx, conn)
	return nil
}

// Close stops the read loop and closes the connection.
func (s *Socket) Close() error {
	s.mu.Lock()
	cancel, conn, done := s.cancel, s.conn, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = conn.Close()
	}
	<-done
	return err
}

func (s *Socket) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)

	for {
		err := s.readLoop(conn)
		if ctx.Err() != nil {
			return
		}
		zlog.Warn().Err(err).Msgf("lavalink: socket closed: endpoint=%s", s.endpoint)
		s.handler.OnDisconnect(err)

		conn = s.reconnect(ctx)
		if conn == nil {
			return
		}
	}
}

// reconnect retries the dial with a fixed delay. It returns nil when the budget
// is spent or the socket is closed.
func (s *Socket) reconnect(ctx context.Context) *websocket.Conn {
	for attempt := 1; attempt <= s.cfg.MaxRetryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.RetryDelay):
		}

		conn, err := s.dial(ctx)
		if err != nil {
			zlog.Warn().Err(err).Msgf("lavalink: reconnect failed: endpoint=%s attempt=%d/%d",
				s.endpoint, attempt, s.cfg.MaxRetryAttempts)
			continue
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		zlog.Info().Msgf("lavalink: socket reconnected: endpoint=%s attempt=%d", s.endpoint, attempt)
		return conn
	}
	zlog.Error().Msgf("lavalink: giving up on socket: endpoint=%s attempts=%d", s.endpoint, s.cfg.MaxRetryAttempts)
	return nil
}

func (s *Socket) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := decodeMessage(data)
		if err != nil {
			zlog.Warn().Err(err).Msgf("lavalink: dropping message: endpoint=%s", s.endpoint)
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Socket) dispatch(msg any) {
	switch m := msg.(type) {
	case Ready:
		s.mu.Lock()
		s.sessionID = m.SessionID
		s.mu.Unlock()
		s.handler.OnReady(m)
	case Stats:
		s.handler.OnStats(m)
	case PlayerUpdateEvent:
		s.handler.OnPlayerUpdate(m)
	case Event:
		s.handler.OnEvent(m)
	}
}

// decodeMessage turns one push frame into Ready, Stats, PlayerUpdateEvent or Event.
func decodeMessage(data []byte) (any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}
	op, _ := raw["op"].(string)

	var out any
	switch op {
	case OpReady:
		out = &Ready{}
	case OpStats:
		out = &Stats{}
	case OpPlayerUpdate:
		out = &PlayerUpdateEvent{}
	case OpEvent:
		out = &Event{}
	default:
		return nil, errors.Wrapf(ErrUnknownOp, "%q", op)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s message", op)
	}

	switch v := out.(type) {
	case *Ready:
		return *v, nil
	case *Stats:
		return *v, nil
	case *PlayerUpdateEvent:
		return *v, nil
	case *Event:
		return *v, nil
	}
	return nil, errors.Wrapf(ErrUnknownOp, "%q", op)
}
