// Package session implements one WebSocket connection per device: a
// three-state handshake machine and the typed message dispatch table
// that gates which messages a connection may send before and after
// authentication.
package session

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is a session's position in the connection handshake.
type State string

const (
	StateConnected     State = "connected"
	StateRegistered    State = "registered"
	StateAuthenticated State = "authenticated"
	StateClosed        State = "closed"
)

// allowedInState is the acceptance table: which message types a
// session may send in each of its three live states.
var allowedInState = map[string]map[State]bool{
	"register":      {StateConnected: true, StateRegistered: true, StateAuthenticated: true},
	"authenticate":  {StateRegistered: true, StateAuthenticated: true},
	"ping":          {StateConnected: true, StateRegistered: true, StateAuthenticated: true},
	"step_data":     {StateAuthenticated: true},
	"getPet":        {StateAuthenticated: true},
	"updatePet":     {StateAuthenticated: true},
	"claimResources": {StateAuthenticated: true},
	"feedPet":       {StateAuthenticated: true},
	"playWithPet":   {StateAuthenticated: true},
}

// inFrame is the envelope every inbound text frame is unmarshaled
// into. ReadLoop does not populate Raw; handlers are passed the whole
// frame body and re-unmarshal it for their specific fields.
type inFrame struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// Session is one connection handling one device.
type Session struct {
	mu sync.RWMutex

	conn       *websocket.Conn
	remoteAddr string
	state      State
	deviceID   string

	outbound chan []byte
	closed   chan struct{}
	closeOnce sync.Once

	maxFrameBytes int64
	idleTimeout   time.Duration
	pingInterval  time.Duration

	logger *log.Logger
}

// Config bounds a session's frame size and keep-alive cadence.
type Config struct {
	MaxFrameBytes  int64
	IdleTimeout    time.Duration
	PingInterval   time.Duration
	OutboundBuffer int
}

// New wraps conn into a Session in the initial Connected state.
func New(conn *websocket.Conn, cfg Config, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(log.Writer(), "[session] ", log.LstdFlags)
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = 32
	}
	return &Session{
		conn:          conn,
		remoteAddr:    conn.RemoteAddr().String(),
		state:         StateConnected,
		outbound:      make(chan []byte, cfg.OutboundBuffer),
		closed:        make(chan struct{}),
		maxFrameBytes: cfg.MaxFrameBytes,
		idleTimeout:   cfg.IdleTimeout,
		pingInterval:  cfg.PingInterval,
		logger:        logger,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// DeviceID returns the device bound to this session, or "" if none.
func (s *Session) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// transition moves the session to next, recording the bound deviceID
// when provided.
func (s *Session) transition(next State, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
	if deviceID != "" {
		s.deviceID = deviceID
	}
}

// allowed reports whether msgType may be handled in the session's
// current state.
func (s *Session) allowed(msgType string) bool {
	states, ok := allowedInState[msgType]
	if !ok {
		return false
	}
	return states[s.State()]
}

// Send enqueues a typed payload on the outbound channel. If the
// channel is full, the session is dropped rather than allowed to
// build unbounded backlog.
func (s *Session) Send(v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("session %s: marshal outbound frame: %v", s.remoteAddr, err)
		return
	}
	select {
	case s.outbound <- body:
	case <-s.closed:
	default:
		s.logger.Printf("session %s: outbound buffer full, dropping session", s.remoteAddr)
		s.Close()
	}
}

// Close tears down the connection and cancels in-flight outbound
// writes.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.transition(StateClosed, "")
		close(s.closed)
		s.conn.Close()
	})
}

// WriteLoop serializes writes to the connection until the session
// closes. Run this in its own goroutine per connection.
func (s *Session) WriteLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case <-s.closed:
			return
		case body, ok := <-s.outbound:
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				s.logger.Printf("session %s: write failed: %v", s.remoteAddr, err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadLoop reads frames and dispatches them to dispatch until the
// connection closes or an idle deadline is exceeded. Run this in its
// own goroutine per connection.
func (s *Session) ReadLoop(dispatch func(s *Session, msgType string, raw json.RawMessage)) {
	defer s.Close()

	s.conn.SetReadLimit(s.maxFrameBytes)
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	})
	_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

	for {
		_, body, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var f inFrame
		if err := json.Unmarshal(body, &f); err != nil {
			s.Send(map[string]interface{}{"type": "error", "success": false, "error": "malformed frame: not a JSON object"})
			continue
		}

		if !s.allowed(f.Type) {
			s.Send(map[string]interface{}{"type": "error", "success": false, "error": "message type not allowed in current session state"})
			continue
		}

		dispatch(s, f.Type, body)
	}
}
