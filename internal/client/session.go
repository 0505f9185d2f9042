package client

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fieldpump/internal/protocol"
)

// ReconnectDelay is the fixed wait before redialing a dropped connection.
const ReconnectDelay = 3000 * time.Millisecond

// State is the session's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Conn is the subset of a websocket connection the session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to the game server.
type Dialer func(url string) (Conn, error)

func defaultDialer(url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

// Session owns the client's socket lifecycle: dialing, the read loop,
// outbound sends, and the fixed-delay reconnect timer. Messages that cannot
// be sent while disconnected are dropped, not queued; callers re-send on the
// next state change if they need delivery.
type Session struct {
	url  string
	dial Dialer
	log  *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	conn      Conn
	reconnect *time.Timer
	stopped   bool

	handler func(protocol.Message)
	onState func(State)

	retryDelay time.Duration
}

func NewSession(url string, log *zap.SugaredLogger) *Session {
	return &Session{url: url, dial: defaultDialer, log: log, retryDelay: ReconnectDelay}
}

// NewSessionWithDialer exists for callers that inject their own transport.
func NewSessionWithDialer(url string, dial Dialer, log *zap.SugaredLogger) *Session {
	return &Session{url: url, dial: dial, log: log, retryDelay: ReconnectDelay}
}

// OnMessage registers the handler invoked once per decoded inbound message,
// in arrival order. Undecodable frames never reach it. Must be set before
// Connect.
func (s *Session) OnMessage(handler func(protocol.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// OnStateChange registers a callback for connection state transitions, e.g.
// to drive a "disconnected" indicator. Must be set before Connect.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect starts dialing. It is idempotent: a session that is already
// connecting, connected, or waiting on its reconnect timer is left alone.
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.state != StateDisconnected {
		return
	}
	s.setStateLocked(StateConnecting)
	go s.run()
}

// Send encodes and transmits a message. Outside the connected state the
// message is silently dropped.
func (s *Session) Send(msg protocol.Message) {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || conn == nil {
		return
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Errorw("encode failed", "type", msg.MessageType(), "err", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The read loop observes the broken socket and drives reconnect.
		s.log.Debugw("write failed", "err", err)
	}
}

// Stop cancels any pending reconnect and closes the socket. No further
// reconnect attempts occur; the session is spent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.setStateLocked(StateDisconnected)
}

func (s *Session) run() {
	conn, err := s.dial(s.url)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.log.Warnw("dial failed", "url", s.url, "err", err)
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		return
	}
	s.conn = conn
	s.setStateLocked(StateConnected)
	handler := s.handler
	s.mu.Unlock()

	s.log.Infow("connected to game server", "url", s.url)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, derr := protocol.Decode(raw)
		if derr != nil {
			s.log.Debugw("dropping undecodable frame", "err", derr)
			continue
		}
		if handler != nil {
			handler(msg)
		}
	}

	conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
	if s.stopped {
		return
	}
	s.log.Infow("disconnected from game server")
	s.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the fixed-delay retry. Caller holds s.mu.
func (s *Session) scheduleReconnectLocked() {
	s.setStateLocked(StateReconnecting)
	s.reconnect = time.AfterFunc(s.retryDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped || s.state != StateReconnecting {
			return
		}
		s.reconnect = nil
		s.setStateLocked(StateConnecting)
		go s.run()
	})
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	if s.onState != nil {
		// Callback runs outside the lock so it may call back into the
		// session, e.g. Send on reconnect.
		fn := s.onState
		go fn(st)
	}
}
