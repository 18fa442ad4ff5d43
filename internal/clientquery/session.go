package clientquery

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Role is a session's functional assignment. Each role gets its own
// connection so a blocking event wait never starves command execution.
type Role string

const (
	RoleGeneral   Role = "general"
	RoleEvent     Role = "event"
	RoleWorker    Role = "worker"
	RoleReference Role = "reference"
)

// Roles enumerates every session slot the bot maintains.
var Roles = []Role{RoleGeneral, RoleEvent, RoleWorker, RoleReference}

// maxPending bounds notifications buffered during command execution on
// sessions nobody actively drains.
const maxPending = 64

// Notifications returns the notification kinds registered for the role.
// Only the event session subscribes to the full presence stream; the
// general and worker sessions keep a text-message subscription so direct
// commands still work if the event session is down.
func (r Role) Notifications() []string {
	switch r {
	case RoleEvent:
		return []string{
			"notifytextmessage",
			"notifycliententerview",
			"notifyclientleftview",
			"notifyclientmoved",
			"notifyclientupdated",
			"notifychanneledited",
		}
	case RoleGeneral, RoleWorker:
		return []string{"notifytextmessage"}
	default:
		return nil
	}
}

// Config carries everything needed to establish one authenticated session.
type Config struct {
	Addr          string // host:port of the ClientQuery endpoint
	APIKey        string
	ServerAddress string // voice server to attach to; empty = skip
	Nickname      string
	DialTimeout   time.Duration
}

// Session is one authenticated ClientQuery connection. It is either fully
// set up (authenticated, in use, registered for its role's notifications)
// or it does not exist; Connect never returns a half-initialized session.
type Session struct {
	cfg  Config
	role Role

	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex // serializes writes and execute round-trips

	mu      sync.Mutex
	pending []string // notifications that arrived during an execute

	closed              atomic.Bool
	lastKeepalive       atomic.Int64 // unix nanos
	lastServerReconnect atomic.Int64
}

// Connect dials the endpoint and runs the full setup sequence: banner,
// auth, use, optional voice-server attach, notification registration.
// Any failure closes the transport and surfaces the error; retrying is the
// caller's job.
func Connect(cfg Config, role Role) (*Session, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", cfg.Addr, timeout)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:  cfg,
		role: role,
		conn: conn,
		r:    bufio.NewReader(conn),
	}

	if err := s.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) setup() error {
	if err := s.readBanner(); err != nil {
		return fmt.Errorf("banner: %w", err)
	}
	if _, err := s.Execute("auth", KV("apikey", s.cfg.APIKey)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if _, err := s.Execute("use", KV("schandlerid", "1")); err != nil {
		return fmt.Errorf("use: %w", err)
	}
	if s.cfg.ServerAddress != "" {
		if err := s.ConnectServer(); err != nil {
			return err
		}
	}
	if kinds := s.role.Notifications(); len(kinds) > 0 {
		if err := s.RegisterNotifications(kinds...); err != nil {
			return err
		}
	}
	s.lastKeepalive.Store(time.Now().UnixNano())
	return nil
}

// readBanner consumes the greeting lines up to the auth hint. Some client
// versions append a "selected schandlerid" line, which is consumed too.
func (s *Session) readBanner() error {
	_ = s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if strings.Contains(line, `"auth"`) || strings.Contains(line, "selected schandlerid") {
			return nil
		}
	}
}

// Role returns the session's functional assignment.
func (s *Session) Role() Role { return s.role }

// IsAlive reports whether the session is usable. It is a local check only;
// a stale but unclosed connection still counts until the next I/O fails.
func (s *Session) IsAlive() bool {
	return s != nil && !s.closed.Load() && s.conn != nil
}

// Close tears the transport down. Safe to call twice; also unblocks any
// WaitEvent in progress.
func (s *Session) Close() {
	if s == nil || s.closed.Swap(true) {
		return
	}
	_ = s.conn.Close()
}

// LastKeepalive reports when the connection last confirmed liveness.
func (s *Session) LastKeepalive() time.Time {
	return time.Unix(0, s.lastKeepalive.Load())
}

// LastServerReconnect reports the last voice-server attach attempt.
func (s *Session) LastServerReconnect() time.Time {
	n := s.lastServerReconnect.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// SendKeepalive writes an empty line. The client answers nothing; the write
// succeeding is the health signal.
func (s *Session) SendKeepalive() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.writeLine(""); err != nil {
		return err
	}
	s.lastKeepalive.Store(time.Now().UnixNano())
	return nil
}

// Execute sends one command and reads until its error trailer. Body lines
// are parsed into field maps; notifications that interleave with the
// response are buffered for the next WaitEvent. A non-zero error code
// yields a *QueryError.
func (s *Session) Execute(name string, args ...Arg) (*Result, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.closed.Load() {
		return nil, net.ErrClosed
	}

	if err := s.writeLine(BuildCommand(name, args...)); err != nil {
		return nil, err
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	defer s.conn.SetReadDeadline(time.Time{})

	res := &Result{}
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "notify"):
			s.mu.Lock()
			s.pending = append(s.pending, line)
			if len(s.pending) > maxPending {
				s.pending = s.pending[len(s.pending)-maxPending:]
			}
			s.mu.Unlock()
		case strings.HasPrefix(line, "error "):
			qe := parseErrorLine(name, line)
			if qe.ID != CodeOK {
				return res, qe
			}
			s.lastKeepalive.Store(time.Now().UnixNano())
			return res, nil
		default:
			res.Entries = append(res.Entries, ParseLine(line)...)
		}
	}
}

// WaitEvent blocks until the next notification payload. timeout <= 0 waits
// indefinitely (Close unblocks the read). Returns ErrTimeout on expiry.
//
// WaitEvent reads the transport without holding the execute mutex, so a
// session's reads must all come from one goroutine: whichever goroutine
// calls WaitEvent must also be the only one issuing Execute-based calls
// on that session. Write-only calls (SendKeepalive) are safe from
// anywhere.
func (s *Session) WaitEvent(timeout time.Duration) (string, error) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		raw := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		return raw, nil
	}
	s.mu.Unlock()

	if s.closed.Load() {
		return "", net.ErrClosed
	}

	if timeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
		defer s.conn.SetReadDeadline(time.Time{})
	}

	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() && timeout > 0 {
				return "", ErrTimeout
			}
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "notify") {
			s.lastKeepalive.Store(time.Now().UnixNano())
			return line, nil
		}
		// stray response line outside an execute: drop it
	}
}

// RegisterNotifications subscribes the session to the given event kinds on
// server connection handler 1.
func (s *Session) RegisterNotifications(kinds ...string) error {
	for _, kind := range kinds {
		_, err := s.Execute("clientnotifyregister",
			KV("schandlerid", "1"), KV("event", kind))
		if err != nil {
			return fmt.Errorf("register %s: %w", kind, err)
		}
	}
	return nil
}

// ConnectServer issues the voice-server attach. The already-connected code
// is not an error: the client is where we want it.
func (s *Session) ConnectServer() error {
	s.lastServerReconnect.Store(time.Now().UnixNano())
	args := []Arg{KV("address", s.cfg.ServerAddress)}
	if s.cfg.Nickname != "" {
		args = append(args, KV("nickname", s.cfg.Nickname))
	}
	_, err := s.Execute("connect", args...)
	var qe *QueryError
	if errors.As(err, &qe) && qe.ID == CodeAlreadyConnected {
		return nil
	}
	return err
}

func (s *Session) writeLine(line string) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

func parseErrorLine(command, line string) *QueryError {
	qe := &QueryError{Command: command}
	for _, f := range ParseLine(strings.TrimPrefix(line, "error ")) {
		if v, ok := f["id"]; ok {
			qe.ID, _ = strconv.Atoi(v)
		}
		if v, ok := f["msg"]; ok {
			qe.Msg = v
		}
	}
	return qe
}
