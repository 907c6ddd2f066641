// Package ipcserver accepts client connections on the workspace's Unix
// domain socket, decodes one framed JSON-RPC request per read, dispatches
// it, and frames the response back. It owns activity accounting and
// in-flight handler tracking per spec §4.3.
package ipcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roslynq/roslynq/internal/debug"
	"github.com/roslynq/roslynq/internal/dispatcher"
	"github.com/roslynq/roslynq/internal/wire"
)

// Server is one workspace's accept loop and connection handlers.
type Server struct {
	socketPath string
	dispatch   *dispatcher.Dispatcher

	// OnShutdownRequested is invoked once, after a "shutdown" RPC's reply
	// has been flushed to its connection, to let the supervisor begin
	// graceful process shutdown (spec §4.7(a)).
	OnShutdownRequested func()

	// OnActivity is invoked after every successfully parsed request, so an
	// owning supervisor's idle watchdog sees request traffic too (spec
	// §4.3: "every successfully parsed request ... updates" last_activity).
	OnActivity func()

	listener net.Listener

	activityMu   sync.Mutex
	lastActivity time.Time

	connsMu sync.Mutex
	conns   map[int64]net.Conn
	nextID  int64

	wg       sync.WaitGroup
	closing  chan struct{}
	closeOne sync.Once
}

// New builds a Server bound to dispatch. Call Start to bind the socket.
func New(socketPath string, dispatch *dispatcher.Dispatcher) *Server {
	return &Server{
		socketPath:   socketPath,
		dispatch:     dispatch,
		conns:        make(map[int64]net.Conn),
		closing:      make(chan struct{}),
		lastActivity: time.Now(),
	}
}

// Start ensures the parent directory exists, removes any stale socket file,
// binds the socket, restricts its permissions, and begins accepting
// connections in the background.
//
// Go's net package does not expose the listen(2) backlog parameter for
// Unix sockets; the kernel default applies (spec §4.3's backlog of 5 is
// documented here as a target, not independently enforceable from stdlib).
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("binding socket %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("restricting socket permissions: %w", err)
	}
	s.listener = ln

	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
				continue
			}
		}
		id := s.registerConn(conn)
		s.wg.Add(1)
		go s.handleConn(id, conn)
	}
}

func (s *Server) registerConn(conn net.Conn) int64 {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.nextID++
	id := s.nextID
	s.conns[id] = conn
	return id
}

func (s *Server) deregisterConn(id int64) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, id)
}

func (s *Server) handleConn(id int64, conn net.Conn) {
	defer s.wg.Done()
	defer s.deregisterConn(id)
	defer conn.Close()

	for {
		raw, err := wire.ReadFrame(conn)
		if err != nil {
			return // EOF, bad frame length, or codec error: close silently.
		}

		var req wire.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			s.writeResponse(conn, wire.NewErrorResponse("", wire.CodeParseError, "malformed request: "+err.Error()))
			continue
		}

		s.touchActivity()
		if s.OnActivity != nil {
			s.OnActivity()
		}
		debug.Log("ipcserver: conn %d request %s method %q", id, req.ID, req.Method)

		result := func() (r dispatcher.Result) {
			defer func() {
				if p := recover(); p != nil {
					debug.Log("ipcserver: conn %d request %s panicked: %v", id, req.ID, p)
					r = dispatcher.Result{Err: wire.NewError(wire.CodeInternalError, "internal error")}
				}
			}()
			return s.dispatch.Dispatch(context.Background(), req.Method, req.Params)
		}()
		var resp *wire.Response
		if result.Err != nil {
			resp = wire.NewErrorResponse(req.ID, result.Err.Code, result.Err.Message)
			debug.Log("ipcserver: conn %d request %s failed: %s", id, req.ID, result.Err.Message)
		} else {
			resp = &wire.Response{JSONRPC: "2.0", ID: req.ID, Result: result.Payload}
		}

		if err := s.writeResponse(conn, resp); err != nil {
			return
		}

		if result.TriggerShutdown && s.OnShutdownRequested != nil {
			go s.OnShutdownRequested()
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *wire.Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return wire.WriteFrame(conn, raw)
}

func (s *Server) touchActivity() {
	s.activityMu.Lock()
	s.lastActivity = time.Now()
	s.activityMu.Unlock()
}

// NoteActivity lets callers outside the request path (e.g. the watcher,
// per spec §4.3: "every batch of observed file changes" updates activity)
// record activity too.
func (s *Server) NoteActivity() { s.touchActivity() }

// LastActivity returns the timestamp of the most recently parsed request
// or externally-noted activity.
func (s *Server) LastActivity() time.Time {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.lastActivity
}

// Shutdown stops accepting new connections, waits up to timeout for
// in-flight handlers to drain, then force-closes anything still open, and
// finally removes the socket file.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.closeOne.Do(func() { close(s.closing) })
	if s.listener != nil {
		_ = s.listener.Close()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(timeout):
		s.connsMu.Lock()
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.connsMu.Unlock()
		<-drained
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing socket file: %w", err)
	}
	return nil
}
