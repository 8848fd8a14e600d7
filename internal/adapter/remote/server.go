// Package remote serves a network control surface: a small REST API for
// player state and a websocket speaking JSON-RPC 2.0 for commands and
// pushed notifications.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/ports"
)

const (
	RequestTimeout = 30 * time.Second
	noteBuffer     = 256
	sessionIDKey   = "id"
)

// Options configures the server.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:7700"
	Addr string

	// AllowedOrigins are browser origins allowed to connect; "*" allows any.
	// Patterns may end in "*".
	AllowedOrigins []string
}

// Server is the network control surface.
type Server struct {
	logger zerolog.Logger
	player ports.PlayerControl
	bus    ports.EventBus
	opts   Options

	router chi.Router
	melody *melody.Melody
	notes  chan Notification

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	sub      domain.SubscriptionID
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates the server and its routes.
func NewServer(logger zerolog.Logger, player ports.PlayerControl, bus ports.EventBus, opts Options) *Server {
	s := &Server{
		logger: logger.With().Str("surface", "remote").Logger(),
		player: player,
		bus:    bus,
		opts:   opts,
		melody: melody.New(),
		notes:  make(chan Notification, noteBuffer),
	}

	s.melody.Upgrader.CheckOrigin = func(r *http.Request) bool {
		return originAllowed(r.Header.Get("Origin"), s.opts.AllowedOrigins)
	}
	s.melody.HandleConnect(s.handleConnect)
	s.melody.HandleDisconnect(func(session *melody.Session) {
		s.logger.Debug().Interface("session", sessionID(session)).Msg("client disconnected")
	})
	s.melody.HandleMessage(s.handleMessage)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept"},
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(RequestTimeout)).Get("/state", s.handleState)
		r.With(middleware.Timeout(RequestTimeout)).Get("/queue", s.handleQueue)
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			if err := s.melody.HandleRequest(w, r); err != nil {
				s.logger.Debug().Err(err).Msg("handling websocket request")
			}
		})
	})
	s.router = r

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start subscribes to player events and begins serving on Options.Addr.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("remote server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.opts.Addr)
	}

	s.stop = make(chan struct{})
	s.sub = s.bus.SubscribeAll(s.enqueue)
	s.wg.Add(2)
	go s.broadcast(s.stop)

	s.listener = ln
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func(srv *http.Server) {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("remote server stopped")
		}
	}(s.srv)

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("remote server started")
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop disconnects clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	if srv == nil {
		s.mu.Unlock()
		return nil
	}
	s.bus.Unsubscribe(s.sub)
	close(s.stop)
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	if err := s.melody.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("closing websocket sessions")
	}
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := newState(s.player)
	if err := render.Render(w, r, &resp); err != nil {
		s.logger.Error().Err(err).Msg("error encoding state response")
	}
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	resp := newQueue(s.player)
	if err := render.Render(w, r, &resp); err != nil {
		s.logger.Error().Err(err).Msg("error encoding queue response")
	}
}

func (s *Server) handleConnect(session *melody.Session) {
	id := uuid.New()
	session.Set(sessionIDKey, id)
	s.logger.Debug().Str("session", id.String()).Str("remote", session.Request.RemoteAddr).Msg("client connected")

	// New clients start from a full picture.
	s.write(session, Notification{JSONRPC: "2.0", Method: MethodState, Params: newState(s.player)})
}

func (s *Server) handleMessage(session *melody.Session, msg []byte) {
	// heartbeat
	if bytes.Equal(msg, []byte("ping")) {
		if err := session.Write([]byte("pong")); err != nil {
			s.logger.Debug().Err(err).Msg("sending pong")
		}
		return
	}

	var req RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		s.write(session, errorResponse(nil, CodeParseError, "invalid json"))
		return
	}
	if !validID(req.ID) {
		s.write(session, errorResponse(nil, CodeInvalidRequest, "id must be a string or number"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.write(session, errorResponse(req.ID, CodeInvalidRequest, "invalid request"))
		return
	}

	result, err := handleRequest(s.player, req)
	if len(req.ID) == 0 {
		// notifications get no reply
		if err != nil {
			s.logger.Debug().Err(err).Str("method", req.Method).Msg("notification rejected")
		}
		return
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("method", req.Method).Msg("request rejected")
		s.write(session, errorResponse(req.ID, errorCode(err), err.Error()))
		return
	}
	s.write(session, ResponseObject{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// enqueue runs on the publishing goroutine and never blocks it.
func (s *Server) enqueue(e domain.Event) {
	n, ok := notification(e)
	if !ok {
		return
	}
	select {
	case s.notes <- n:
	default:
		s.logger.Warn().Str("method", n.Method).Msg("notification buffer full, dropping")
	}
}

func (s *Server) broadcast(stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case n := <-s.notes:
			data, err := json.Marshal(n)
			if err != nil {
				s.logger.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.melody.Broadcast(data); err != nil && !errors.Is(err, melody.ErrClosed) {
				s.logger.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

func (s *Server) write(session *melody.Session, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshalling response")
		return
	}
	if err := session.Write(data); err != nil {
		s.logger.Debug().Err(err).Msg("sending response")
	}
}

// validID accepts absent, null, string and number ids.
func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return true
	}
	switch c := id[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		return true
	}
	return string(id) == "null"
}

func errorResponse(id json.RawMessage, code int, message string) ResponseObject {
	return ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: message},
	}
}

func sessionID(session *melody.Session) any {
	id, _ := session.Get(sessionIDKey)
	return id
}

// originAllowed reports whether a websocket origin may connect. Requests
// without an Origin header do not come from a browser and are allowed.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" || slices.Contains(allowed, "*") {
		return true
	}
	for _, pattern := range allowed {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
			continue
		}
		if strings.EqualFold(origin, pattern) {
			return true
		}
	}
	return false
}
