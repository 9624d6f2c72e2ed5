// Package server exposes bots over HTTP: one reverse websocket endpoint per
// bot plus a health check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/ws"
)

const shutdownTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	// Gateways are not browsers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Endpoint binds a bot to the access token its gateway must present.
type Endpoint struct {
	Bot   *bot.Bot
	Token string
}

const HealthPath = "/health"

type Server struct {
	hub       *ws.Hub
	endpoints []Endpoint
	mux       *http.ServeMux
	log       *slog.Logger

	// base outlives every connection; sessions run under it so their
	// conversations survive a gateway reconnect.
	base context.Context
}

// ValidEndpoint reports whether path can serve as a bot endpoint. Endpoints
// match exactly, so "/" does not swallow other paths.
func ValidEndpoint(path string) error {
	switch {
	case !strings.HasPrefix(path, "/"):
		return fmt.Errorf("endpoint %q must start with /", path)
	case strings.ContainsAny(path, "{} \t?#"):
		return fmt.Errorf("endpoint %q contains characters not allowed in a path", path)
	case path == HealthPath:
		return fmt.Errorf("endpoint %s is reserved", HealthPath)
	}
	return nil
}

func endpointPattern(path string) string {
	if strings.HasSuffix(path, "/") {
		return path + "{$}"
	}
	return path
}

func New(endpoints ...Endpoint) (*Server, error) {
	s := &Server{
		hub:       ws.NewHub(),
		endpoints: endpoints,
		mux:       http.NewServeMux(),
		log:       slog.With("component", "server"),
		base:      context.Background(),
	}

	s.mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	seen := make(map[string]string)
	for _, ep := range endpoints {
		path := ep.Bot.Endpoint()
		if err := ValidEndpoint(path); err != nil {
			return nil, fmt.Errorf("bot %s: %w", ep.Bot.Name(), err)
		}
		if other, ok := seen[path]; ok {
			return nil, fmt.Errorf("endpoint %s used by bots %s and %s", path, other, ep.Bot.Name())
		}
		seen[path] = ep.Bot.Name()
		s.mux.Handle(endpointPattern(path), s.gatewayHandler(ep))
	}
	return s, nil
}

func (s *Server) Hub() *ws.Hub { return s.hub }

// Run listens on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	s.base = ctx
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.log.Info("botgate listening", "addr", ln.Addr().String(), "bots", len(s.endpoints))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) gatewayHandler(ep Endpoint) http.HandlerFunc {
	b := ep.Bot
	return func(w http.ResponseWriter, r *http.Request) {
		hs, err := ws.Authenticate(r, ep.Token)
		if err != nil {
			s.log.Warn("gateway rejected", "bot", b.Name(), "remote", r.RemoteAddr, "err", err)
			status := http.StatusBadRequest
			if errors.Is(err, ws.ErrUnauthorized) {
				status = http.StatusUnauthorized
			}
			http.Error(w, err.Error(), status)
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("upgrade failed", "bot", b.Name(), "err", err)
			return
		}

		conn := ws.NewConn(s.hub, wsConn, b.Name(), hs.SelfID)
		if !s.hub.Register(conn) {
			wsConn.Close()
			return
		}

		sess := b.Attach(s.base, conn.ID, hs.SelfID, conn)
		go conn.WritePump()
		conn.ReadPump(func(frame []byte) {
			res := sess.HandleFrame(frame)
			sess.Logger().Debug("frame handled", "result", res.String())
		})
		sess.Close()
	}
}

type health struct {
	Status      string         `json:"status"`
	Connections map[string]int `json:"connections"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok", Connections: s.hub.Counts()}
	for _, ep := range s.endpoints {
		if _, ok := h.Connections[ep.Bot.Name()]; !ok {
			h.Connections[ep.Bot.Name()] = 0
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}
