package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"kidsmoney/internal/auth"
	"kidsmoney/internal/config"
	"kidsmoney/internal/game"
	"kidsmoney/internal/model"
)

const (
	maxBodyBytes = 64 * 1024
	limiterIdle  = 10 * time.Minute
)

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	auth *auth.Resolver
	game *game.Service
	mux  *chi.Mux

	actionSchema *jsonschema.Schema
	upgrader     websocket.Upgrader

	limMu     sync.Mutex
	limiters  map[string]*userLimiter
	lastSweep time.Time
}

func New(cfg config.APIConfig, logger *slog.Logger, resolver *auth.Resolver, gameSvc *game.Service) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileActionSchema()
	if err != nil {
		return nil, fmt.Errorf("compile action schema: %w", err)
	}
	s := &Server{
		cfg:          cfg,
		log:          logger,
		auth:         resolver,
		game:         gameSvc,
		mux:          chi.NewRouter(),
		actionSchema: schema,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		limiters: map[string]*userLimiter{},
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		// The stream is long-lived and must not inherit the request timeout.
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/state", s.handleState)
			r.Get("/stocks", s.handleStocksList)
			r.Get("/stocks/{id}", s.handleStockDetail)
			r.Get("/forbidden-market", s.handleForbiddenMarket)
			r.Get("/leaderboard", s.handleLeaderboard)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit)
				r.Post("/signup", s.handleSignup)
				r.Post("/actions", s.handleAction)
				r.Post("/stocks/{id}/buy", s.handleTrade(true))
				r.Post("/stocks/{id}/sell", s.handleTrade(false))
				r.Post("/lands/{id}/buy", s.handleBuyLand)
				r.Post("/loans/take", s.handleLoan(true))
				r.Post("/loans/repay", s.handleLoan(false))
				r.Post("/admin/grant", s.handleAdminGrant)
				r.Post("/admin/settings", s.handleAdminSettings)
			})
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Resolve(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.FromContext(r.Context())
		if !s.limiter(id.UserID, time.Now()).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiter(userID string, now time.Time) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	if now.Sub(s.lastSweep) >= limiterIdle {
		for id, l := range s.limiters {
			if now.Sub(l.seen) >= limiterIdle {
				delete(s.limiters, id)
			}
		}
		s.lastSweep = now
	}
	l, ok := s.limiters[userID]
	if !ok {
		l = &userLimiter{lim: rate.NewLimiter(rate.Limit(s.cfg.RateLimit.PerSecond), s.cfg.RateLimit.Burst)}
		s.limiters[userID] = l
	}
	l.seen = now
	return l.lim
}

func identityFrom(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInsufficientFunds),
		errors.Is(err, model.ErrInsufficientHold):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request, fallback string) string {
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		return key
	}
	return strings.TrimSpace(fallback)
}
