// Package api exposes the clicker economy over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"star-clicker/internal/auth"
	"star-clicker/internal/service"
)

// TokenVerifier resolves a bearer token to a player id.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Verifier        TokenVerifier
	Click           *service.ClickService
	Session         *service.SessionService
	Shop            *service.ShopService
	Referral        *service.ReferralService
	Leaderboard     *service.LeaderboardService
	LiveLeaderboard http.Handler
	Ready           map[string]Pinger
	AllowedOrigins  []string
}

// Handler provides HTTP handlers for the clicker API.
type Handler struct {
	deps *Dependencies
}

// NewHandler creates a new HTTP handler
func NewHandler(deps *Dependencies) *Handler {
	return &Handler{deps: deps}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(corsMiddleware(h.deps.AllowedOrigins))

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.Get("/leaderboard", h.GetLeaderboard)
	if h.deps.LiveLeaderboard != nil {
		r.Handle("/ws/leaderboard", h.deps.LiveLeaderboard)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Post("/click", h.Click)
		r.Post("/session", h.StartSession)
		r.Get("/energy", h.GetEnergy)

		r.Get("/profile", h.GetProfile)
		r.Put("/profile/name", h.RenameProfile)

		r.Get("/shop", h.GetShop)
		r.Post("/shop/{itemID}/purchase", h.Purchase)

		r.Get("/referral", h.GetReferral)
		r.Post("/referral/redeem", h.RedeemReferral)
	})

	return r
}

// authenticate resolves the bearer token and stores the player id.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		playerID, err := h.deps.Verifier.Verify(token)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPlayer(r.Context(), playerID)))
	})
}

// requestLogger logs each request on the global logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		event := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// recoverer turns a handler panic into an opaque 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Recovered from panic in HTTP handler")
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowedOrigin(allowed, r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(allowed []string, origin string) string {
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if origin != "" && a == origin {
			return origin
		}
	}
	return ""
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every dependency.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for name, p := range h.deps.Ready {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	writeSuccess(w, map[string]string{"status": "ready"})
}
