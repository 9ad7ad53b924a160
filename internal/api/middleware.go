package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MarcineQ18/apilo-notifier1/internal/metrics"
)

// BasicAuthMiddleware enforces HTTP basic auth on the admin routes.
// Credential comparison runs on digests so the check is constant time
// regardless of input length.
func BasicAuthMiddleware(user, pass string, logger *zap.Logger) func(http.Handler) http.Handler {
	wantUser := sha256.Sum256([]byte(user))
	wantPass := sha256.Sum256([]byte(pass))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser, gotPass, ok := r.BasicAuth()
			if ok {
				userHash := sha256.Sum256([]byte(gotUser))
				passHash := sha256.Sum256([]byte(gotPass))
				userMatch := subtle.ConstantTimeCompare(wantUser[:], userHash[:]) == 1
				passMatch := subtle.ConstantTimeCompare(wantPass[:], passHash[:]) == 1
				if userMatch && passMatch {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("unauthorized admin request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("WWW-Authenticate", `Basic realm="restricted"`)
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(ErrorResponse{
				Type:   "unauthorized",
				Title:  "Unauthorized",
				Status: http.StatusUnauthorized,
			})
		})
	}
}

// AuthConfig carries the admin credentials. Empty user disables auth, which
// is only sensible for local development.
type AuthConfig struct {
	User string
	Pass string
}

// NewRouter assembles the admin HTTP surface: template and settings CRUD
// behind basic auth, plus open health and metrics endpoints.
func NewRouter(h *Handler, auth AuthConfig, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if auth.User != "" {
			r.Use(BasicAuthMiddleware(auth.User, auth.Pass, logger))
		}

		r.Route("/templates/email", func(r chi.Router) {
			r.Get("/", h.ListEmailTemplates)
			r.Post("/", h.UpsertEmailTemplate)
			r.Get("/{id}", h.GetEmailTemplate)
			r.Delete("/{id}", h.DeleteEmailTemplate)
			r.Put("/{id}/skus", h.SetEmailTemplateSKUs)
		})

		r.Route("/templates/sms", func(r chi.Router) {
			r.Get("/", h.ListSMSTemplates)
			r.Post("/", h.UpsertSMSTemplate)
			r.Get("/{id}", h.GetSMSTemplate)
			r.Delete("/{id}", h.DeleteSMSTemplate)
			r.Put("/{id}/skus", h.SetSMSTemplateSKUs)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/statuses", h.GetStatusSettings)
			r.Put("/statuses", h.UpdateStatusSettings)
		})

		r.Get("/status-map", h.GetStatusMap)

		r.Get("/breakers", h.ListBreakers)
		r.Post("/breakers/{name}/reset", h.ResetBreaker)
	})

	return r
}
