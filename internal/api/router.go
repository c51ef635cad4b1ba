package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gatekeeper/internal/constants"
	"gatekeeper/internal/service"
)

type Options struct {
	Name                string
	Environment         string
	AllowedOrigins      []string
	TrustedProxies      []string
	MaxBodyBytes        int64
	IPRequestsPerMinute int
	Cookies             CookieConfig
}

func (o Options) production() bool {
	return o.Environment == "production"
}

type Deps struct {
	Auth   *service.AuthService
	Admin  *service.AdminService
	Tokens AccessTokenParser
	Audit  AuditRecorder
	Health map[string]HealthCheck
	Logger *slog.Logger
}

type Server struct {
	router *chi.Mux
}

func NewServer(opts Options, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	if opts.IPRequestsPerMinute <= 0 {
		opts.IPRequestsPerMinute = 60
	}

	proxies, err := NewProxyTrust(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	guard := NewGuard(deps.Tokens, deps.Audit, opts.Cookies, logger)
	authHandler := NewAuthHandler(deps.Auth, opts.Cookies, logger)
	userHandler := NewUserHandler(deps.Auth, opts.Cookies, logger)
	adminHandler := NewAdminHandler(deps.Admin, logger)
	serverInfoHandler := NewServerInfoHandler(opts.Name, opts.Environment)
	healthHandler := NewHealthHandler(deps.Health)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(proxies.Middleware)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(opts.AllowedOrigins))
	r.Use(securityHeadersMiddleware(opts.production()))
	r.Use(guard.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, constants.ErrCodeValidation, "Method not allowed", nil)
	})

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(opts.MaxBodyBytes))
		r.Get("/server/info", serverInfoHandler.GetInfo)

		r.Route("/auth", func(r chi.Router) {
			r.Use(ipRateLimit(opts.IPRequestsPerMinute))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
			r.Post("/verify", authHandler.RequestVerification)
			r.Get("/verify/{token}", authHandler.ConfirmVerification)

			r.Get("/me", userHandler.GetMe)
			r.Put("/me", userHandler.UpdateMe)
			r.Patch("/me", userHandler.UpdateMe)
			r.Post("/change-password", userHandler.ChangePassword)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/audit-logs", adminHandler.ListAuditLogs)
			r.Post("/users/{id}/deactivate", adminHandler.DeactivateUser)
			r.Post("/users/{id}/activate", adminHandler.ActivateUser)
		})
	})

	r.Get("/dashboard", dashboardRoot)
	r.Get("/dashboard/*", dashboardPage)

	return &Server{router: r}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowedOrigins = trimOrigins(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !slices.Contains(allowedOrigins, origin) && !isLoopbackOrigin(origin) {
				writeError(w, http.StatusForbidden, constants.ErrCodeForbidden, "Origin not allowed", nil)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; " +
	"font-src 'self'; connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

func securityHeadersMiddleware(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			if production {
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"remote", clientIP(r),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// trimOrigins drops empty entries and trailing slashes from configured
// origins.
func trimOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
