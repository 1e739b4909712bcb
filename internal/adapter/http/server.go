package adapthttp

import (
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"stepcounter/internal/app"
	"stepcounter/internal/domain"
)

// OIDCConfig holds the SSO provider settings. A zero value disables SSO.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// localUser is the identity of every request when authentication is disabled.
var localUser = &domain.User{ID: 1, Username: "local"}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	steps   *app.StepService
	charts  *app.ChartsService
	authSvc *app.AuthService

	webDir         string
	oidcConfig     OIDCConfig
	disableAuth    bool
	forwardAuth    bool
	logger         *slog.Logger
	metricsHandler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithWebDir serves the single page app from dir.
func WithWebDir(dir string) Option {
	return func(s *Server) { s.webDir = dir }
}

// WithOIDC enables SSO login.
func WithOIDC(cfg OIDCConfig) Option {
	return func(s *Server) { s.oidcConfig = cfg }
}

// WithForwardAuth trusts the Remote-User header set by an authenticating
// reverse proxy. Only use it when clients cannot reach the server directly.
func WithForwardAuth() Option {
	return func(s *Server) { s.forwardAuth = true }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetricsHandler exposes h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// New creates a Server wired to the given application services.
func New(steps *app.StepService, charts *app.ChartsService, authSvc *app.AuthService, opts ...Option) *Server {
	s := &Server{steps: steps, charts: charts, authSvc: authSvc, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithoutAuth disables authentication; every request acts as the local user.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	api.HandleFunc("/config", s.handleConfig)
	api.HandleFunc("/auth/login", s.handleLogin)
	api.HandleFunc("/auth/logout", s.handleLogout)
	api.HandleFunc("/auth/setup", s.handleSetupUser)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback)

	protected := http.NewServeMux()
	protected.HandleFunc("/steps/reading", s.handleStepsReading)
	protected.HandleFunc("/steps/today", s.handleStepsToday)
	protected.HandleFunc("/steps/stream", s.handleStepsStream)
	protected.HandleFunc("/widget", s.handleWidget)
	protected.HandleFunc("/charts/daily", s.handleChartsDaily)

	authed := s.authMiddleware(protected)
	for _, p := range []string{"/steps/", "/widget", "/charts/"} {
		api.Handle(p, authed)
	}

	root := http.NewServeMux()
	root.Handle("/api/", withNoCache(http.StripPrefix("/api", api)))
	if s.metricsHandler != nil {
		root.Handle("/metrics", s.metricsHandler)
	}
	if s.webDir != "" {
		root.Handle("/", withNoCache(spaFromDisk(s.webDir)))
	}

	return s.loggingMiddleware(root)
}
