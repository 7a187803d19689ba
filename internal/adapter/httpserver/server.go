package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
	"github.com/pscheid92/stockpulse/internal/app"
	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/platform/config"
	"github.com/pscheid92/stockpulse/web"
)

type appService interface {
	Register(ctx context.Context, in app.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateNotifyChat(ctx context.Context, userID uuid.UUID, chatID *int64) error

	ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error)
	CreateCategory(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID int64) error

	ListMaterials(ctx context.Context, userID uuid.UUID, filter domain.MaterialFilter) (*app.MaterialList, error)
	GetMaterial(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error)
	CreateMaterial(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (*domain.Material, error)
	UpdateMaterial(ctx context.Context, userID uuid.UUID, materialID int64, in domain.MaterialInput) (*domain.Material, error)
	DeleteMaterial(ctx context.Context, userID uuid.UUID, materialID int64) error

	LogOperation(ctx context.Context, userID uuid.UUID, materialID int64, in app.OperationInput) (*domain.Material, error)
	MaterialHistory(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, []domain.UsageEntry, error)

	TurnoverReport(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, error)
	ExportTurnoverReport(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, []byte, error)
	Forecast(ctx context.Context, userID uuid.UUID, materialID int64, horizon int) (*domain.Forecast, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	app appService

	templates      templateSet
	sessionStore   *sessions.CookieStore
	healthChecks   []HealthCheck
	metricsHandler http.Handler
	httpMetrics    *metrics.HTTPMetrics
	startTime      time.Time
}

// Options carries the optional ops wiring. A nil MetricsHandler leaves
// /metrics unregistered.
type Options struct {
	HealthChecks   []HealthCheck
	MetricsHandler http.Handler
	HTTPMetrics    *metrics.HTTPMetrics
}

func NewServer(cfg *config.Config, app appService, clock clockwork.Clock, opts Options) (*Server, error) {
	templates, err := parseTemplates(web.TemplateFiles, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		clock:          clock,
		app:            app,
		templates:      templates,
		sessionStore:   setupSessionStore(cfg),
		healthChecks:   opts.HealthChecks,
		metricsHandler: opts.MetricsHandler,
		httpMetrics:    opts.HTTPMetrics,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Session keys
const (
	sessionName      = "stockpulse-session"
	sessionKeyUserID = "user_id"
)

// Echo context keys
const (
	ctxKeyUserID = "userID"
	ctxKeyUser   = "user"
)

// renderTemplate renders a page inside the layout. Every page receives the
// CSRF token and the signed-in user next to its own data.
func (s *Server) renderTemplate(c echo.Context, status int, name string, data map[string]any) error {
	tmpl, ok := s.templates[name]
	if !ok {
		slog.Error("Unknown template", "template", name)
		return c.String(http.StatusInternalServerError, "Failed to render page")
	}

	if data == nil {
		data = map[string]any{}
	}
	data["CSRFToken"] = c.Get("csrf")
	if user, ok := c.Get(ctxKeyUser).(*domain.User); ok {
		data["User"] = user
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "path", c.Request().URL.Path, "template", name, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(status, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func redirect(c echo.Context, url string) error {
	if err := c.Redirect(http.StatusSeeOther, url); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}
