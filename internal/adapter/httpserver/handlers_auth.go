package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/stockpulse/internal/app"
	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

const homePath = "/materials/"

func (s *Server) registerAuthRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/auth/login", s.handleLoginPage, csrfMiddleware)
	s.echo.POST("/auth/login", s.handleLogin, rateLimiter, csrfMiddleware)
	s.echo.GET("/auth/signup", s.handleSignupPage, csrfMiddleware)
	s.echo.POST("/auth/signup", s.handleSignup, rateLimiter, csrfMiddleware)
	s.echo.POST("/auth/logout", s.handleLogout, s.requireAuth, csrfMiddleware)
}

func (s *Server) handleLanding(c echo.Context) error {
	if _, ok := s.sessionUser(c); ok {
		return redirect(c, homePath)
	}
	return redirect(c, "/auth/login")
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := s.sessionUser(c)
		if !ok {
			if wantsJSON(c) {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return redirect(c, "/auth/login")
		}

		c.Set(ctxKeyUserID, user.ID)
		c.Set(ctxKeyUser, user)
		ctx := correlation.WithTenant(c.Request().Context(), user.ID.String())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// sessionUser resolves the session cookie to an existing user. Sessions that
// reference a deleted user are cleared.
func (s *Server) sessionUser(c echo.Context) (*domain.User, bool) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return nil, false
	}

	userIDStr, ok := session.Values[sessionKeyUserID].(string)
	if !ok {
		return nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, false
	}

	user, err := s.app.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		if apperrors.IsType(err, apperrors.TypeNotFound) {
			slog.WarnContext(c.Request().Context(), "Session references unknown user, invalidating", "user_id", userID)
			session.Options.MaxAge = -1
			_ = session.Save(c.Request(), c.Response().Writer)
		}
		return nil, false
	}
	return user, true
}

func (s *Server) handleLoginPage(c echo.Context) error {
	if _, ok := s.sessionUser(c); ok {
		return redirect(c, homePath)
	}
	return s.renderTemplate(c, http.StatusOK, "login.html", map[string]any{"Form": newForm()})
}

func (s *Server) handleLogin(c echo.Context) error {
	form := newForm()
	username := form.read(c, "username")
	password := c.FormValue("password")

	user, err := s.app.Authenticate(c.Request().Context(), username, password)
	if err != nil {
		if fields, ok := formErrors(err); ok {
			form.Errors = fields
			return s.renderTemplate(c, http.StatusUnprocessableEntity, "login.html", map[string]any{"Form": form})
		}
		return err
	}

	if err := s.startSession(c, user); err != nil {
		return err
	}
	slog.InfoContext(c.Request().Context(), "User logged in", "user_id", user.ID)
	return redirect(c, homePath)
}

func (s *Server) handleSignupPage(c echo.Context) error {
	if _, ok := s.sessionUser(c); ok {
		return redirect(c, homePath)
	}
	return s.renderTemplate(c, http.StatusOK, "signup.html", map[string]any{"Form": newForm()})
}

func (s *Server) handleSignup(c echo.Context) error {
	form := newForm()
	in := app.RegisterInput{
		Username:        form.read(c, "username"),
		Password:        c.FormValue("password"),
		PasswordConfirm: c.FormValue("password_confirm"),
	}

	user, err := s.app.Register(c.Request().Context(), in)
	if err != nil {
		if fields, ok := formErrors(err); ok {
			form.Errors = fields
			return s.renderTemplate(c, http.StatusUnprocessableEntity, "signup.html", map[string]any{"Form": form})
		}
		return err
	}

	if err := s.startSession(c, user); err != nil {
		return err
	}
	slog.InfoContext(c.Request().Context(), "User signed up", "user_id", user.ID)
	return redirect(c, homePath)
}

// startSession expires the pre-login session and issues a fresh one carrying
// only the user ID.
func (s *Server) startSession(c echo.Context, user *domain.User) error {
	if old, err := s.sessionStore.Get(c.Request(), sessionName); err == nil && !old.IsNew {
		old.Options.MaxAge = -1
		if err := old.Save(c.Request(), c.Response().Writer); err != nil {
			return apperrors.InternalError("failed to invalidate old session", err)
		}
	}

	session, err := s.sessionStore.New(c.Request(), sessionName)
	if err != nil && session == nil {
		return apperrors.InternalError("failed to create new session", err)
	}
	clear(session.Values)
	session.Values[sessionKeyUserID] = user.ID.String()
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	userID, _ := c.Get(ctxKeyUserID).(uuid.UUID)

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to get session during logout", "error", err)
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return apperrors.InternalError("failed to create new session during logout", err)
		}
	}
	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save logout session", err)
	}

	slog.InfoContext(ctx, "User logged out", "user_id", userID)
	return redirect(c, "/auth/login")
}

// currentUserID returns the ID requireAuth stored on the context.
func currentUserID(c echo.Context) (uuid.UUID, error) {
	userID, ok := c.Get(ctxKeyUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.InternalError("missing user ID in context", errors.New("requireAuth not applied"))
	}
	return userID, nil
}
