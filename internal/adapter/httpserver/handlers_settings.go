package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/stockpulse/internal/domain"
)

func (s *Server) registerSettingsRoutes(csrfMiddleware echo.MiddlewareFunc) {
	s.echo.GET("/settings", s.handleSettingsPage, s.requireAuth, csrfMiddleware)
	s.echo.POST("/settings", s.handleSettingsSave, s.requireAuth, csrfMiddleware)
}

func (s *Server) handleSettingsPage(c echo.Context) error {
	form := newForm()
	if user, ok := c.Get(ctxKeyUser).(*domain.User); ok && user.NotifyChatID != nil {
		form.Values["notify_chat_id"] = strconv.FormatInt(*user.NotifyChatID, 10)
	}
	return s.renderSettings(c, http.StatusOK, form, false)
}

func (s *Server) handleSettingsSave(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	form := newForm()
	var chatID *int64
	if raw := form.read(c, "notify_chat_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			form.Errors.Add("notify_chat_id", "Enter a whole number.")
			return s.renderSettings(c, http.StatusUnprocessableEntity, form, false)
		}
		chatID = &id
	}

	if err := s.app.UpdateNotifyChat(c.Request().Context(), userID, chatID); err != nil {
		if !form.merge(err) {
			return err
		}
		return s.renderSettings(c, http.StatusUnprocessableEntity, form, false)
	}
	return s.renderSettings(c, http.StatusOK, form, true)
}

func (s *Server) renderSettings(c echo.Context, status int, form *form, saved bool) error {
	return s.renderTemplate(c, status, "settings.html", map[string]any{
		"Form":          form,
		"Saved":         saved,
		"DigestEnabled": s.config.DigestEnabled(),
		"DigestCron":    s.config.DigestCron,
	})
}
