package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/stockpulse/internal/domain"
)

func (s *Server) registerAPIRoutes() {
	s.echo.GET("/api/forecast/:id", s.handleForecastAPI, s.requireAuth)
}

func (s *Server) handleForecastAPI(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	horizon, err := queryInt(c, "days", domain.DefaultForecastHorizon)
	if err != nil {
		return err
	}

	forecast, err := s.app.Forecast(c.Request().Context(), userID, id, horizon)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, forecast); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
