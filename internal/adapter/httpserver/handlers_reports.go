package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/stockpulse/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) registerReportRoutes(csrfMiddleware echo.MiddlewareFunc) {
	s.echo.GET("/materials/reports/analytics/", s.handleAnalyticsReport, s.requireAuth, csrfMiddleware)
	s.echo.GET("/materials/reports/analytics/export", s.handleAnalyticsExport, s.requireAuth)
	s.echo.GET("/forecast/:id/", s.handleForecastPage, s.requireAuth, csrfMiddleware)
}

func (s *Server) handleAnalyticsReport(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	days, err := queryInt(c, "days", domain.DefaultReportDays)
	if err != nil {
		return err
	}

	report, err := s.app.TurnoverReport(c.Request().Context(), userID, days)
	if err != nil {
		return err
	}
	return s.renderTemplate(c, http.StatusOK, "analytics_report.html", map[string]any{
		"Report": report,
	})
}

func (s *Server) handleAnalyticsExport(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	days, err := queryInt(c, "days", domain.DefaultReportDays)
	if err != nil {
		return err
	}

	report, data, err := s.app.ExportTurnoverReport(c.Request().Context(), userID, days)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("turnover_%s_%s.xlsx", report.From.Format(dateLayout), report.To.Format(dateLayout))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	if err := c.Blob(http.StatusOK, xlsxContentType, data); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	return nil
}

func (s *Server) handleForecastPage(c echo.Context) error {
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
	material, err := s.app.GetMaterial(c.Request().Context(), userID, id)
	if err != nil {
		return err
	}

	return s.renderTemplate(c, http.StatusOK, "forecast.html", map[string]any{
		"Material": material,
		"Forecast": forecast,
		"Horizons": []int{7, 14, 30, 60, 90},
	})
}
