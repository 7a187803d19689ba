package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerCategoryRoutes(csrfMiddleware echo.MiddlewareFunc) {
	s.echo.GET("/categories/", s.handleCategoryList, s.requireAuth, csrfMiddleware)
	s.echo.POST("/categories/", s.handleCategoryCreate, s.requireAuth, csrfMiddleware)
	s.echo.POST("/categories/:id/delete", s.handleCategoryDelete, s.requireAuth, csrfMiddleware)
}

func (s *Server) handleCategoryList(c echo.Context) error {
	return s.renderCategories(c, http.StatusOK, newForm())
}

func (s *Server) handleCategoryCreate(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	form := newForm()
	name := form.read(c, "name")
	if _, err := s.app.CreateCategory(c.Request().Context(), userID, name); err != nil {
		if !form.merge(err) {
			return err
		}
		return s.renderCategories(c, http.StatusUnprocessableEntity, form)
	}
	return redirect(c, "/categories/")
}

func (s *Server) handleCategoryDelete(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.DeleteCategory(c.Request().Context(), userID, id); err != nil {
		return err
	}
	return redirect(c, "/categories/")
}

func (s *Server) renderCategories(c echo.Context, status int, form *form) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	categories, err := s.app.ListCategories(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return s.renderTemplate(c, status, "categories.html", map[string]any{
		"Categories": categories,
		"Form":       form,
	})
}
