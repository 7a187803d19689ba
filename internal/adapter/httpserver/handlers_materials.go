package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/stockpulse/internal/app"
	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/inventory"
)

func (s *Server) registerMaterialRoutes(csrfMiddleware echo.MiddlewareFunc) {
	g := s.echo.Group("/materials", s.requireAuth, csrfMiddleware)
	g.GET("/", s.handleMaterialList)
	g.GET("/create/", s.handleMaterialCreatePage)
	g.POST("/create/", s.handleMaterialCreate)
	g.GET("/:id/update/", s.handleMaterialUpdatePage)
	g.POST("/:id/update/", s.handleMaterialUpdate)
	g.GET("/:id/delete/", s.handleMaterialDeletePage)
	g.POST("/:id/delete/", s.handleMaterialDelete)
	g.GET("/:id/log/", s.handleLogOperationPage)
	g.POST("/:id/log/", s.handleLogOperation)
	g.GET("/:id/history/", s.handleMaterialHistory)
}

var expiryFilters = []struct {
	Value domain.ExpiryFilter
	Label string
}{
	{domain.ExpiryAny, "All"},
	{domain.ExpiryExpired, "Expired"},
	{domain.ExpiryExpiresSoon, "Expires within 30 days"},
	{domain.ExpiryNone, "No expiration date"},
}

func (s *Server) handleMaterialList(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	filter := domain.MaterialFilter{
		Search: c.QueryParam("search"),
		Expiry: domain.ParseExpiryFilter(c.QueryParam("expiry")),
	}
	// an unparsable category shows everything rather than failing
	if id, err := strconv.ParseInt(c.QueryParam("category"), 10, 64); err == nil {
		filter.CategoryID = &id
	}

	list, err := s.app.ListMaterials(c.Request().Context(), userID, filter)
	if err != nil {
		return err
	}

	return s.renderTemplate(c, http.StatusOK, "material_list.html", map[string]any{
		"List":             list,
		"ExpiryFilters":    expiryFilters,
		"SoonDays":         inventory.SoonDays,
		"SelectedCategory": c.QueryParam("category"),
	})
}

func (s *Server) handleMaterialCreatePage(c echo.Context) error {
	form := newForm()
	form.Values["unit"] = string(domain.DefaultUnit)
	form.Values["current_quantity"] = "0"
	form.Values["min_threshold"] = inventory.FormatQuantity(domain.DefaultMinThreshold)
	return s.renderMaterialForm(c, http.StatusOK, form, nil)
}

func (s *Server) handleMaterialCreate(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	form, in := readMaterialForm(c)
	if !form.Errors.Any() {
		_, err := s.app.CreateMaterial(c.Request().Context(), userID, in)
		if err == nil {
			return redirect(c, homePath)
		}
		if !form.merge(err) {
			return err
		}
	}
	return s.renderMaterialForm(c, http.StatusUnprocessableEntity, form, nil)
}

func (s *Server) handleMaterialUpdatePage(c echo.Context) error {
	material, err := s.loadMaterial(c)
	if err != nil {
		return err
	}
	return s.renderMaterialForm(c, http.StatusOK, materialToForm(material), material)
}

func (s *Server) handleMaterialUpdate(c echo.Context) error {
	material, err := s.loadMaterial(c)
	if err != nil {
		return err
	}

	form, in := readMaterialForm(c)
	if !form.Errors.Any() {
		_, err := s.app.UpdateMaterial(c.Request().Context(), material.UserID, material.ID, in)
		if err == nil {
			return redirect(c, homePath)
		}
		if !form.merge(err) {
			return err
		}
	}
	return s.renderMaterialForm(c, http.StatusUnprocessableEntity, form, material)
}

func (s *Server) renderMaterialForm(c echo.Context, status int, form *form, material *domain.Material) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	categories, err := s.app.ListCategories(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	title, action := "Add material", "/materials/create/"
	if material != nil {
		title = "Edit " + material.Name
		action = fmt.Sprintf("/materials/%d/update/", material.ID)
	}

	return s.renderTemplate(c, status, "material_form.html", map[string]any{
		"Title":      title,
		"Action":     action,
		"Form":       form,
		"Categories": categories,
		"Units":      domain.Units,
	})
}

func readMaterialForm(c echo.Context) (*form, domain.MaterialInput) {
	form := newForm()
	in := domain.MaterialInput{
		Name:            form.read(c, "name"),
		ArticleNumber:   form.read(c, "article_number"),
		CategoryID:      form.optionalInt64(c, "category"),
		Unit:            domain.Unit(form.read(c, "unit")),
		CurrentQuantity: form.float(c, "current_quantity", 0),
		MinThreshold:    form.float(c, "min_threshold", domain.DefaultMinThreshold),
		ExpirationDate:  form.optionalDate(c, "expiration_date"),
	}
	return form, in
}

func materialToForm(m *domain.Material) *form {
	form := newForm()
	form.Values["name"] = m.Name
	form.Values["article_number"] = m.ArticleNumber
	form.Values["unit"] = string(m.Unit)
	form.Values["current_quantity"] = inventory.FormatQuantity(m.CurrentQuantity)
	form.Values["min_threshold"] = inventory.FormatQuantity(m.MinThreshold)
	if m.CategoryID != nil {
		form.Values["category"] = strconv.FormatInt(*m.CategoryID, 10)
	}
	if m.ExpirationDate != nil {
		form.Values["expiration_date"] = m.ExpirationDate.Format(dateLayout)
	}
	return form
}

func (s *Server) handleMaterialDeletePage(c echo.Context) error {
	material, err := s.loadMaterial(c)
	if err != nil {
		return err
	}
	return s.renderTemplate(c, http.StatusOK, "material_confirm_delete.html", map[string]any{"Material": material})
}

func (s *Server) handleMaterialDelete(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.DeleteMaterial(c.Request().Context(), userID, id); err != nil {
		return err
	}
	return redirect(c, homePath)
}

func (s *Server) handleLogOperationPage(c echo.Context) error {
	material, err := s.loadMaterial(c)
	if err != nil {
		return err
	}
	form := newForm()
	form.Values["operation_type"] = string(domain.OperationOut)
	form.Values["operation_date"] = inventory.Today(s.clock).Format(dateLayout)
	return s.renderLogForm(c, http.StatusOK, form, material)
}

func (s *Server) handleLogOperation(c echo.Context) error {
	material, err := s.loadMaterial(c)
	if err != nil {
		return err
	}

	form := newForm()
	in := app.OperationInput{
		Type:     domain.OperationType(form.read(c, "operation_type")),
		Quantity: form.float(c, "quantity", 0),
		Date:     form.optionalDate(c, "operation_date"),
		Comment:  form.read(c, "comment"),
	}
	if form.Values["quantity"] == "" {
		form.Errors.Add("quantity", "This field is required.")
	}

	if !form.Errors.Any() {
		_, err := s.app.LogOperation(c.Request().Context(), material.UserID, material.ID, in)
		if err == nil {
			return redirect(c, homePath)
		}
		if !form.merge(err) {
			return err
		}
	}
	return s.renderLogForm(c, http.StatusUnprocessableEntity, form, material)
}

func (s *Server) renderLogForm(c echo.Context, status int, form *form, material *domain.Material) error {
	return s.renderTemplate(c, status, "log_operation_form.html", map[string]any{
		"Material":       material,
		"Form":           form,
		"OperationTypes": domain.OperationTypes,
	})
}

func (s *Server) handleMaterialHistory(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	material, entries, err := s.app.MaterialHistory(c.Request().Context(), userID, id)
	if err != nil {
		return err
	}
	return s.renderTemplate(c, http.StatusOK, "material_history.html", map[string]any{
		"Material": material,
		"History":  entries,
	})
}

// loadMaterial fetches the :id material for the signed-in user.
func (s *Server) loadMaterial(c echo.Context) (*domain.Material, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return s.app.GetMaterial(c.Request().Context(), userID, id)
}
