package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/stockpulse/internal/app"
	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/platform/config"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
	"github.com/pscheid92/stockpulse/web"
)

// --- Mock implementations ---

type mockAppService struct {
	registerFn         func(ctx context.Context, in app.RegisterInput) (*domain.User, error)
	authenticateFn     func(ctx context.Context, username, password string) (*domain.User, error)
	getUserByIDFn      func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	updateNotifyChatFn func(ctx context.Context, userID uuid.UUID, chatID *int64) error

	listCategoriesFn func(ctx context.Context, userID uuid.UUID) ([]domain.Category, error)
	createCategoryFn func(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error)
	deleteCategoryFn func(ctx context.Context, userID uuid.UUID, categoryID int64) error

	listMaterialsFn  func(ctx context.Context, userID uuid.UUID, filter domain.MaterialFilter) (*app.MaterialList, error)
	getMaterialFn    func(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error)
	createMaterialFn func(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (*domain.Material, error)
	updateMaterialFn func(ctx context.Context, userID uuid.UUID, materialID int64, in domain.MaterialInput) (*domain.Material, error)
	deleteMaterialFn func(ctx context.Context, userID uuid.UUID, materialID int64) error

	logOperationFn    func(ctx context.Context, userID uuid.UUID, materialID int64, in app.OperationInput) (*domain.Material, error)
	materialHistoryFn func(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, []domain.UsageEntry, error)

	turnoverReportFn func(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, error)
	exportReportFn   func(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, []byte, error)
	forecastFn       func(ctx context.Context, userID uuid.UUID, materialID int64, horizon int) (*domain.Forecast, error)
}

var errNotImplemented = errors.New("not implemented")

func (m *mockAppService) Register(ctx context.Context, in app.RegisterInput) (*domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, password)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, userID)
	}
	return nil, apperrors.NotFoundError("user not found")
}

func (m *mockAppService) UpdateNotifyChat(ctx context.Context, userID uuid.UUID, chatID *int64) error {
	if m.updateNotifyChatFn != nil {
		return m.updateNotifyChatFn(ctx, userID, chatID)
	}
	return nil
}

func (m *mockAppService) ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAppService) CreateCategory(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ctx, userID, name)
	}
	return &domain.Category{ID: 1, UserID: userID, Name: name}, nil
}

func (m *mockAppService) DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID int64) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(ctx, userID, categoryID)
	}
	return nil
}

func (m *mockAppService) ListMaterials(ctx context.Context, userID uuid.UUID, filter domain.MaterialFilter) (*app.MaterialList, error) {
	if m.listMaterialsFn != nil {
		return m.listMaterialsFn(ctx, userID, filter)
	}
	return &app.MaterialList{Filter: filter}, nil
}

func (m *mockAppService) GetMaterial(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error) {
	if m.getMaterialFn != nil {
		return m.getMaterialFn(ctx, userID, materialID)
	}
	return nil, apperrors.NotFoundError("material not found")
}

func (m *mockAppService) CreateMaterial(ctx context.Context, userID uuid.UUID, in domain.MaterialInput) (*domain.Material, error) {
	if m.createMaterialFn != nil {
		return m.createMaterialFn(ctx, userID, in)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) UpdateMaterial(ctx context.Context, userID uuid.UUID, materialID int64, in domain.MaterialInput) (*domain.Material, error) {
	if m.updateMaterialFn != nil {
		return m.updateMaterialFn(ctx, userID, materialID, in)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) DeleteMaterial(ctx context.Context, userID uuid.UUID, materialID int64) error {
	if m.deleteMaterialFn != nil {
		return m.deleteMaterialFn(ctx, userID, materialID)
	}
	return nil
}

func (m *mockAppService) LogOperation(ctx context.Context, userID uuid.UUID, materialID int64, in app.OperationInput) (*domain.Material, error) {
	if m.logOperationFn != nil {
		return m.logOperationFn(ctx, userID, materialID, in)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) MaterialHistory(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, []domain.UsageEntry, error) {
	if m.materialHistoryFn != nil {
		return m.materialHistoryFn(ctx, userID, materialID)
	}
	return nil, nil, apperrors.NotFoundError("material not found")
}

func (m *mockAppService) TurnoverReport(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, error) {
	if m.turnoverReportFn != nil {
		return m.turnoverReportFn(ctx, userID, days)
	}
	return &domain.TurnoverReport{Days: days}, nil
}

func (m *mockAppService) ExportTurnoverReport(ctx context.Context, userID uuid.UUID, days int) (*domain.TurnoverReport, []byte, error) {
	if m.exportReportFn != nil {
		return m.exportReportFn(ctx, userID, days)
	}
	return nil, nil, errNotImplemented
}

func (m *mockAppService) Forecast(ctx context.Context, userID uuid.UUID, materialID int64, horizon int) (*domain.Forecast, error) {
	if m.forecastFn != nil {
		return m.forecastFn(ctx, userID, materialID, horizon)
	}
	return nil, apperrors.NotFoundError("material not found")
}

// --- Test helpers ---

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

const testCSRFToken = "test-csrf-token"

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testNow)
	templates, err := parseTemplates(web.TemplateFiles, clock)
	require.NoError(t, err)

	cfg := &config.Config{
		AppEnv:             "test",
		SessionSecret:      "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:      time.Hour,
		AuthRateLimitRPS:   100,
		AuthRateLimitBurst: 100,
		DigestCron:         "0 8 * * *",
	}

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:   "/",
		MaxAge: 3600,
	}

	srv := &Server{
		echo:         echo.New(),
		config:       cfg,
		clock:        clock,
		app:          app,
		templates:    templates,
		sessionStore: store,
		startTime:    time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	// Register routes so endpoints are available for testing
	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withConfig(fn func(*config.Config)) func(*Server) {
	return func(s *Server) {
		fn(s.config)
	}
}

// signedInApp returns a service mock that resolves userID to a user.
func signedInApp(userID uuid.UUID) *mockAppService {
	return &mockAppService{
		getUserByIDFn: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
			if id != userID {
				return nil, apperrors.NotFoundError("user not found")
			}
			return &domain.User{ID: userID, Username: "alice"}, nil
		},
	}
}

func sessionCookies(t *testing.T, srv *Server, userID uuid.UUID) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := srv.sessionStore.Get(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyUserID] = userID.String()
	require.NoError(t, session.Save(req, rec))
	return rec.Result().Cookies()
}

func serve(srv *Server, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, srv *Server, target string, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return serve(srv, req, sessionCookies(t, srv, userID))
}

// postForm submits values with a matching CSRF cookie and form token.
func postForm(t *testing.T, srv *Server, target string, values url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if values == nil {
		values = url.Values{}
	}
	values.Set(csrfTokenCookieName, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: csrfTokenCookieName, Value: testCSRFToken})
	return serve(srv, req, cookies)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
