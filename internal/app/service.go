package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/inventory"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

// Repositories groups the persistence ports the service depends on.
type Repositories struct {
	Users      domain.UserRepository
	Categories domain.CategoryRepository
	Materials  domain.MaterialRepository
	Usage      domain.UsageRepository
}

// Options holds the optional collaborators. Nil narrator or notifier disables
// narration or digests; nil metrics disables instrumentation.
type Options struct {
	Cache    domain.ForecastCache
	Narrator domain.Narrator
	Notifier domain.Notifier
	Exporter domain.ReportExporter
	Metrics  *metrics.InventoryMetrics
}

// Service is the application layer. It is the only component that references
// multiple domain components.
type Service struct {
	users      domain.UserRepository
	categories domain.CategoryRepository
	materials  domain.MaterialRepository
	usage      domain.UsageRepository

	cache    domain.ForecastCache
	narrator domain.Narrator
	notifier domain.Notifier
	exporter domain.ReportExporter
	metrics  *metrics.InventoryMetrics

	clock         clockwork.Clock
	forecastGroup singleflight.Group
	passwordCost  int
}

func NewService(repos Repositories, opts Options, clock clockwork.Clock) *Service {
	cache := opts.Cache
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		users:        repos.Users,
		categories:   repos.Categories,
		materials:    repos.Materials,
		usage:        repos.Usage,
		cache:        cache,
		narrator:     opts.Narrator,
		notifier:     opts.Notifier,
		exporter:     opts.Exporter,
		metrics:      opts.Metrics,
		clock:        clock,
		passwordCost: defaultPasswordCost,
	}
}

func (s *Service) today() time.Time {
	return inventory.Today(s.clock)
}

// getMaterial loads a material owned by userID, mapping absence to a 404.
func (s *Service) getMaterial(ctx context.Context, userID uuid.UUID, materialID int64) (*domain.Material, error) {
	m, err := s.materials.GetByID(ctx, userID, materialID)
	if err != nil {
		return nil, mapError(err, "failed to load material")
	}
	return m, nil
}

// mapError translates domain sentinels into structured errors. Unknown errors
// become internal errors carrying msg.
func mapError(err error, msg string) error {
	var insufficient *domain.InsufficientStockError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &insufficient):
		return apperrors.FormError(apperrors.FieldErrors{
			"quantity": "Insufficient stock. Available: " + inventory.FormatQuantity(insufficient.Available),
		}).WithCause(err)
	case errors.Is(err, domain.ErrMaterialNotFound):
		return apperrors.NotFoundError("material not found").WithCause(err)
	case errors.Is(err, domain.ErrCategoryNotFound):
		return apperrors.NotFoundError("category not found").WithCause(err)
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NotFoundError("user not found").WithCause(err)
	case errors.Is(err, domain.ErrDuplicateArticle):
		return apperrors.FormError(apperrors.FieldErrors{
			"article_number": "A material with this article number already exists.",
		}).WithCause(err)
	case errors.Is(err, domain.ErrDuplicateCategory):
		return apperrors.FormError(apperrors.FieldErrors{
			"name": "A category with this name already exists.",
		}).WithCause(err)
	case errors.Is(err, domain.ErrUsernameTaken):
		return apperrors.FormError(apperrors.FieldErrors{
			"username": "A user with that username already exists.",
		}).WithCause(err)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.FormError(apperrors.FieldErrors{
			FormField: "Please enter a correct username and password.",
		}).WithCause(err)
	}

	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return err
	}
	return apperrors.InternalError(msg, err)
}

// FormField is the FieldErrors key for errors not tied to one input.
const FormField = "__all__"

type noopCache struct{}

func (noopCache) Get(context.Context, int64, int) (*domain.Forecast, bool) { return nil, false }
func (noopCache) Set(context.Context, *domain.Forecast)                   {}
func (noopCache) Invalidate(context.Context, int64) error                 { return nil }
