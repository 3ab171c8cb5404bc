package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/config"
	"github.com/shades-uz/api/internal/platform/i18n"
	"github.com/shades-uz/api/internal/platform/storage"
	"github.com/shades-uz/api/internal/repositories"
	"github.com/shades-uz/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Auth    services.AuthService
	Catalog services.CatalogService
	Pricing services.PricingService
	Orders  services.OrderService
	Windows services.WindowService
	Shades  services.ShadeService
	Users   services.UserService
	Photos  services.PhotoService
	System  services.SystemService
}

// Deps carries externally constructed collaborators that the container cannot
// build from configuration alone.
type Deps struct {
	// Events publishes order lifecycle events. Optional; order processing
	// continues when it is nil.
	Events services.OrderEventPublisher
	// PhotoSigner signs measurement photo URLs. Optional; photo endpoints
	// report unavailable when it is nil.
	PhotoSigner *storage.Client
	Build       services.BuildInfo
	Logger      *zap.Logger
}

// Container wires repositories, services, and session infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Tokens       *auth.TokenManager
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides the Firestore
// registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return nil, fmt.Errorf("build token manager: %w", err)
	}

	svc, err := buildServices(ctx, cfg, reg, tokens, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Tokens:       tokens,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, reg repositories.Registry, tokens *auth.TokenManager, deps Deps) (Services, error) {
	var svc Services

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog: reg.Catalog(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	pricingSvc, err := services.NewPricingService(services.PricingServiceDeps{
		Catalog: reg.Catalog(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing service: %w", err)
	}
	svc.Pricing = pricingSvc

	authSvc, err := services.NewAuthService(services.AuthServiceDeps{
		Users:  reg.Users(),
		Tokens: tokens,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build auth service: %w", err)
	}
	svc.Auth = authSvc

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users: reg.Users(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Windows:    reg.Windows(),
		Shades:     reg.Shades(),
		Catalog:    reg.Catalog(),
		Users:      reg.Users(),
		Pricing:    pricingSvc,
		UnitOfWork: reg,
		Clock:      time.Now,
		Company:    companyContacts(cfg.Company),
		Events:     deps.Events,
		Logger:     zapEventLogger(deps.Logger, "orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	windowSvc, err := services.NewWindowService(services.WindowServiceDeps{
		Windows:    reg.Windows(),
		Orders:     reg.Orders(),
		UnitOfWork: reg,
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build window service: %w", err)
	}
	svc.Windows = windowSvc

	shadeSvc, err := services.NewShadeService(services.ShadeServiceDeps{
		Shades:     reg.Shades(),
		Windows:    reg.Windows(),
		Orders:     reg.Orders(),
		Catalog:    reg.Catalog(),
		Pricing:    pricingSvc,
		UnitOfWork: reg,
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shade service: %w", err)
	}
	svc.Shades = shadeSvc

	if deps.PhotoSigner != nil && cfg.Storage.PhotosBucket != "" {
		photoSvc, err := services.NewPhotoService(services.PhotoServiceDeps{
			Windows: reg.Windows(),
			Signer:  deps.PhotoSigner,
			Bucket:  cfg.Storage.PhotosBucket,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build photo service: %w", err)
		}
		svc.Photos = photoSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// companyContacts maps the configured contact blocks onto supported catalog
// languages. Languages without an explicit block fall back to the default
// language's block.
func companyContacts(cfg config.CompanyConfig) map[domain.LanguageCode]domain.CompanyContact {
	contacts := make(map[domain.LanguageCode]domain.CompanyContact, len(cfg.Contacts))
	for key, contact := range cfg.Contacts {
		contacts[i18n.Resolve(key)] = domain.CompanyContact{
			Name:         contact.Name,
			Phone:        contact.Phone,
			WorkingHours: contact.WorkingHours,
		}
	}
	if fallback, ok := contacts[i18n.Default]; ok {
		for _, code := range i18n.Codes() {
			if _, ok := contacts[code]; !ok {
				contacts[code] = fallback
			}
		}
	}
	return contacts
}

func zapEventLogger(logger *zap.Logger, name string) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		return nil
	}
	named := logger.Named(name)
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		named.Info("service event", zFields...)
	}
}
