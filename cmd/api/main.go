package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/shades-uz/api/internal/di"
	"github.com/shades-uz/api/internal/handlers"
	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/config"
	pfirestore "github.com/shades-uz/api/internal/platform/firestore"
	"github.com/shades-uz/api/internal/platform/idempotency"
	"github.com/shades-uz/api/internal/platform/jobs"
	"github.com/shades-uz/api/internal/platform/observability"
	"github.com/shades-uz/api/internal/platform/secrets"
	platformstorage "github.com/shades-uz/api/internal/platform/storage"
	firestoreRepo "github.com/shades-uz/api/internal/repositories/firestore"
	"github.com/shades-uz/api/internal/services"
)

// envLookup reads trimmed values from the merged environment map.
type envLookup map[string]string

func (e envLookup) get(key string) string {
	return strings.TrimSpace(e[key])
}

func (e envLookup) getOr(key, fallback string) string {
	if value := e.get(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = baseLogger.Sync() }()

	logger := baseLogger.Named("api")
	ctx := observability.WithLogger(context.Background(), logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}
	env := envLookup(envValues)

	fetcher, err := newSecretFetcher(ctx, logger, env)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("Auth.JWTSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(env, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	eventPublisher, pubsubClient := newOrderEventPublisher(ctx, logger, cfg)
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	photoSigner := newPhotoSigner(ctx, logger, fetcher, env)

	container, err := di.NewContainer(ctx, cfg, registry, di.Deps{
		Events:      eventPublisher,
		PhotoSigner: photoSigner,
		Build:       buildInfo,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}

	authenticator := auth.NewAuthenticator(container.Tokens)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	orderIdempotency := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithMethods(http.MethodPost),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)
	stopCleanup := startIdempotencyCleanup(logger.Named("idempotency"), idempotencyStore, cfg.Idempotency)

	authHandlers := handlers.NewAuthHandlers(authenticator, container.Services.Auth)
	catalogHandlers := handlers.NewCatalogHandlers(container.Services.Catalog)
	pricingHandlers := handlers.NewPricingHandlers(container.Services.Pricing)
	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Orders, cfg.RateLimits.TrackingPerMinute)
	windowHandlers := handlers.NewWindowHandlers(authenticator, container.Services.Windows, container.Services.Photos)
	shadeHandlers := handlers.NewShadeHandlers(authenticator, container.Services.Shades)
	userHandlers := handlers.NewUserHandlers(authenticator, container.Services.Users)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithPricingRoutes(pricingHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithOrderMiddlewares(orderIdempotency),
		handlers.WithWindowRoutes(windowHandlers.Routes),
		handlers.WithShadeRoutes(shadeHandlers.Routes),
		handlers.WithUserRoutes(userHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("shades api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received; draining requests")

	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// startIdempotencyCleanup removes expired idempotency records on a timer.
// The returned stop function blocks until the worker exits.
func startIdempotencyCleanup(logger *zap.Logger, store *idempotency.FirestoreStore, cfg config.IdempotencyConfig) func() {
	if cfg.CleanupInterval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(cfg.CleanupInterval)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			runCtx, cancelRun := context.WithTimeout(ctx, time.Minute)
			removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
			cancelRun()
			if err != nil {
				logger.Error("idempotency cleanup error", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
			}
		}
	}()

	return func() {
		ticker.Stop()
		cancel()
		wg.Wait()
	}
}

func buildInfoFromEnv(env envLookup, cfg config.Config, started time.Time) services.BuildInfo {
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     env.getOr("API_BUILD_VERSION", "dev"),
		CommitSHA:   env.getOr("API_BUILD_COMMIT_SHA", "unknown"),
		Environment: environment,
		StartedAt:   started,
	}
}

// newOrderEventPublisher builds the Pub/Sub publisher when a project is
// configured. Event publishing is best-effort; the API runs without it.
func newOrderEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.OrderEventPublisher, *pubsub.Client) {
	projectID := strings.TrimSpace(cfg.PubSub.ProjectID)
	topicID := strings.TrimSpace(cfg.PubSub.OrderEventsTopic)
	if projectID == "" || topicID == "" {
		logger.Info("pubsub not configured; order events disabled")
		return nil, nil
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		logger.Warn("pubsub client init failed; order events disabled", zap.Error(err))
		return nil, nil
	}

	publisher, err := jobs.NewPubSubOrderEventPublisher(client.Topic(topicID))
	if err != nil {
		logger.Warn("order event publisher init failed; order events disabled", zap.Error(err))
		_ = client.Close()
		return nil, nil
	}
	return publisher, client
}

// newPhotoSigner builds the signed URL client from the configured service
// account key. Photo endpoints are disabled when no key is provided.
func newPhotoSigner(ctx context.Context, logger *zap.Logger, fetcher *secrets.Fetcher, env envLookup) *platformstorage.Client {
	key := env.get("API_STORAGE_SIGNER_KEY")
	keyFile := env.get("API_STORAGE_SIGNER_KEY_FILE")
	if key == "" && keyFile == "" {
		logger.Info("storage signer key not configured; photo endpoints disabled")
		return nil
	}

	var signer *platformstorage.ServiceAccountSigner
	var err error
	switch {
	case key != "":
		if strings.HasPrefix(key, "secret://") || strings.HasPrefix(key, "sm://") {
			key, err = fetcher.Resolve(ctx, key)
			if err != nil {
				logger.Warn("storage signer key resolution failed; photo endpoints disabled", zap.Error(err))
				return nil
			}
		}
		signer, err = platformstorage.NewServiceAccountSignerFromJSON([]byte(key))
	default:
		signer, err = platformstorage.NewServiceAccountSignerFromFile(keyFile)
	}
	if err != nil {
		logger.Warn("storage signer init failed; photo endpoints disabled", zap.Error(err))
		return nil
	}

	client, err := platformstorage.NewClient(signer)
	if err != nil {
		logger.Warn("storage client init failed; photo endpoints disabled", zap.Error(err))
		return nil
	}
	return client
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env envLookup) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithEnvironment(strings.ToLower(env.getOr("API_ENVIRONMENT", "local"))),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(env.getOr("API_SECRET_FALLBACK_FILE", ".secrets.local")),
	}
	defaultProject := env.getOr("API_SECRET_DEFAULT_PROJECT_ID", env.get("API_FIRESTORE_PROJECT_ID"))
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := env.get("API_SECRET_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}
