// Package config loads runtime settings from the process environment, an
// optional dotenv file, and Secret Manager references.
package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRateLimitDefault     = 120
	defaultRateLimitTracking    = 30
	defaultTokenTTL             = 7 * 24 * time.Hour
	defaultTokenIssuer          = "shades-api"
	defaultLanguage             = "ru"
	defaultEnvironment          = "local"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200

	defaultCompanyName         = "Shades Uzbekistan"
	defaultCompanyPhone        = "+998 90 123 45 67"
	defaultCompanyHoursRu      = "Пн-Пт: 9:00-18:00"
	defaultCompanyHoursUzCyrl  = "Ду-Жу: 9:00-18:00"
	defaultCompanyHoursUzLatn  = "Du-Ju: 9:00-18:00"
	defaultOrderEventsTopicKey = "order-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server       ServerConfig
	Firestore    FirestoreConfig
	Storage      StorageConfig
	PubSub       PubSubConfig
	Auth         AuthConfig
	RateLimits   RateLimitConfig
	Localization LocalizationConfig
	Company      CompanyConfig
	Idempotency  IdempotencyConfig
	Environment  string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig lists bucket names used by the application.
type StorageConfig struct {
	PhotosBucket string
}

// PubSubConfig holds event publishing parameters.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
}

// AuthConfig groups session token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	DefaultPerMinute  int
	TrackingPerMinute int
}

// LocalizationConfig selects the fallback language for responses.
type LocalizationConfig struct {
	DefaultLanguage string
}

// CompanyContactConfig is the localized company contact block returned with
// public tracking responses.
type CompanyContactConfig struct {
	Name         string
	Phone        string
	WorkingHours string
}

// CompanyConfig maps language codes to their contact blocks.
type CompanyConfig struct {
	Contacts map[string]CompanyContactConfig
}

// IdempotencyConfig tunes the idempotency guard on order mutations.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SecretResolver turns a secret reference (a secret:// or sm:// URI) into
// its value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a plain function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError reports required fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config validation failed: missing or invalid fields [" + strings.Join(e.fields, ", ") + "]"
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError wraps a failure while resolving one secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to
// resolve. Names are kept verbatim for callers but hashed in the error text
// so the message is safe to log.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	redacted := e.RedactedNames()
	if len(redacted) == 0 {
		return "missing required secrets"
	}
	return "missing required secrets [" + strings.Join(redacted, ", ") + "]"
}

// RedactedNames returns hashed identifiers of the missing secrets.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, redactSecretName(name))
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	return append([]string(nil), e.names...)
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loader)

type loader struct {
	envFile         string
	overrides       map[string]string
	skipSystemEnv   bool
	secrets         SecretResolver
	requiredSecrets []string
	panicOnMissing  bool
}

func newLoader(opts []Option) loader {
	l := loader{envFile: defaultEnvFile}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(l *loader) {
		l.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(l *loader) {
		l.overrides = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(l *loader) {
		l.skipSystemEnv = true
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(l *loader) {
		l.secrets = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers match the config field names recorded by the loader
// (e.g. "Auth.JWTSecret").
func WithRequiredSecrets(names ...string) Option {
	return func(l *loader) {
		l.requiredSecrets = append(l.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(l *loader) {
		l.panicOnMissing = true
	}
}

// env answers key lookups against layered sources, highest precedence first.
type env struct {
	layers []map[string]string
}

func (l loader) environment() (env, error) {
	dotEnv, err := readDotEnv(l.envFile)
	if err != nil {
		return env{}, err
	}
	layers := []map[string]string{l.overrides}
	if !l.skipSystemEnv {
		layers = append(layers, systemEnv())
	}
	layers = append(layers, dotEnv)
	return env{layers: layers}, nil
}

func (e env) lookup(key string) (string, bool) {
	for _, layer := range e.layers {
		if value, ok := layer[key]; ok {
			return value, true
		}
	}
	return "", false
}

func (e env) str(key, fallback string) string {
	if value, ok := e.lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func (e env) duration(key string, fallback time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e env) count(key string, fallback int) int {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func systemEnv() map[string]string {
	values := make(map[string]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

// EnvironmentValues returns the effective key/value environment map after
// applying the same precedence rules as Load (dotenv < OS env < explicit env
// map). Callers can use the result to initialise dependencies before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	environment, err := newLoader(opts).environment()
	if err != nil {
		return nil, err
	}
	// Merge lowest precedence first so higher layers overwrite.
	merged := make(map[string]string)
	for i := len(environment.layers) - 1; i >= 0; i-- {
		for key, value := range environment.layers[i] {
			merged[key] = value
		}
	}
	return merged, nil
}

// Load assembles the application configuration by combining defaults, .env
// overrides, environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	l := newLoader(opts)
	if l.secrets == nil {
		l.secrets = SecretResolverFunc(func(context.Context, string) (string, error) {
			return "", errSecretResolverNotConfigured
		})
	}

	e, err := l.environment()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server:       serverSettings(e),
		Firestore:    firestoreSettings(e),
		Storage:      StorageConfig{PhotosBucket: e.str("API_STORAGE_PHOTOS_BUCKET", "")},
		PubSub:       pubsubSettings(e),
		Auth:         authSettings(e),
		RateLimits:   rateLimitSettings(e),
		Localization: LocalizationConfig{DefaultLanguage: e.str("API_DEFAULT_LANGUAGE", defaultLanguage)},
		Company:      companySettings(e),
		Idempotency:  idempotencySettings(e),
		Environment:  strings.ToLower(e.str("API_ENVIRONMENT", defaultEnvironment)),
	}

	// Events publish to the Firestore project unless told otherwise.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	secretFields := map[string]*string{
		"Auth.JWTSecret": &cfg.Auth.JWTSecret,
	}
	for _, field := range secretFields {
		value, err := resolveSecret(ctx, *field, l.secrets)
		if err != nil {
			return Config{}, err
		}
		*field = value
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := checkRequiredSecrets(l.requiredSecrets, secretFields); missing != nil {
		if l.panicOnMissing {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func serverSettings(e env) ServerConfig {
	return ServerConfig{
		Port:         e.str("API_SERVER_PORT", defaultPort),
		ReadTimeout:  e.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
		WriteTimeout: e.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
		IdleTimeout:  e.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
	}
}

func firestoreSettings(e env) FirestoreConfig {
	return FirestoreConfig{
		ProjectID:    e.str("API_FIRESTORE_PROJECT_ID", ""),
		EmulatorHost: e.str("API_FIRESTORE_EMULATOR_HOST", ""),
	}
}

func pubsubSettings(e env) PubSubConfig {
	return PubSubConfig{
		ProjectID:        e.str("API_PUBSUB_PROJECT_ID", ""),
		OrderEventsTopic: e.str("API_PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderEventsTopicKey),
	}
}

func authSettings(e env) AuthConfig {
	return AuthConfig{
		JWTSecret: e.str("API_AUTH_JWT_SECRET", ""),
		Issuer:    e.str("API_AUTH_ISSUER", defaultTokenIssuer),
		TokenTTL:  e.duration("API_AUTH_TOKEN_TTL", defaultTokenTTL),
	}
}

func rateLimitSettings(e env) RateLimitConfig {
	return RateLimitConfig{
		DefaultPerMinute:  e.count("API_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
		TrackingPerMinute: e.count("API_RATELIMIT_TRACKING_PER_MIN", defaultRateLimitTracking),
	}
}

func companySettings(e env) CompanyConfig {
	name := e.str("API_COMPANY_NAME", defaultCompanyName)
	phone := e.str("API_COMPANY_PHONE", defaultCompanyPhone)
	hours := map[string]string{
		"ru":      e.str("API_COMPANY_HOURS_RU", defaultCompanyHoursRu),
		"uz_cyrl": e.str("API_COMPANY_HOURS_UZ_CYRL", defaultCompanyHoursUzCyrl),
		"uz_latn": e.str("API_COMPANY_HOURS_UZ_LATN", defaultCompanyHoursUzLatn),
	}
	contacts := make(map[string]CompanyContactConfig, len(hours))
	for lang, workingHours := range hours {
		contacts[lang] = CompanyContactConfig{Name: name, Phone: phone, WorkingHours: workingHours}
	}
	return CompanyConfig{Contacts: contacts}
}

func idempotencySettings(e env) IdempotencyConfig {
	return IdempotencyConfig{
		Header:           e.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
		TTL:              e.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		CleanupInterval:  e.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
		CleanupBatchSize: e.count("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
	}
}

// resolveSecret replaces secret:// and sm:// references with their resolved
// values. Plain values pass through untouched.
func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	ref, isRef := canonicalSecretRef(value)
	if !isRef {
		return value, nil
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func canonicalSecretRef(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(trimmed, "secret://"):
		return trimmed, true
	case strings.HasPrefix(trimmed, "sm://"):
		return "secret://" + trimmed[len("sm://"):], true
	}
	return trimmed, false
}

func validateConfig(cfg Config) error {
	checks := []struct {
		ok    bool
		field string
	}{
		{cfg.Server.Port != "", "Server.Port"},
		{cfg.Firestore.ProjectID != "", "Firestore.ProjectID"},
		{strings.TrimSpace(cfg.Auth.JWTSecret) != "", "Auth.JWTSecret"},
		{cfg.Auth.TokenTTL > 0, "Auth.TokenTTL"},
		{strings.TrimSpace(cfg.Localization.DefaultLanguage) != "", "Localization.DefaultLanguage"},
		{strings.TrimSpace(cfg.Idempotency.Header) != "", "Idempotency.Header"},
		{cfg.Idempotency.TTL > 0, "Idempotency.TTL"},
		{cfg.Idempotency.CleanupInterval > 0, "Idempotency.CleanupInterval"},
		{cfg.Idempotency.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize"},
	}

	var missing []string
	for _, check := range checks {
		if !check.ok {
			missing = append(missing, check.field)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func checkRequiredSecrets(required []string, resolved map[string]*string) *MissingSecretsError {
	var missing []string
	seen := make(map[string]struct{})
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if value := resolved[name]; value != nil && strings.TrimSpace(*value) != "" {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingSecretsError{names: missing}
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}
