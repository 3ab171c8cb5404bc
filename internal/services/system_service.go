package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/repositories"
)

// BuildInfo is the build metadata stamped into health responses.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators for NewSystemService.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	healthRepo repositories.HealthRepository
	clock      func() time.Time
	build      BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService builds the service backing the health endpoints.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	tick := deps.Clock
	if tick == nil {
		tick = time.Now
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = tick()
	}

	return &systemService{
		healthRepo: deps.HealthRepository,
		clock:      func() time.Time { return tick().UTC() },
		build:      build,
	}, nil
}

// Health collects the dependency report and fills in build metadata and
// uptime for fields the repository leaves empty.
func (s *systemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, err
	}

	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	fillIfEmpty(&report.Version, s.build.Version)
	fillIfEmpty(&report.CommitSHA, s.build.CommitSHA)
	fillIfEmpty(&report.Environment, s.build.Environment)
	if report.Uptime <= 0 && !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if strings.TrimSpace(report.Status) == "" {
		report.Status = worstCheckStatus(report.Checks)
	}
	return report, nil
}

func fillIfEmpty(target *string, fallback string) {
	if strings.TrimSpace(*target) == "" {
		*target = fallback
	}
}

func worstCheckStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
