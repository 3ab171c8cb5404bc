package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/shades-uz/api/internal/domain"
)

var healthClock = func() time.Time {
	return time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)
}

// sleepCheck simulates a probe that takes d to answer.
func sleepCheck(d time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func mustCollect(t *testing.T, repo HealthRepository) domain.SystemHealthReport {
	t.Helper()
	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return report
}

func TestDependencyHealthRepositoryAllHealthy(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "firestore", Check: sleepCheck(10 * time.Millisecond)},
		{Name: "storage", Check: func(context.Context) error { return nil }},
	}, WithDependencyClock(healthClock))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report := mustCollect(t, repo)
	if got, want := report.Status, domain.HealthStatusOK; got != want {
		t.Fatalf("report status = %s, want %s", got, want)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(report.Checks))
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK {
			t.Fatalf("check %s status = %s, want ok", name, check.Status)
		}
		if !check.CheckedAt.Equal(healthClock()) {
			t.Fatalf("check %s checkedAt = %s, want %s", name, check.CheckedAt, healthClock())
		}
	}
	if !report.GeneratedAt.Equal(healthClock()) {
		t.Fatalf("generatedAt = %s, want %s", report.GeneratedAt, healthClock())
	}
}

func TestDependencyHealthRepositoryFailingCheckDegrades(t *testing.T) {
	probeErr := errors.New("firestore unreachable")
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "firestore", Check: func(context.Context) error { return probeErr }},
		{Name: "pubsub", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report := mustCollect(t, repo)
	if got, want := report.Status, domain.HealthStatusDegraded; got != want {
		t.Fatalf("report status = %s, want %s", got, want)
	}
	check := report.Checks["firestore"]
	if check.Status != domain.HealthStatusDegraded {
		t.Fatalf("firestore status = %s, want degraded", check.Status)
	}
	if check.Error != probeErr.Error() {
		t.Fatalf("firestore error = %q, want %q", check.Error, probeErr.Error())
	}
}

func TestDependencyHealthRepositorySlowCheckTimesOut(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "secrets", Timeout: 5 * time.Millisecond, Check: sleepCheck(20 * time.Millisecond)},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report := mustCollect(t, repo)
	if got, want := report.Status, domain.HealthStatusError; got != want {
		t.Fatalf("report status = %s, want %s", got, want)
	}
	check := report.Checks["secrets"]
	if check.Status != domain.HealthStatusError {
		t.Fatalf("secrets status = %s, want error", check.Status)
	}
	if check.Detail != "timeout" {
		t.Fatalf("secrets detail = %q, want timeout", check.Detail)
	}
}

func TestDependencyHealthRepositoryRejectsInvalidChecks(t *testing.T) {
	for name, checks := range map[string][]DependencyCheck{
		"empty set":        nil,
		"unnamed check":    {{Name: "  "}},
		"missing function": {{Name: "firestore"}},
	} {
		if _, err := NewDependencyHealthRepository(checks); err == nil {
			t.Fatalf("expected error for %s", name)
		}
	}
}
