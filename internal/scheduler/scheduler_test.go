package scheduler

import (
	"testing"
	"time"
)

func TestIsDueNeverRan(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for _, spec := range []string{"@daily", "@hourly", "0 6 * * *", "not-a-cron"} {
		if !isDue(spec, time.Time{}, now) {
			t.Fatalf("spec %q should be due when a run never happened", spec)
		}
	}
}

func TestIsDueDaily(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if isDue("@daily", now.Add(-23*time.Hour), now) {
		t.Fatal("23h ago should not be due daily")
	}
	if !isDue("@daily", now.Add(-25*time.Hour), now) {
		t.Fatal("25h ago should be due daily")
	}
}

func TestIsDueHourly(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if isDue("@hourly", now.Add(-30*time.Minute), now) {
		t.Fatal("30m ago should not be due hourly")
	}
	if !isDue("@hourly", now.Add(-90*time.Minute), now) {
		t.Fatal("90m ago should be due hourly")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// Daily at 06:00.
	spec := "0 6 * * *"
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if !isDue(spec, time.Date(2026, 7, 31, 6, 30, 0, 0, time.UTC), now) {
		t.Fatal("a 06:00 slot passed since the last run; should be due")
	}
	if isDue(spec, time.Date(2026, 8, 1, 6, 30, 0, 0, time.UTC), now) {
		t.Fatal("last run after today's 06:00 slot; next slot is tomorrow")
	}
}

func TestIsDueInvalidSpecFallsBackToDaily(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if isDue("%%%", now.Add(-1*time.Hour), now) {
		t.Fatal("invalid spec should behave like @daily")
	}
	if !isDue("%%%", now.Add(-25*time.Hour), now) {
		t.Fatal("invalid spec should behave like @daily")
	}
}
