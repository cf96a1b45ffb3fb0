package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/Runbook/internal/domain"
)

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 300,
		Timezone:    "UTC",
	}

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := from.Add(5 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *", // каждый день в 9:00
		Timezone: "UTC",
	}

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDue_CronBeatsInterval(t *testing.T) {
	// Если заданы оба, cron имеет приоритет
	sched := &domain.Schedule{
		CronExpr:    "30 * * * *",
		IntervalSec: 60,
		Timezone:    "UTC",
	}

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDue_Timezone(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "Europe/Moscow", // UTC+3
	}

	// 12:00 UTC = 15:00 MSK, следующий запуск — завтра 9:00 MSK = 6:00 UTC
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 60,
		Timezone:    "Mars/Olympus",
	}

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(time.Minute)) {
		t.Errorf("next = %v", next)
	}
}

func TestCalculateNextDue_NeitherCronNorInterval(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Fatal("expected error for empty schedule")
	}
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{
		"* * * * *",
		"0 9 * * *",
		"*/5 * * * 1-5",
	}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("%q: unexpected error: %v", expr, err)
		}
	}

	invalid := []string{
		"",
		"not a cron",
		"61 * * * *",
		"* * * *",
	}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("%q: expected error", expr)
		}
	}
}
