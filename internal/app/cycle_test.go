package app

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCurrentCycle_MonthlyPlanAtBoundary(t *testing.T) {
	// start 2025-01-21, duration 1 month, checked 2025-05-31:
	// months since start = 4, 4 % 1 == 0, cycle is May 21 - Jun 21.
	start := date(2025, time.January, 21)
	cycle, ok := CurrentCycle(start, date(2026, time.January, 21), 1, date(2025, time.May, 31))
	if !ok {
		t.Fatal("expected date inside subscription window")
	}
	if !cycle.AtBoundary {
		t.Fatal("expected cycle boundary for monthly plan")
	}
	if !cycle.Start.Equal(date(2025, time.May, 21)) {
		t.Fatalf("expected cycle start 2025-05-21, got %s", cycle.Start)
	}
	if !cycle.End.Equal(date(2025, time.June, 21)) {
		t.Fatalf("expected cycle end 2025-06-21, got %s", cycle.End)
	}
}

func TestCurrentCycle_QuarterlyPlanMidCycle(t *testing.T) {
	// start 2025-01-21, duration 3 months, checked 2025-05-31:
	// months since start = 4, 4 % 3 == 1, not a boundary.
	start := date(2025, time.January, 21)
	cycle, ok := CurrentCycle(start, date(2026, time.January, 21), 3, date(2025, time.May, 31))
	if !ok {
		t.Fatal("expected date inside subscription window")
	}
	if cycle.AtBoundary {
		t.Fatal("expected mid-cycle, not a boundary")
	}
	if !cycle.Start.Equal(date(2025, time.April, 21)) {
		t.Fatalf("expected containing cycle start 2025-04-21, got %s", cycle.Start)
	}
	if !cycle.End.Equal(date(2025, time.July, 21)) {
		t.Fatalf("expected containing cycle end 2025-07-21, got %s", cycle.End)
	}
}

func TestCurrentCycle_DayOfMonthIgnored(t *testing.T) {
	// A subscription started Jan 31 is "in cycle month 3" on Apr 1 even
	// though fewer than 90 days have elapsed. Month-granularity is the
	// contract.
	start := date(2025, time.January, 31)
	cycle, ok := CurrentCycle(start, date(2026, time.January, 31), 1, date(2025, time.April, 1))
	if !ok {
		t.Fatal("expected date inside subscription window")
	}
	if !cycle.AtBoundary {
		t.Fatal("expected boundary on any day of the anniversary month")
	}
}

func TestCurrentCycle_OutsideWindow(t *testing.T) {
	start := date(2025, time.January, 21)
	end := date(2025, time.February, 21)

	if _, ok := CurrentCycle(start, end, 1, date(2025, time.January, 20)); ok {
		t.Fatal("expected day before start to be outside window")
	}
	if _, ok := CurrentCycle(start, end, 1, date(2025, time.February, 22)); ok {
		t.Fatal("expected day after subscription end to be outside window")
	}
	// The end day itself is still in-window.
	if _, ok := CurrentCycle(start, end, 1, date(2025, time.February, 21)); !ok {
		t.Fatal("expected subscription end day to be inside window")
	}
}

func TestCurrentCycle_BoundaryMatchesMonthModulus(t *testing.T) {
	start := date(2024, time.March, 15)
	end := start.AddDate(2, 0, 0)
	for _, duration := range []int{1, 2, 3, 6, 12} {
		today := start
		for i := 0; i <= 2*duration; i++ {
			cycle, ok := CurrentCycle(start, end, duration, today)
			if !ok {
				t.Fatalf("duration %d month %d: expected in window", duration, i)
			}
			wantBoundary := i%duration == 0
			if cycle.AtBoundary != wantBoundary {
				t.Fatalf("duration %d month %d: boundary = %v, want %v", duration, i, cycle.AtBoundary, wantBoundary)
			}
			today = today.AddDate(0, 1, 0)
		}
	}
}

func TestCurrentCycle_Deterministic(t *testing.T) {
	start := date(2025, time.January, 21)
	end := date(2026, time.January, 21)
	today := date(2025, time.May, 31)

	first, okFirst := CurrentCycle(start, end, 3, today)
	second, okSecond := CurrentCycle(start, end, 3, today)
	if okFirst != okSecond || first != second {
		t.Fatalf("identical inputs produced different outputs: %+v vs %+v", first, second)
	}
}

func TestCurrentCycle_InvalidDuration(t *testing.T) {
	if _, ok := CurrentCycle(date(2025, time.January, 1), date(2026, time.January, 1), 0, date(2025, time.January, 1)); ok {
		t.Fatal("expected zero duration to be rejected")
	}
}

func TestAddMonths_ClampsToEndOfMonth(t *testing.T) {
	got := addMonths(date(2025, time.January, 31), 1)
	if !got.Equal(date(2025, time.February, 28)) {
		t.Fatalf("expected Jan 31 + 1 month = Feb 28, got %s", got)
	}

	got = addMonths(date(2024, time.January, 31), 1)
	if !got.Equal(date(2024, time.February, 29)) {
		t.Fatalf("expected Jan 31 + 1 month = Feb 29 in a leap year, got %s", got)
	}

	got = addMonths(date(2025, time.November, 15), 2)
	if !got.Equal(date(2026, time.January, 15)) {
		t.Fatalf("expected Nov 15 + 2 months = Jan 15 next year, got %s", got)
	}
}
