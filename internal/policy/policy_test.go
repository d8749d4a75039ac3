package policy

import (
	"testing"
	"time"
)

func TestCanCheckInOnlyToday(t *testing.T) {
	t.Parallel()

	eval := NewEvaluator(FixedClock("2024-01-10"))
	cases := map[string]bool{
		"2024-01-10": true,
		"2024-01-09": false,
		"2024-01-11": false,
		"2023-01-10": false,
		"not-a-date": false,
		"":           false,
	}
	for date, want := range cases {
		if got := eval.CanCheckIn(date); got != want {
			t.Fatalf("CanCheckIn(%q) = %v, want %v", date, got, want)
		}
	}
}

func TestRatingWindowScenario(t *testing.T) {
	t.Parallel()

	const checkInDate = "2024-01-10"
	tests := []struct {
		today    string
		canRate  bool
		expired  bool
		inWindow bool
	}{
		{today: "2024-01-10", canRate: true, expired: false, inWindow: true},
		{today: "2024-01-11", canRate: true, expired: false, inWindow: true},
		{today: "2024-01-12", canRate: false, expired: true, inWindow: false},
		{today: "2024-01-20", canRate: false, expired: true, inWindow: false},
	}
	for _, tt := range tests {
		eval := NewEvaluator(FixedClock(tt.today))
		if got := eval.CanRate(checkInDate); got != tt.canRate {
			t.Fatalf("today %s: CanRate = %v, want %v", tt.today, got, tt.canRate)
		}
		if got := eval.IsRatingExpired(checkInDate); got != tt.expired {
			t.Fatalf("today %s: IsRatingExpired = %v, want %v", tt.today, got, tt.expired)
		}
		if got := eval.InRatingWindow(checkInDate); got != tt.inWindow {
			t.Fatalf("today %s: InRatingWindow = %v, want %v", tt.today, got, tt.inWindow)
		}
	}
}

func TestRatingWindowIsExactlyTwoDays(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, time.December, 25, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		checkInDate := start.AddDate(0, 0, i).Format(DateLayout)
		open := 0
		for offset := 0; offset < 6; offset++ {
			today := AddDays(checkInDate, offset)
			eval := NewEvaluator(FixedClock(today))
			wantCanRate := offset <= 1
			if got := eval.CanRate(checkInDate); got != wantCanRate {
				t.Fatalf("CanRate(%s) at %s = %v, want %v", checkInDate, today, got, wantCanRate)
			}
			wantExpired := offset >= 2
			if got := eval.IsRatingExpired(checkInDate); got != wantExpired {
				t.Fatalf("IsRatingExpired(%s) at %s = %v, want %v", checkInDate, today, got, wantExpired)
			}
			if eval.InRatingWindow(checkInDate) {
				open++
			}
		}
		if open != 2 {
			t.Fatalf("window for %s spans %d days, want 2", checkInDate, open)
		}
	}
}

func TestInRatingWindowRejectsFutureDates(t *testing.T) {
	t.Parallel()

	eval := NewEvaluator(FixedClock("2024-01-10"))
	if !eval.CanRate("2024-01-11") {
		t.Fatal("CanRate(future) = false, want true")
	}
	if eval.InRatingWindow("2024-01-11") {
		t.Fatal("expected future check-in date to be outside the window")
	}
}

func TestAddDaysCrossesMonthAndLeapDay(t *testing.T) {
	t.Parallel()

	if got := AddDays("2024-02-28", 1); got != "2024-02-29" {
		t.Fatalf("AddDays leap = %q, want %q", got, "2024-02-29")
	}
	if got := AddDays("2024-12-31", 1); got != "2025-01-01" {
		t.Fatalf("AddDays year = %q, want %q", got, "2025-01-01")
	}
	if got := AddDays("bogus", 1); got != "bogus" {
		t.Fatalf("AddDays malformed = %q, want unchanged", got)
	}
}

func TestYesterday(t *testing.T) {
	t.Parallel()

	eval := NewEvaluator(FixedClock("2024-03-01"))
	if got := eval.Yesterday(); got != "2024-02-29" {
		t.Fatalf("Yesterday = %q, want %q", got, "2024-02-29")
	}
}

func TestSystemClockUsesLocation(t *testing.T) {
	t.Parallel()

	got := SystemClock{}.Today()
	if !ValidDate(got) {
		t.Fatalf("SystemClock.Today = %q, want a valid date", got)
	}
	want := time.Now().UTC().Format(DateLayout)
	// tolerate a midnight rollover between the two reads
	if got != want && AddDays(got, 1) != want {
		t.Fatalf("SystemClock.Today = %q, want %q", got, want)
	}
}
