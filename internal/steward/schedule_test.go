package steward

import (
	"testing"
	"time"
)

func TestParseQuietHoursEmptyIsNil(t *testing.T) {
	w, err := parseQuietHours("")
	if err != nil {
		t.Fatalf("parseQuietHours: %v", err)
	}
	if w != nil {
		t.Fatalf("expected nil window for empty spec, got %+v", w)
	}
}

func TestParseQuietHoursRejectsBadFormat(t *testing.T) {
	if _, err := parseQuietHours("22:00"); err == nil {
		t.Fatal("expected an error for a missing end time")
	}
	if _, err := parseQuietHours("25:00-06:00"); err == nil {
		t.Fatal("expected an error for an out-of-range hour")
	}
}

func TestQuietWindowContainsSameDayWindow(t *testing.T) {
	w, err := parseQuietHours("09:00-17:00")
	if err != nil {
		t.Fatalf("parseQuietHours: %v", err)
	}
	inside := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	if !w.contains(inside) {
		t.Error("expected 12:00 to be inside 09:00-17:00")
	}
	if w.contains(outside) {
		t.Error("expected 20:00 to be outside 09:00-17:00")
	}
}

func TestQuietWindowContainsWrappingMidnight(t *testing.T) {
	w, err := parseQuietHours("22:00-06:00")
	if err != nil {
		t.Fatalf("parseQuietHours: %v", err)
	}
	lateNight := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if !w.contains(lateNight) {
		t.Error("expected 23:30 to be inside 22:00-06:00")
	}
	if !w.contains(earlyMorning) {
		t.Error("expected 03:00 to be inside 22:00-06:00")
	}
	if w.contains(midday) {
		t.Error("expected 12:00 to be outside 22:00-06:00")
	}
}

func TestResolveLocationDefaultsToUTC(t *testing.T) {
	loc, err := resolveLocation("")
	if err != nil {
		t.Fatalf("resolveLocation: %v", err)
	}
	if loc != time.UTC {
		t.Errorf("expected UTC, got %v", loc)
	}
}
