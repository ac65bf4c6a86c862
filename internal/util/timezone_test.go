package util

import (
	"testing"
	"time"
)

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil {
		t.Fatalf("LoadLocation(\"\") failed: %v", err)
	}
	if loc != time.Local {
		t.Errorf("empty timezone should resolve to time.Local, got %v", loc)
	}

	loc, err = LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	if loc.String() != "America/New_York" {
		t.Errorf("location = %v", loc)
	}

	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Error("invalid timezone accepted")
	}
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	// 03:00 UTC on March 11 is still March 10 in Chicago
	ts := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	start, end := DayWindow(ts, loc)

	wantStart := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}

	wantEnd := time.Date(2026, 3, 10, 23, 59, 59, 999000000, loc)
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestParseDate(t *testing.T) {
	loc := time.UTC
	d, err := ParseDate("2026-03-10", loc)
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}

	if _, err := ParseDate("03/10/2026", loc); err == nil {
		t.Error("slash-separated date accepted")
	}
	if _, err := ParseDate("", loc); err == nil {
		t.Error("empty date accepted")
	}
}

func TestSQLiteTimestamp(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ts := time.Date(2026, 3, 10, 15, 30, 45, 0, loc)
	if got := SQLiteTimestamp(ts); got != "2026-03-10 14:30:45" {
		t.Errorf("SQLiteTimestamp = %q", got)
	}
}
