package util

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"Airframe inspection", 20, "Airframe inspection"},
		{"Airframe inspection and calibration", 20, "Airframe inspection "},
		{"", 10, ""},
		{"abc", 0, ""},
		{"abc", -1, ""},
		{"中文字符串", 3, "中文字"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("Truncate(%q, %d): expected %q, got %q", tc.in, tc.n, tc.want, got)
		}
	}
}

func TestDateOnly(t *testing.T) {
	aest := time.FixedZone("AEST", 10*3600)
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{
			in:   time.Date(2026, 6, 15, 23, 59, 59, 123, aest),
			want: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		// The local clock has rolled into the 15th but UTC has not.
		{
			in:   time.Date(2026, 6, 15, 5, 0, 0, 0, aest),
			want: time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		if got := DateOnly(tc.in); !got.Equal(tc.want) {
			t.Fatalf("DateOnly(%s): expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		a, b time.Time
		want int
	}{
		{base, base, 0},
		{base, base.AddDate(0, 0, 30), 30},
		{base.AddDate(0, 0, 30), base, -30},
		// Time of day never shifts the whole-day count.
		{base, base.AddDate(0, 0, 1).Add(-9 * time.Hour), 1},
	}
	for _, tc := range cases {
		if got := DaysBetween(tc.a, tc.b); got != tc.want {
			t.Errorf("DaysBetween(%s, %s): expected %d, got %d", tc.a, tc.b, tc.want, got)
		}
	}
}
