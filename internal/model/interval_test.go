package model

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	cases := map[string]Interval{
		"1s":  {1, "s"},
		"1m":  {1, "m"},
		"10m": {10, "m"},
		"4h":  {4, "h"},
		"1d":  {1, "d"},
		"1w":  {1, "w"},
		"1M":  {1, "M"},
	}
	for s, want := range cases {
		got, err := ParseInterval(s)
		if err != nil {
			t.Errorf("ParseInterval(%q): %v", s, err)
			continue
		}
		if got != want {
			t.Errorf("ParseInterval(%q) = %v, want %v", s, got, want)
		}
		if got.String() != s {
			t.Errorf("String() = %q, want %q", got.String(), s)
		}
	}

	for _, s := range []string{"", "m", "0m", "-1h", "3x", "1.5h"} {
		if _, err := ParseInterval(s); err == nil {
			t.Errorf("ParseInterval(%q): expected error", s)
		}
	}
}

func TestIntervalSeconds(t *testing.T) {
	cases := map[Interval]int64{
		{1, "s"}:  1,
		{10, "m"}: 600,
		{4, "h"}:  14400,
		{1, "d"}:  86400,
		{1, "w"}:  604800,
		{1, "M"}:  0, // display-only
	}
	for iv, want := range cases {
		if got := iv.Seconds(); got != want {
			t.Errorf("%v.Seconds() = %d, want %d", iv, got, want)
		}
	}
}

func TestIntervalTruncate(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 37, 42, 500, time.UTC)

	fiveMin := Interval{5, "m"}
	want := time.Date(2024, 3, 5, 14, 35, 0, 0, time.UTC)
	if got := fiveMin.Truncate(ts); !got.Equal(want) {
		t.Errorf("5m truncate = %v, want %v", got, want)
	}

	oneHour := Interval{1, "h"}
	want = time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	if got := oneHour.Truncate(ts); !got.Equal(want) {
		t.Errorf("1h truncate = %v, want %v", got, want)
	}

	// Month intervals have no width; the time passes through.
	month := Interval{1, "M"}
	if got := month.Truncate(ts); !got.Equal(ts) {
		t.Errorf("1M truncate = %v, want input unchanged", got)
	}
}

func TestShortestInterval(t *testing.T) {
	intervals := []Interval{{1, "h"}, {15, "m"}, {1, "d"}}
	shortest, ok := ShortestInterval(intervals)
	if !ok || shortest != (Interval{15, "m"}) {
		t.Errorf("shortest = %v ok=%v", shortest, ok)
	}
	if _, ok := ShortestInterval(nil); ok {
		t.Error("expected ok=false for empty slice")
	}
}

func TestIntervalKorean(t *testing.T) {
	cases := map[Interval]string{
		{1, "m"}:  "1분",
		{4, "h"}:  "4시간",
		{1, "d"}:  "1일",
		{1, "M"}:  "1달",
		{30, "s"}: "30초",
	}
	for iv, want := range cases {
		if got := iv.Korean(); got != want {
			t.Errorf("%v.Korean() = %q, want %q", iv, got, want)
		}
	}
}
