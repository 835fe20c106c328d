package model

import (
	"fmt"
	"strconv"
	"time"
)

// Interval is a candle bucket width: a positive length and a timeframe unit.
// Supported units are s/m/h/d/w; "M" (month) exists only as a display label
// and is rejected wherever arithmetic on the interval is required.
type Interval struct {
	Length    int    `json:"length"`
	Timeframe string `json:"timeframe"`
}

var timeframeSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
	"w": 604800,
}

var timeframeKorean = map[string]string{
	"s": "초", "m": "분", "h": "시간", "d": "일", "w": "주", "M": "달",
}

// ParseInterval parses strings like "1m", "4h", "10m".
func ParseInterval(s string) (Interval, error) {
	if len(s) < 2 {
		return Interval{}, fmt.Errorf("interval: malformed %q", s)
	}
	unit := s[len(s)-1:]
	length, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || length <= 0 {
		return Interval{}, fmt.Errorf("interval: malformed %q", s)
	}
	if _, ok := timeframeKorean[unit]; !ok {
		return Interval{}, fmt.Errorf("interval: unknown timeframe %q", s)
	}
	return Interval{Length: length, Timeframe: unit}, nil
}

func (i Interval) String() string {
	return strconv.Itoa(i.Length) + i.Timeframe
}

// Seconds returns the interval width in seconds. Month intervals report 0,
// as they are display-only and never arithmetically compared.
func (i Interval) Seconds() int64 {
	return int64(i.Length) * timeframeSeconds[i.Timeframe]
}

// Shorter reports whether i is strictly shorter than other.
func (i Interval) Shorter(other Interval) bool {
	return i.Seconds() < other.Seconds()
}

// Truncate zeroes every field finer than the interval: the returned time is
// the start of the bucket containing t. For any trade inside candle c,
// c.Interval.Truncate(trade time) == c.Start.
func (i Interval) Truncate(t time.Time) time.Time {
	sec := i.Seconds()
	if sec <= 0 {
		return t
	}
	ts := t.Unix()
	return time.Unix(ts-ts%sec, 0).UTC()
}

// Korean renders the interval for alert messages, e.g. "1분", "4시간".
func (i Interval) Korean() string {
	return strconv.Itoa(i.Length) + timeframeKorean[i.Timeframe]
}

// ShortestInterval returns the interval with the smallest seconds-equivalent.
// The bool is false for an empty slice.
func ShortestInterval(intervals []Interval) (Interval, bool) {
	if len(intervals) == 0 {
		return Interval{}, false
	}
	shortest := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.Shorter(shortest) {
			shortest = iv
		}
	}
	return shortest, true
}
