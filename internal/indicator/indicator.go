// Package indicator provides technical indicator calculations over candle
// close series.
//
// All functions are pure: they take a slice of closes and return a value or
// ErrInvalidInput when the series is too short to evaluate.
package indicator

import (
	"errors"
	"math"
)

// ErrInvalidInput is returned when an input series is shorter than the
// minimum an indicator requires.
var ErrInvalidInput = errors.New("indicator: invalid input")

// SMA returns the arithmetic mean of xs.
func SMA(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrInvalidInput
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), nil
}

// Pstdev returns the population standard deviation of xs.
func Pstdev(xs []float64) (float64, error) {
	mean, err := SMA(xs)
	if err != nil {
		return 0, err
	}
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance), nil
}

// EMA returns the exponential moving average of xs at the final index, with
// alpha = 2/(1+length), seeded by the first element.
func EMA(xs []float64, length int) (float64, error) {
	if len(xs) == 0 || length <= 0 {
		return 0, ErrInvalidInput
	}
	alpha := 2.0 / float64(1+length)
	acc := xs[0]
	for _, x := range xs[1:] {
		acc = alpha*x + (1-alpha)*acc
	}
	return acc, nil
}

// RMA returns the Wilder-style moving average of xs at the final index, with
// alpha = 1/length, seeded by the arithmetic mean of the whole input.
func RMA(xs []float64, length int) (float64, error) {
	if length <= 0 {
		return 0, ErrInvalidInput
	}
	acc, err := SMA(xs)
	if err != nil {
		return 0, err
	}
	alpha := 1.0 / float64(length)
	for _, x := range xs[1:] {
		acc = alpha*x + (1-alpha)*acc
	}
	return acc, nil
}

// BollingerBand returns (basis, upper, lower) where basis is the SMA of the
// closes and the bands sit k population standard deviations away.
func BollingerBand(closes []float64, k float64) (basis, upper, lower float64, err error) {
	basis, err = SMA(closes)
	if err != nil {
		return 0, 0, 0, err
	}
	stdev, err := Pstdev(closes)
	if err != nil {
		return 0, 0, 0, err
	}
	return basis, basis + stdev*k, basis - stdev*k, nil
}

// RSI returns the Relative Strength Index of the closes over the given
// length: 100 * avgUp / (avgUp + avgDown), with the averages smoothed by
// RMA. A flat series (zero denominator) reports the neutral value 50.
func RSI(closes []float64, length int) (float64, error) {
	if len(closes) < 2 || length <= 0 {
		return 0, ErrInvalidInput
	}
	ups := make([]float64, 0, len(closes)-1)
	downs := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		ups = append(ups, math.Max(delta, 0))
		downs = append(downs, math.Max(-delta, 0))
	}
	avgUp, err := RMA(ups, length)
	if err != nil {
		return 0, err
	}
	avgDown, err := RMA(downs, length)
	if err != nil {
		return 0, err
	}
	if avgUp+avgDown == 0 {
		return 50.0, nil
	}
	return avgUp / (avgUp + avgDown) * 100.0, nil
}
