package util

import (
	"math"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// Panics if there is an error, otherwise returns the result
func Try[T any](result T, err error) T {
	CheckErr(err)
	return result
}

// Panics if error is not null
func CheckErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Turns a panic raised by Try or CheckErr into *err. Must be deferred directly.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = e
	} else {
		*err = errors.Newf("%v", r)
	}
}

// Returns the current unix time in seconds
func EpochSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(1e9)
}

// Arithmetic mean of the values; 0 for an empty slice
func Mean(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var total float64
	for _, v := range a {
		total += v
	}
	return total / float64(len(a))
}

// Largest value of the slice; 0 for an empty slice
func Max(a []float64) float64 {
	var m float64
	for i, v := range a {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// Computes a percentile (0-100) from an array. The input is not modified.
func Percentile(a []float64, p int) float64 {
	if len(a) <= 1 {
		return math.NaN()
	}

	sorted := make([]float64, len(a))
	copy(sorted, a)
	sort.Float64s(sorted)

	r := (float64(p)/100)*float64(len(sorted)) - 1
	if r < 0 {
		return sorted[0]
	}

	if r == float64(int(r)) {
		return sorted[int(r)]
	}
	ri := int(r)
	rf := r - float64(ri)
	return sorted[ri] + rf*(sorted[ri+1]-sorted[ri])
}
