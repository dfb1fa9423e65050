package timeutil

import "time"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func System() time.Time {
	return time.Now()
}

func NowUnix() int64 {
	return time.Now().Unix()
}

// Within reports whether a and b (unix seconds) differ by at most tolerance.
func Within(a, b int64, tolerance time.Duration) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(tolerance/time.Second)
}
