package render

import "runtime"

const (
	minPages   = 1
	maxPages   = 8
	cpuDivisor = 2
)

// ResolvePoolSize returns how many pages may render at once. An explicit
// positive value wins; otherwise half of GOMAXPROCS, clamped to [1, 8].
// Call maxprocs.Set first so GOMAXPROCS reflects the container CPU quota.
func ResolvePoolSize(explicit int) int {
	if explicit > 0 {
		return explicit
	}
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < minPages {
		return minPages
	}
	if n > maxPages {
		return maxPages
	}
	return n
}
