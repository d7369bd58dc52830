package render

import (
	"runtime"
	"testing"
)

func TestResolvePoolSize(t *testing.T) {
	if got := ResolvePoolSize(5); got != 5 {
		t.Fatalf("explicit = %d, want 5", got)
	}

	prev := runtime.GOMAXPROCS(0)
	defer runtime.GOMAXPROCS(prev)

	for procs, want := range map[int]int{1: 1, 2: 1, 6: 3, 32: 8} {
		runtime.GOMAXPROCS(procs)
		if got := ResolvePoolSize(0); got != want {
			t.Fatalf("GOMAXPROCS=%d: got %d, want %d", procs, got, want)
		}
	}
}
