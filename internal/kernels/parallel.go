package kernels

import (
	"runtime"
	"sync"
)

// parallelFor runs fn over [0, n) split into contiguous chunks across at most
// GOMAXPROCS goroutines. Workloads smaller than minPerWorker per chunk run
// serially; task dispatch overhead dominates below that.
func parallelFor(n, minPerWorker int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if minPerWorker < 1 {
		minPerWorker = 1
	}
	if maxUseful := (n + minPerWorker - 1) / minPerWorker; workers > maxUseful {
		workers = maxUseful
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
