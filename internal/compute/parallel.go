package compute

import (
	"runtime"
	"sync"
)

// Workers is the default fan-out for data-parallel loops.
var Workers = runtime.NumCPU()

// ParallelFor executes fn in parallel over the range [0, n), split into at
// most workers contiguous spans of at least minChunk elements.
func ParallelFor(n, minChunk, workers int, fn func(start, end int)) {
	if workers <= 0 {
		workers = Workers
	}
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}

	if minChunk > 0 && n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ForEachChunk splits [0, n) into fixed spans of chunk elements and runs fn on
// each from a pool of workers. Chunk boundaries depend only on n and chunk, so
// per-chunk state derived from the index is independent of the worker count.
// The first error by chunk index is returned.
func ForEachChunk(n, chunk, workers int, fn func(index, start, end int) error) error {
	if chunk <= 0 {
		chunk = n
	}
	if workers <= 0 {
		workers = Workers
	}
	chunks := 0
	if n > 0 {
		chunks = (n + chunk - 1) / chunk
	}
	if chunks == 0 {
		return nil
	}
	if workers > chunks {
		workers = chunks
	}

	errs := make([]error, chunks)
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				start := idx * chunk
				end := start + chunk
				if end > n {
					end = n
				}
				errs[idx] = fn(idx, start, end)
			}
		}()
	}

	for idx := 0; idx < chunks; idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
