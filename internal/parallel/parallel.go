// Package parallel fans CPU kernel work out across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum work items per goroutine.
}

// DefaultConfig returns defaults based on CPU count.
//
// MinChunkSize is 1 because the kernels hand out whole feature-map
// planes, each of which is already thousands of multiply-adds.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// Sequential returns a Config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// For executes f(i) for i in [0, n).
// It runs sequentially when parallelism is disabled or n is below
// MinChunkSize, and otherwise splits [0, n) into contiguous chunks.
func For(n int, f func(i int), cfg Config) {
	workers := cfg.NumWorkers
	minChunk := max(cfg.MinChunkSize, 1)
	if !cfg.Enabled || workers <= 1 || n < 2*minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunkSize := max((n+workers-1)/workers, minChunk)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForPlanes runs f once per (batch, plane) pair of an NCHW tensor, where
// a plane is a channel or a channel group.
func ForPlanes(batch, planes int, f func(n, p int), cfg Config) {
	For(batch*planes, func(k int) {
		f(k/planes, k%planes)
	}, cfg)
}
