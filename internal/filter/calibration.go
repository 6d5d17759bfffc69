package filter

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Signature describes the baseline response a target returns for paths
// that cannot exist.
type Signature struct {
	StatusCode int
	Bytes      int
	Words      int
	Lines      int
}

type CalibrationCache struct {
	mu         sync.RWMutex
	signatures map[string][]Signature
}

func NewCalibrationCache() *CalibrationCache {
	return &CalibrationCache{
		signatures: make(map[string][]Signature),
	}
}

func (c *CalibrationCache) Get(key string) ([]Signature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sigs, ok := c.signatures[key]
	return sigs, ok
}

func (c *CalibrationCache) Add(key string, sigs ...Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signatures[key] = append(c.signatures[key], sigs...)
}

// Suppresses reports whether an outcome for key looks like its baseline.
func (c *CalibrationCache) Suppresses(key string, statusCode int, counts Counts) bool {
	sigs, ok := c.Get(key)
	if !ok {
		return false
	}
	return MatchesSignature(statusCode, counts, sigs)
}

var calRng = struct {
	mu  sync.Mutex
	rng *rand.Rand
}{
	rng: rand.New(rand.NewSource(time.Now().UnixNano())),
}

func calRandIntn(n int) int {
	calRng.mu.Lock()
	defer calRng.mu.Unlock()
	return calRng.rng.Intn(n)
}

// Prober performs one exchange for word against the calibrated template.
type Prober func(ctx context.Context, word string) (Response, error)

// Calibrate probes three random words and records their signatures under
// key. Failed probes are skipped.
func Calibrate(ctx context.Context, key string, probe Prober, cache *CalibrationCache) ([]Signature, error) {
	words := []string{
		fmt.Sprintf("burrow_cal_%d", calRandIntn(999999)),
		fmt.Sprintf("nonexistent_%d", calRandIntn(999999)),
		fmt.Sprintf("%d_missing.html", calRandIntn(999999)),
	}

	signatures := make([]Signature, 0, len(words))
	var lastErr error
	for _, word := range words {
		if err := ctx.Err(); err != nil {
			return signatures, err
		}
		resp, err := probe(ctx, word)
		if err != nil {
			lastErr = err
			continue
		}
		counts := Count(resp.Body)
		signatures = append(signatures, Signature{
			StatusCode: resp.StatusCode,
			Bytes:      counts.Bytes,
			Words:      counts.Words,
			Lines:      counts.Lines,
		})
	}

	if len(signatures) == 0 && lastErr != nil {
		return nil, fmt.Errorf("calibration failed for %s: %w", key, lastErr)
	}

	cache.Add(key, signatures...)
	return signatures, nil
}

// MatchesSignature compares status and size, tolerating 5% size drift for
// pages that reflect the requested path.
func MatchesSignature(statusCode int, counts Counts, signatures []Signature) bool {
	for _, sig := range signatures {
		if statusCode != sig.StatusCode {
			continue
		}
		if sig.Bytes == 0 {
			if counts.Bytes == 0 {
				return true
			}
			continue
		}
		sizeDiff := float64(abs(counts.Bytes-sig.Bytes)) / float64(sig.Bytes)
		if sizeDiff < 0.05 {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
