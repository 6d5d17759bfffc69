package scanner

import (
	"sync/atomic"
	"time"
)

type Stats struct {
	Total        int64
	Processed    int64
	Found        int64
	Suppressed   int64
	Errors       int64
	WAFHits      int64
	Expansions   int64
	PeakInFlight int64
	StartTime    time.Time

	inFlight  int64
	startTime int64
	endTime   int64
}

func NewStats(initialTotal int64) *Stats {
	s := &Stats{Total: initialTotal}
	s.begin()
	return s
}

// begin restarts the clock. StartTime must not be read until Run returns.
func (s *Stats) begin() {
	now := time.Now()
	s.StartTime = now
	atomic.StoreInt64(&s.startTime, now.UnixNano())
	atomic.StoreInt64(&s.endTime, 0)
}

func (s *Stats) IncrementProcessed() {
	atomic.AddInt64(&s.Processed, 1)
}

func (s *Stats) IncrementFound() {
	atomic.AddInt64(&s.Found, 1)
}

func (s *Stats) IncrementSuppressed() {
	atomic.AddInt64(&s.Suppressed, 1)
}

func (s *Stats) IncrementErrors() {
	atomic.AddInt64(&s.Errors, 1)
}

func (s *Stats) IncrementWAFHits() {
	atomic.AddInt64(&s.WAFHits, 1)
}

func (s *Stats) IncrementExpansions() {
	atomic.AddInt64(&s.Expansions, 1)
}

func (s *Stats) IncrementTotal(delta int64) {
	atomic.AddInt64(&s.Total, delta)
}

func (s *Stats) enter() {
	n := atomic.AddInt64(&s.inFlight, 1)
	for {
		peak := atomic.LoadInt64(&s.PeakInFlight)
		if n <= peak || atomic.CompareAndSwapInt64(&s.PeakInFlight, peak, n) {
			return
		}
	}
}

func (s *Stats) leave() {
	atomic.AddInt64(&s.inFlight, -1)
}

func (s *Stats) GetProcessed() int64 {
	return atomic.LoadInt64(&s.Processed)
}

func (s *Stats) GetFound() int64 {
	return atomic.LoadInt64(&s.Found)
}

func (s *Stats) GetSuppressed() int64 {
	return atomic.LoadInt64(&s.Suppressed)
}

func (s *Stats) GetErrors() int64 {
	return atomic.LoadInt64(&s.Errors)
}

func (s *Stats) GetWAFHits() int64 {
	return atomic.LoadInt64(&s.WAFHits)
}

func (s *Stats) GetExpansions() int64 {
	return atomic.LoadInt64(&s.Expansions)
}

func (s *Stats) GetTotal() int64 {
	return atomic.LoadInt64(&s.Total)
}

func (s *Stats) GetInFlight() int64 {
	return atomic.LoadInt64(&s.inFlight)
}

func (s *Stats) GetPeakInFlight() int64 {
	return atomic.LoadInt64(&s.PeakInFlight)
}

func (s *Stats) finish() {
	atomic.StoreInt64(&s.endTime, time.Now().UnixNano())
}

// Elapsed stops growing once the run has finished.
func (s *Stats) Elapsed() time.Duration {
	start := time.Unix(0, atomic.LoadInt64(&s.startTime))
	if end := atomic.LoadInt64(&s.endTime); end != 0 {
		return time.Unix(0, end).Sub(start)
	}
	return time.Since(start)
}
