package market

import (
	"math"
	"sort"
	"sync"
	"time"
)

// welford keeps a running mean and variance in constant space.
type welford struct {
	count int
	mean  float64
	m2    float64
}

func (w *welford) update(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *welford) stddev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count-1))
}

// ProviderStats summarises the outcomes and latency of one provider.
type ProviderStats struct {
	Name      string        `json:"name"`
	Successes int           `json:"successes"`
	Failures  int           `json:"failures"`
	MeanTime  time.Duration `json:"mean_latency"`
	StdDev    time.Duration `json:"stddev_latency"`
}

type providerStats struct {
	successes int
	failures  int
	latency   welford
}

type statsBook struct {
	mu    sync.Mutex
	books map[string]*providerStats
}

func newStatsBook() *statsBook {
	return &statsBook{books: make(map[string]*providerStats)}
}

func (s *statsBook) record(name string, ok bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, found := s.books[name]
	if !found {
		b = &providerStats{}
		s.books[name] = b
	}
	if ok {
		b.successes++
	} else {
		b.failures++
	}
	b.latency.update(elapsed.Seconds())
}

func (s *statsBook) snapshot() []ProviderStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ProviderStats, 0, len(s.books))
	for name, b := range s.books {
		out = append(out, ProviderStats{
			Name:      name,
			Successes: b.successes,
			Failures:  b.failures,
			MeanTime:  time.Duration(b.latency.mean * float64(time.Second)),
			StdDev:    time.Duration(b.latency.stddev() * float64(time.Second)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
