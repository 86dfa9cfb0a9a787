// Package stats provides a goroutine-safe metrics collector that aggregates
// results from many load test workers and prints a summary report with
// percentile distributions.
package stats

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Collector aggregates check outcomes. All methods are goroutine-safe.
type Collector struct {
	mu          sync.Mutex
	latencies   map[string][]time.Duration // by channel
	flagged     map[string]int             // by category
	requests    int
	cached      int
	rateLimited int
	errors      int
	startTime   time.Time
	scraper     *Scraper
}

// NewCollector creates a new Collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{
		latencies: make(map[string][]time.Duration),
		flagged:   make(map[string]int),
		startTime: time.Now(),
	}
}

// SetScraper attaches a Prometheus metrics scraper. When set, Report also
// prints the server-side metrics it collected.
func (c *Collector) SetScraper(s *Scraper) {
	c.mu.Lock()
	c.scraper = s
	c.mu.Unlock()
}

// AddCheck records a completed check on channel. category is empty for clean
// content.
func (c *Collector) AddCheck(channel string, d time.Duration, category string, cached bool) {
	c.mu.Lock()
	c.requests++
	c.latencies[channel] = append(c.latencies[channel], d)
	if category != "" {
		c.flagged[category]++
	}
	if cached {
		c.cached++
	}
	c.mu.Unlock()
}

// AddRateLimited records a 429 response.
func (c *Collector) AddRateLimited() {
	c.mu.Lock()
	c.requests++
	c.rateLimited++
	c.mu.Unlock()
}

// AddError increments the error counter.
func (c *Collector) AddError() {
	c.mu.Lock()
	c.requests++
	c.errors++
	c.mu.Unlock()
}

// RequestCount returns the number of requests recorded so far.
func (c *Collector) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

// ErrorCount returns the current number of recorded errors.
func (c *Collector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Report prints a summary of the collected results to stdout.
func (c *Collector) Report() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startTime)

	fmt.Println("\n=== Load Test Results ===")
	fmt.Printf("Duration:      %s\n", elapsed.Round(time.Second))
	fmt.Printf("Requests:      %d\n", c.requests)
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("Throughput:    %.1f req/s\n", float64(c.requests)/secs)
	}
	fmt.Printf("Rate limited:  %d\n", c.rateLimited)
	fmt.Printf("Cached:        %d\n", c.cached)
	fmt.Printf("Errors:        %d\n", c.errors)

	if c.requests > 0 {
		errorRate := float64(c.errors) / float64(c.requests) * 100
		fmt.Printf("Error rate:    %.2f%%\n", errorRate)
	}

	if len(c.flagged) > 0 {
		fmt.Println("\n--- Flags by Category ---")
		cats := make([]string, 0, len(c.flagged))
		for cat := range c.flagged {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		for _, cat := range cats {
			fmt.Printf("  %-16s %d\n", cat, c.flagged[cat])
		}
	}

	channels := make([]string, 0, len(c.latencies))
	for ch := range c.latencies {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		fmt.Printf("\n--- %s Latency ---\n", ch)
		fmt.Println("  " + Summarize(c.latencies[ch]).String())
	}

	if c.scraper != nil {
		c.scraper.Report()
	}

	fmt.Println()
}

// Summary is a percentile breakdown of a latency sample.
type Summary struct {
	N                       int
	Avg, P50, P95, P99, Max time.Duration
}

// Summarize sorts durations in place and computes its percentiles.
func Summarize(durations []time.Duration) Summary {
	n := len(durations)
	if n == 0 {
		return Summary{}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return Summary{
		N:   n,
		Avg: sum / time.Duration(n),
		P50: durations[n/2],
		P95: durations[int(math.Ceil(float64(n)*0.95))-1],
		P99: durations[int(math.Ceil(float64(n)*0.99))-1],
		Max: durations[n-1],
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("avg: %v  p50: %v  p95: %v  p99: %v  max: %v  (n=%d)",
		s.Avg.Round(time.Microsecond),
		s.P50.Round(time.Microsecond),
		s.P95.Round(time.Microsecond),
		s.P99.Round(time.Microsecond),
		s.Max.Round(time.Microsecond),
		s.N,
	)
}
