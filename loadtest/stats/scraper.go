// Package stats: scraper.go periodically fetches the moderator's Prometheus
// metrics during a load test and records snapshots for post-test reporting.
package stats

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// metricSnapshot holds the values of all tracked server metrics at a point in
// time. Labeled counters are summed across their label values.
type metricSnapshot struct {
	timestamp    time.Time
	checksTotal  float64
	flagsTotal   float64
	rateLimited  float64
	cacheHits    float64
	cacheMisses  float64
	sideEffects  float64
	latencySum   float64
	latencyCount float64
}

// Scraper polls the moderator's /metrics endpoint on an interval and keeps
// every snapshot for the final report.
type Scraper struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu        sync.Mutex
	snapshots []metricSnapshot

	stop    context.CancelFunc
	stopped chan struct{}
}

// NewScraper returns a Scraper for metricsURL. Call Start to begin polling.
func NewScraper(metricsURL string, interval time.Duration) *Scraper {
	return &Scraper{
		url:      metricsURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		stopped:  make(chan struct{}),
	}
}

// Start records a baseline snapshot and then polls until ctx ends or Stop is
// called. A last snapshot is taken on the way out.
func (s *Scraper) Start(ctx context.Context) {
	ctx, s.stop = context.WithCancel(ctx)
	s.record(ctx)

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.record(context.Background())
				return
			case <-ticker.C:
				s.record(ctx)
			}
		}
	}()
}

// Stop ends polling and waits for the final snapshot.
func (s *Scraper) Stop() {
	if s.stop == nil {
		return
	}
	s.stop()
	<-s.stopped
}

// record appends one snapshot. Scrape failures are dropped; the server may
// still be starting.
func (s *Scraper) record(ctx context.Context) {
	snap, err := s.scrape(ctx)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()
}

func (s *Scraper) scrape(ctx context.Context) (metricSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return metricSnapshot{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return metricSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return metricSnapshot{}, fmt.Errorf("metrics: status %d", resp.StatusCode)
	}
	return parseExposition(bufio.NewScanner(resp.Body), time.Now())
}

// parseExposition folds Prometheus text exposition lines into a snapshot.
func parseExposition(sc *bufio.Scanner, at time.Time) (metricSnapshot, error) {
	snap := metricSnapshot{timestamp: at}
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		name, labels, value, ok := parseSample(line)
		if !ok {
			continue
		}

		switch name {
		case "moderation_checks_total":
			snap.checksTotal += value
		case "moderation_flags_total":
			snap.flagsTotal += value
		case "moderation_rate_limited_total":
			snap.rateLimited += value
		case "moderation_verdict_cache_lookups_total":
			switch labels["result"] {
			case "hit":
				snap.cacheHits += value
			case "miss":
				snap.cacheMisses += value
			}
		case "moderation_side_effect_errors_total":
			snap.sideEffects += value
		case "moderation_check_latency_seconds_sum":
			snap.latencySum += value
		case "moderation_check_latency_seconds_count":
			snap.latencyCount += value
		}
	}
	return snap, sc.Err()
}

// parseSample splits a sample line such as
//
//	moderation_flags_total{category="scam",channel="message"} 4
//
// into its name, labels and value. Label values containing commas or escaped
// quotes are not supported; the moderator never emits them.
func parseSample(line string) (name string, labels map[string]string, value float64, ok bool) {
	rest := line
	if open := strings.IndexByte(line, '{'); open != -1 {
		end := strings.IndexByte(line[open:], '}')
		if end == -1 {
			return "", nil, 0, false
		}
		name = line[:open]
		labels = make(map[string]string)
		for _, pair := range strings.Split(line[open+1:open+end], ",") {
			k, v, found := strings.Cut(pair, "=")
			if !found {
				continue
			}
			labels[strings.TrimSpace(k)] = strings.Trim(v, `"`)
		}
		rest = line[open+end+1:]
	} else {
		var found bool
		name, rest, found = strings.Cut(line, " ")
		if !found {
			return "", nil, 0, false
		}
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return "", nil, 0, false
	}
	return name, labels, v, true
}

// Report prints a summary of the server-side metrics collected during the load
// test. For each counter it shows the initial value, final value, delta and
// average rate.
func (s *Scraper) Report() {
	s.mu.Lock()
	snaps := make([]metricSnapshot, len(s.snapshots))
	copy(snaps, s.snapshots)
	s.mu.Unlock()

	if len(snaps) == 0 {
		fmt.Println("\n--- Server Metrics (no data collected) ---")
		return
	}

	first := snaps[0]
	last := snaps[len(snaps)-1]

	fmt.Println("\n--- Server Metrics (Prometheus) ---")
	fmt.Printf("  Scrape count:  %d snapshots over %s\n",
		len(snaps), last.timestamp.Sub(first.timestamp).Round(time.Second))

	type counter struct {
		label   string
		initial float64
		final   float64
	}

	counters := []counter{
		{"Checks", first.checksTotal, last.checksTotal},
		{"Flags", first.flagsTotal, last.flagsTotal},
		{"Rate Limited", first.rateLimited, last.rateLimited},
		{"Cache Hits", first.cacheHits, last.cacheHits},
		{"Cache Misses", first.cacheMisses, last.cacheMisses},
		{"Side Effect Err", first.sideEffects, last.sideEffects},
	}

	fmt.Println()
	fmt.Printf("  %-16s %10s %10s %10s %10s\n", "Metric", "Initial", "Final", "Delta", "Per Sec")
	fmt.Printf("  %-16s %10s %10s %10s %10s\n", "------", "-------", "-----", "-----", "-------")
	span := last.timestamp.Sub(first.timestamp).Seconds()
	for _, c := range counters {
		delta := c.final - c.initial
		rate := 0.0
		if span > 0 {
			rate = delta / span
		}
		fmt.Printf("  %-16s %10.0f %10.0f %10.0f %10.1f\n",
			c.label, c.initial, c.final, delta, rate)
	}

	fmt.Printf("  %-16s %10.0f\n", "Peak Checks/Int", peakDelta(snaps, func(s metricSnapshot) float64 { return s.checksTotal }))

	// Histogram averages.
	fmt.Println()
	printHistogramAvg("Check Latency", first.latencySum, first.latencyCount,
		last.latencySum, last.latencyCount)
}

// printHistogramAvg prints the average computed from histogram _sum/_count
// deltas between the first and last snapshot.
func printHistogramAvg(label string, sumFirst, countFirst, sumLast, countLast float64) {
	deltaSum := sumLast - sumFirst
	deltaCount := countLast - countFirst
	if deltaCount > 0 {
		avg := deltaSum / deltaCount
		fmt.Printf("  %-16s avg: %.1fµs  (%.0f observations)\n", label, avg*1e6, deltaCount)
	} else {
		fmt.Printf("  %-16s avg: N/A  (no observations)\n", label)
	}
}

// peakDelta returns the largest increase of a counter between two consecutive
// snapshots.
func peakDelta(snaps []metricSnapshot, extract func(metricSnapshot) float64) float64 {
	peak := math.Inf(-1)
	for i := 1; i < len(snaps); i++ {
		if d := extract(snaps[i]) - extract(snaps[i-1]); d > peak {
			peak = d
		}
	}
	if math.IsInf(peak, -1) {
		return 0
	}
	return peak
}
