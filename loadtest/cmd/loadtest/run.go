package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pocketmarket/moderation/loadtest/client"
	"github.com/pocketmarket/moderation/loadtest/stats"
)

// Sample content. Roughly a third of each corpus violates policy so the
// flagged path and its side effects get exercised.
var (
	listingCorpus = []client.ListingRequest{
		{Title: "Road bike, 54cm", Description: "Shimano 105, new tires, pickup downtown."},
		{Title: "IKEA desk", Description: "White, some scratches. Must go this week."},
		{Title: "Nerf rifle", Description: "Kids toy, works great."},
		{Title: "Vintage camera", Description: "Film tested, includes strap and case."},
		{Title: "Handgun", Description: "Cash only."},
		{Title: "iPhone 13", Description: "Text me at 555-201-3344 for faster reply."},
		{Title: "Concert tickets", Description: "Wire transfer before meeting please."},
		{Title: "Sofa", Description: "Grey three-seater, pet free home."},
		{Title: "Lawn mower", Description: "Gas powered, starts first pull."},
	}

	messageCorpus = []string{
		"Is this still available?",
		"Can you do $40 if I pick up today?",
		"Sure, meet at the library at 5?",
		"Call me at 555-123-4567 when you are outside.",
		"Only western union please.",
		"Send gift card and I will ship it.",
		"Thanks, see you soon!",
		"Does it come with the charger?",
		"What's the lowest you'd take?",
	}
)

func runChecks(mode string, args []string) {
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	baseURL := fs.String("url", "http://localhost:8080", "Moderator base URL")
	rate := fs.Int("rate", 200, "Requests per second across all workers")
	duration := fs.Duration("duration", 30*time.Second, "Test duration")
	workers := fs.Int("workers", 32, "Concurrent workers")
	users := fs.Int("users", 1000, "Distinct user IDs to spread requests over")
	metricsURL := fs.String("metrics", "", "Prometheus endpoint to scrape (default <url>/metrics, \"off\" to disable)")
	fs.Parse(args)

	fmt.Printf("%s test: %d req/s for %s against %s (workers=%d, users=%d)\n",
		mode, *rate, *duration, *baseURL, *workers, *users)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	collector := stats.NewCollector()
	var scraper *stats.Scraper
	if *metricsURL != "off" {
		url := *metricsURL
		if url == "" {
			url = *baseURL + "/metrics"
		}
		scraper = stats.NewScraper(url, 2*time.Second)
		scraper.Start(ctx)
		collector.SetScraper(scraper)
	}

	c := client.New(*baseURL, *workers)
	jobs := make(chan int, *workers)

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for n := range jobs {
				user := fmt.Sprintf("load-%d", rng.Intn(*users))
				channel := mode
				if mode == "mixed" {
					channel = "listings"
					if n%2 == 1 {
						channel = "messages"
					}
				}
				send(ctx, c, collector, channel, user, rng)
			}
		}(time.Now().UnixNano() + int64(w))
	}

	// Progress reporting every second.
	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		last := 0
		for {
			select {
			case <-ticker.C:
				n := collector.RequestCount()
				fmt.Printf("  [run] requests: %d  errors: %d  rate: %d req/s\n",
					n, collector.ErrorCount(), n-last)
				last = n
			case <-progressDone:
				return
			}
		}
	}()

	interval := time.Second / time.Duration(max(*rate, 1))
	ticker := time.NewTicker(interval)
	n := 0
dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case <-ticker.C:
			select {
			case jobs <- n:
				n++
			default:
				// Workers saturated; the dropped tick shows up as lower throughput.
			}
		}
	}
	ticker.Stop()
	close(jobs)
	wg.Wait()
	close(progressDone)
	if scraper != nil {
		scraper.Stop()
	}

	collector.Report()
}

func send(ctx context.Context, c *client.Client, collector *stats.Collector, channel, user string, rng *rand.Rand) {
	var (
		out client.Outcome
		err error
	)
	switch channel {
	case "listings":
		req := listingCorpus[rng.Intn(len(listingCorpus))]
		req.UserID = user
		out, err = c.CheckListing(ctx, req)
	default:
		out, err = c.CheckMessage(ctx, client.MessageRequest{
			UserID: user,
			Text:   messageCorpus[rng.Intn(len(messageCorpus))],
		})
	}

	switch {
	case ctx.Err() != nil:
		// Requests cut off by the end of the run are not counted.
	case err != nil:
		collector.AddError()
	case out.Status == http.StatusTooManyRequests:
		collector.AddRateLimited()
	case out.Status != http.StatusOK:
		collector.AddError()
	default:
		collector.AddCheck(channel, out.Latency, out.Result.Category, out.Result.Cached)
	}
}
