// Command loadtest exercises the dashboard backend's rate and series
// endpoints under concurrent load and reports latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

type loadTestConfig struct {
	BaseURL         string
	Base            string
	Symbols         string
	Range           string
	ConcurrentUsers int
	RequestsPerUser int
	Timeout         time.Duration
	RampUpDuration  time.Duration
	ThinkTime       time.Duration
}

type requestResult struct {
	StatusCode int
	Duration   time.Duration
	Success    bool
}

type loadTestSummary struct {
	TotalRequests       int
	SuccessfulRequests  int
	FailedRequests      int
	TotalDuration       time.Duration
	AverageResponseTime time.Duration
	MinResponseTime     time.Duration
	MaxResponseTime     time.Duration
	RequestsPerSecond   float64
	ErrorRate           float64
	ResponseTime95th    time.Duration
	ResponseTime99th    time.Duration
}

func main() {
	var cfg loadTestConfig

	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "Backend base URL")
	flag.StringVar(&cfg.Base, "base", "SGD", "Base currency")
	flag.StringVar(&cfg.Symbols, "symbols", "USD,EUR,JPY", "Comma-joined symbol list")
	flag.StringVar(&cfg.Range, "range", "1M", "Series range token")
	flag.IntVar(&cfg.ConcurrentUsers, "users", 10, "Number of concurrent users")
	flag.IntVar(&cfg.RequestsPerUser, "requests", 100, "Number of requests per user")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Request timeout")
	flag.DurationVar(&cfg.RampUpDuration, "rampup", 5*time.Second, "Ramp-up duration")
	flag.DurationVar(&cfg.ThinkTime, "think", 100*time.Millisecond, "Think time between requests")
	flag.Parse()

	fmt.Printf("Starting load test against %s\n", cfg.BaseURL)
	fmt.Printf("Users: %d, Requests per user: %d\n\n", cfg.ConcurrentUsers, cfg.RequestsPerUser)

	summary := runLoadTest(context.Background(), cfg)
	printSummary(summary)
}

// targets returns the request URLs a simulated user rotates through,
// mimicking a dashboard tab: a snapshot poll plus a chart fetch.
func targets(cfg loadTestConfig) []string {
	return []string{
		fmt.Sprintf("%s/api/v1/rates?base=%s&symbols=%s", cfg.BaseURL, cfg.Base, cfg.Symbols),
		fmt.Sprintf("%s/api/v1/series?base=%s&symbol=USD&range=%s", cfg.BaseURL, cfg.Base, cfg.Range),
		fmt.Sprintf("%s/api/v1/refresh", cfg.BaseURL),
	}
}

func runLoadTest(ctx context.Context, cfg loadTestConfig) loadTestSummary {
	results := make(chan requestResult, cfg.ConcurrentUsers*cfg.RequestsPerUser)
	client := &http.Client{Timeout: cfg.Timeout}
	urls := targets(cfg)

	startTime := time.Now()
	rampUpDelay := cfg.RampUpDuration / time.Duration(cfg.ConcurrentUsers)

	var wg sync.WaitGroup
	for userID := 0; userID < cfg.ConcurrentUsers; userID++ {
		wg.Add(1)
		go func(uid int) {
			defer wg.Done()
			time.Sleep(time.Duration(uid) * rampUpDelay)

			for reqID := 0; reqID < cfg.RequestsPerUser; reqID++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				results <- makeRequest(client, urls[reqID%len(urls)])

				if cfg.ThinkTime > 0 {
					time.Sleep(cfg.ThinkTime)
				}
			}
		}(userID)
	}

	wg.Wait()
	close(results)

	return processResults(results, time.Since(startTime))
}

func makeRequest(client *http.Client, url string) requestResult {
	start := time.Now()
	resp, err := client.Get(url)
	result := requestResult{Duration: time.Since(start)}
	if err != nil {
		return result
	}
	resp.Body.Close()
	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	return result
}

func processResults(results <-chan requestResult, totalDuration time.Duration) loadTestSummary {
	summary := loadTestSummary{TotalDuration: totalDuration}
	var responseTimes []time.Duration

	for result := range results {
		summary.TotalRequests++
		responseTimes = append(responseTimes, result.Duration)
		if result.Success {
			summary.SuccessfulRequests++
		} else {
			summary.FailedRequests++
		}
	}

	if summary.TotalRequests == 0 {
		return summary
	}

	summary.ErrorRate = float64(summary.FailedRequests) / float64(summary.TotalRequests) * 100
	summary.RequestsPerSecond = float64(summary.TotalRequests) / totalDuration.Seconds()

	sort.Slice(responseTimes, func(i, j int) bool { return responseTimes[i] < responseTimes[j] })
	summary.MinResponseTime = responseTimes[0]
	summary.MaxResponseTime = responseTimes[len(responseTimes)-1]

	var total time.Duration
	for _, rt := range responseTimes {
		total += rt
	}
	summary.AverageResponseTime = total / time.Duration(len(responseTimes))
	summary.ResponseTime95th = percentile(responseTimes, 95)
	summary.ResponseTime99th = percentile(responseTimes, 99)

	return summary
}

// percentile expects times sorted ascending.
func percentile(times []time.Duration, p int) time.Duration {
	index := int(float64(len(times)) * float64(p) / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

func printSummary(summary loadTestSummary) {
	fmt.Println("=== Load Test Results ===")
	fmt.Printf("Total Requests: %d\n", summary.TotalRequests)
	fmt.Printf("Successful Requests: %d\n", summary.SuccessfulRequests)
	fmt.Printf("Failed Requests: %d (%.2f%%)\n", summary.FailedRequests, summary.ErrorRate)
	fmt.Printf("Total Duration: %v\n", summary.TotalDuration)
	fmt.Printf("Requests per Second: %.2f\n", summary.RequestsPerSecond)
	fmt.Printf("Average Response Time: %v\n", summary.AverageResponseTime)
	fmt.Printf("Min Response Time: %v\n", summary.MinResponseTime)
	fmt.Printf("Max Response Time: %v\n", summary.MaxResponseTime)
	fmt.Printf("95th Percentile Response Time: %v\n", summary.ResponseTime95th)
	fmt.Printf("99th Percentile Response Time: %v\n", summary.ResponseTime99th)
}
