package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var sampleTexts = []string{
	"The save button on the medication screen does nothing when pressed",
	"Discharge letters print with the header misaligned on every page",
	"The handover list takes over thirty seconds to load each morning",
	"Search on the observations tab returns results for the wrong day",
}

func main() {
	targetURL := flag.String("url", "http://localhost:8080/v1/feedback", "Target URL for feedback submission")
	token := flag.String("token", "", "Bearer token for authentication")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 100, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var acceptedCount, backpressureCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for n := 0; ; n++ {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx) // Wait for token from rate limiter

					eventID := uuid.NewString()
					text := sampleTexts[n%len(sampleTexts)]
					payload := fmt.Sprintf(`{"event_id": "%s", "module": "load-test", "severity": "low", "text": "%s (worker %d)", "consents": {"improvement_processing": true}}`,
						eventID, text, workerID)

					req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewBufferString(payload))
					if err != nil {
						continue // Should not happen
					}
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("Authorization", "Bearer "+*token)

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					switch resp.StatusCode {
					case http.StatusAccepted:
						acceptedCount.Add(1)
					case http.StatusTooManyRequests:
						backpressureCount.Add(1)
					default:
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := acceptedCount.Load() + backpressureCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Accepted (202): %d", acceptedCount.Load())
	log.Printf("Backpressure (429): %d", backpressureCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
