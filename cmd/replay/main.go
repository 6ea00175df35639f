// Replay tool for testing Tierkit against recorded cart fixtures.
//
// Usage:
//
//	go run cmd/replay/main.go -file /path/to/carts.jsonl -url http://localhost:8080
//
// This tool:
//  1. Reads a JSON-lines file of cart fixtures (optionally labeled with the
//     expected evaluation status)
//  2. Sends each cart to Tierkit for evaluation
//  3. Compares Tierkit's status (APPLIED/SKIPPED) with the expected labels
//  4. Reports hit rates, gift counts, latency, and throughput
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ReplayCase is one line of the fixture file. The cart and discount blobs are
// forwarded verbatim so fixtures can exercise malformed configurations.
type ReplayCase struct {
	Cart      json.RawMessage `json:"cart"`
	ProductID string          `json:"productId,omitempty"`
	Discount  json.RawMessage `json:"discount,omitempty"`
	Expect    string          `json:"expect,omitempty"`
}

// EvaluateResponse is the subset of the Tierkit API response the tool reads.
type EvaluateResponse struct {
	EvaluationID string `json:"evaluationId"`
	Status       string `json:"status"`
	Batch        struct {
		Operations []struct {
			ProductDiscountsAdd *struct {
				Candidates []struct {
					Message string `json:"message"`
				} `json:"candidates"`
			} `json:"productDiscountsAdd"`
		} `json:"operations"`
	} `json:"batch"`
}

// Metrics tracks replay results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64

	Applied    int64
	Skipped    int64
	Candidates int64
	Gifts      int64

	Labeled    int64
	Matches    int64
	Mismatches int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	filePath := flag.String("file", "", "Path to JSON-lines cart fixture file")
	baseURL := flag.String("url", "http://localhost:8080", "Tierkit base URL")
	shopID := flag.String("shop", "replay-test", "Shop ID for requests")
	limit := flag.Int("limit", 0, "Maximum carts to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each cart result")
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: replay -file /path/to/carts.jsonl [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║              TIERKIT REPLAY - Cart Fixture Runner             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nFixture File: %s\n", *filePath)
	fmt.Printf("Tierkit URL:  %s\n", *baseURL)
	fmt.Printf("Shop ID:      %s\n", *shopID)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Println()

	// Check Tierkit is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Tierkit not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Tierkit is running:")
		fmt.Println("  go run cmd/tierkit/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Tierkit is healthy")

	// Read fixtures
	fmt.Printf("\nReading cart fixtures from %s...\n", *filePath)
	cases, err := readFixtures(*filePath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read fixtures: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d carts\n", len(cases))

	// Run replay
	fmt.Printf("\nRunning replay with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runReplay(cases, *baseURL, *shopID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readFixtures(path string, limit int) ([]ReplayCase, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cases []ReplayCase
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var c ReplayCase
		if err := json.Unmarshal(line, &c); err != nil {
			continue // Skip malformed lines
		}
		cases = append(cases, c)

		if limit > 0 && len(cases) >= limit {
			break
		}
	}

	return cases, scanner.Err()
}

func runReplay(cases []ReplayCase, baseURL, shopID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan ReplayCase, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := evaluateCart(client, baseURL, shopID, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v\n", err)
					}
					continue
				}

				candidates, gifts := countCandidates(result)
				atomic.AddInt64(&metrics.Candidates, int64(candidates))
				atomic.AddInt64(&metrics.Gifts, int64(gifts))

				if result.Status == "APPLIED" {
					atomic.AddInt64(&metrics.Applied, 1)
				} else {
					atomic.AddInt64(&metrics.Skipped, 1)
				}

				matched := true
				if c.Expect != "" {
					atomic.AddInt64(&metrics.Labeled, 1)
					matched = result.Status == c.Expect
					if matched {
						atomic.AddInt64(&metrics.Matches, 1)
					} else {
						atomic.AddInt64(&metrics.Mismatches, 1)
					}
				}

				if verbose {
					status := "✓"
					if !matched {
						status = "✗"
					}
					fmt.Printf("%s %-36s | Status: %-7s | Candidates: %2d | Gifts: %d | %dms\n",
						status,
						result.EvaluationID,
						result.Status,
						candidates,
						gifts,
						elapsed,
					)
				}
			}
		}()
	}

	// Send work
	for _, c := range cases {
		work <- c
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func evaluateCart(client *http.Client, baseURL, shopID string, c ReplayCase) (*EvaluateResponse, error) {
	req := map[string]interface{}{
		"cart": c.Cart,
	}
	if c.ProductID != "" {
		req["productId"] = c.ProductID
	}
	if len(c.Discount) > 0 {
		req["discount"] = c.Discount
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shop-ID", shopID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func countCandidates(r *EvaluateResponse) (candidates, gifts int) {
	for _, op := range r.Batch.Operations {
		if op.ProductDiscountsAdd == nil {
			continue
		}
		for _, c := range op.ProductDiscountsAdd.Candidates {
			candidates++
			if c.Message == "FREE GIFT" {
				gifts++
			}
		}
	}
	return candidates, gifts
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        REPLAY RESULTS                         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 CART STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Applied:          %d\n", m.Applied)
	fmt.Printf("   Skipped:          %d\n", m.Skipped)
	fmt.Printf("   Candidates:       %d\n", m.Candidates)
	fmt.Printf("   Gifts:            %d\n", m.Gifts)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	if m.TotalProcessed > 0 {
		applyRate := float64(m.Applied) / float64(m.TotalProcessed) * 100
		fmt.Printf("\n🎯 DISCOUNT HIT RATE\n")
		fmt.Printf("   Applied:  %d / %d (%.2f%%)\n", m.Applied, m.TotalProcessed, applyRate)
	}

	if m.Labeled > 0 {
		matchRate := float64(m.Matches) / float64(m.Labeled) * 100
		fmt.Printf("\n🔍 LABEL ANALYSIS\n")
		fmt.Printf("   Labeled Carts:     %d\n", m.Labeled)
		fmt.Printf("   Matches:           %d (%.2f%%)\n", m.Matches, matchRate)
		fmt.Printf("   Mismatches:        %d\n", m.Mismatches)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f carts/sec\n", cps)
	}

	if m.Labeled > 0 {
		fmt.Printf("\n💡 INTERPRETATION\n")
		matchRate := float64(m.Matches) / float64(m.Labeled)
		switch {
		case m.Mismatches == 0:
			fmt.Println("   ✅ All labeled carts matched their expected status")
		case matchRate >= 0.95:
			fmt.Println("   ⚠️  A few labeled carts diverged - check configuration drift")
		default:
			fmt.Println("   ❌ Significant divergence from expected statuses")
		}
	}

	fmt.Println()
}
