package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"turnero/client"
	"turnero/pkg/constraints"
)

// Configuration
var (
	apiBase   = flag.String("api", constraints.DefaultAPIBase, "API base URL of the auth stub")
	email     = flag.String("email", "admin@turnero.local", "account email")
	password  = flag.String("password", "admin123", "account password")
	totalVUs  = flag.Int("c", 50, "concurrent session clients")
	rampUp    = flag.Duration("ramp", 20*time.Second, "ramp up duration; logins are rate limited per IP")
	duration  = flag.Duration("d", 3*time.Minute, "how long each client keeps polling")
	pollEvery = flag.Duration("poll", 500*time.Millisecond, "interval between protected requests per client")
	resource  = flag.String("path", constraints.PathTurnos, "protected path polled by every client")
)

// Metrics
var (
	activeClients int64
	loginErrors   int64
	requests      int64
	requestErrors int64
	renewals      int64
	renewalErrors int64
	replays       int64
	logouts       int64
	latencySum    int64 // microseconds
	latencyCount  int64
)

// counter is a client.Observer feeding the global counters.
type counter struct{}

func (counter) ObserveRenewal(_ string, err error, elapsed time.Duration) {
	atomic.AddInt64(&renewals, 1)
	if err != nil {
		atomic.AddInt64(&renewalErrors, 1)
	}
	atomic.AddInt64(&latencySum, elapsed.Microseconds())
	atomic.AddInt64(&latencyCount, 1)
}

func (counter) RecordRetry(bool)                 { atomic.AddInt64(&replays, 1) }
func (counter) RecordLogout(client.LogoutReason) { atomic.AddInt64(&logouts, 1) }
func (counter) SetState(client.State)            {}

func main() {
	flag.Parse()

	fmt.Printf("Starting session load test\n")
	fmt.Printf("   API: %s\n", *apiBase)
	fmt.Printf("   VUs: %d\n", *totalVUs)
	fmt.Printf("   Ramp: %v, Duration: %v\n", *rampUp, *duration)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = *totalVUs
	transport.MaxIdleConnsPerHost = *totalVUs
	hc := &http.Client{Transport: transport, Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go report(ctx)

	interval := *rampUp / time.Duration(max(*totalVUs, 1))
	for i := 0; i < *totalVUs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(ctx, id, hc)
		}(i)
		time.Sleep(interval)
	}

	fmt.Println("All VUs launched. Waiting...")
	wg.Wait()
	cancel()
	printLine("final")
}

func runClient(ctx context.Context, id int, hc *http.Client) {
	c := client.NewSessionClient(*apiBase, client.NewMemoryStore(),
		client.WithHTTPClient(hc),
		client.WithObserver(counter{}),
	)
	defer c.Close()

	if err := c.Login(ctx, *email, *password); err != nil {
		atomic.AddInt64(&loginErrors, 1)
		fmt.Printf("Client %d login error: %v\n", id, err)
		return
	}
	atomic.AddInt64(&activeClients, 1)
	defer atomic.AddInt64(&activeClients, -1)

	deadline := time.After(*duration)
	ticker := time.NewTicker(*pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			atomic.AddInt64(&requests, 1)
			if err := c.GetJSON(ctx, *resource, nil); err != nil {
				atomic.AddInt64(&requestErrors, 1)
				if errors.Is(err, client.ErrUnauthorized) && c.State() == client.Unauthenticated {
					fmt.Printf("Client %d lost its session: %v\n", id, err)
					return
				}
			}
		}
	}
}

func report(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printLine(time.Now().Format("15:04:05"))
		}
	}
}

func printLine(label string) {
	latSum := atomic.LoadInt64(&latencySum)
	latCnt := atomic.LoadInt64(&latencyCount)
	avgLat := float64(0)
	if latCnt > 0 {
		avgLat = float64(latSum) / float64(latCnt) / 1000
	}
	fmt.Printf("[%s] Active: %d | LoginErr: %d | Req: %d | ReqErr: %d | Renewals: %d (err %d, avg %.2f ms) | Replays: %d | Logouts: %d\n",
		label,
		atomic.LoadInt64(&activeClients),
		atomic.LoadInt64(&loginErrors),
		atomic.LoadInt64(&requests),
		atomic.LoadInt64(&requestErrors),
		atomic.LoadInt64(&renewals),
		atomic.LoadInt64(&renewalErrors),
		avgLat,
		atomic.LoadInt64(&replays),
		atomic.LoadInt64(&logouts),
	)
}
