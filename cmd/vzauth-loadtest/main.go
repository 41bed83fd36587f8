// Command vzauth-loadtest drives many device managers against an in-process
// mock backend and reports per-phase latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	vzauth "github.com/vocalizeai/vzauth"
	"github.com/vocalizeai/vzauth/internal/mockapi"
	"github.com/vocalizeai/vzauth/token"
)

const devicePassword = "loadtest1"

type device struct {
	email   string
	manager *vzauth.Manager
	mu      sync.Mutex
}

func main() {
	var (
		devices     = flag.Int("devices", 200, "number of simulated devices, each with its own manager")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (refresh, profile, relaunch)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "vzload", "credential key prefix")
	)
	flag.Parse()

	if *devices <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "devices, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	secret := []byte("loadtest-secret")
	backend, err := mockapi.New(mockapi.Options{Secret: secret, TokenTTL: time.Hour})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock api: %v\n", err)
		os.Exit(1)
	}
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	fleet := make([]*device, *devices)
	fmt.Printf("building %d devices...\n", *devices)
	startSeed := time.Now()
	for i := range fleet {
		email := fmt.Sprintf("device-%d@load.test", i)
		if _, err := backend.AddUser(email, devicePassword, token.RoleUser, true); err != nil {
			fmt.Fprintf(os.Stderr, "seed user failed: %v\n", err)
			os.Exit(1)
		}
		m, err := buildManager(client, srv.URL, fmt.Sprintf("%s:%d", *prefix, i), secret)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build manager failed: %v\n", err)
			os.Exit(1)
		}
		fleet[i] = &device{email: email, manager: m}
	}
	defer func() {
		for _, d := range fleet {
			d.manager.Close()
		}
	}()
	fmt.Printf("built in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runLoginPhase(ctx, fleet, *concurrency)
	refreshStats := runPhase(fleet, *ops, *concurrency, 6151, func(d *device) error {
		return d.manager.Refresh(ctx)
	})
	profileStats := runPhase(fleet, *ops, *concurrency, 7919, func(d *device) error {
		_, _, err := d.manager.Profile(ctx)
		return err
	})
	relaunchStats := runPhase(fleet, *ops, *concurrency, 104729, func(d *device) error {
		return d.manager.CheckToken(ctx)
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("refresh", refreshStats)
	printStats("profile", profileStats)
	printStats("relaunch", relaunchStats)
	printCounters(fleet)
}

func buildManager(client redis.UniversalClient, baseURL, prefix string, secret []byte) (*vzauth.Manager, error) {
	cfg := vzauth.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.Store.KeyPrefix = prefix
	cfg.Token.VerifySigningMethod = string(token.MethodHS256)
	cfg.Token.VerifyKey = secret
	cfg.Notifications.Enabled = false
	return vzauth.New().WithConfig(cfg).WithRedis(client).Build()
}

func runLoginPhase(ctx context.Context, fleet []*device, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(fleet))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(fleet) {
					return
				}
				d := fleet[i]
				t0 := time.Now()
				res := d.manager.Login(ctx, d.email, devicePassword)
				dur := time.Since(t0)
				if _, ok := res.(vzauth.LoginSucceeded); !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, dur)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runPhase runs ops calls of fn against random devices. Calls on one
// device are serialized, as they would be on a real handset.
func runPhase(fleet []*device, ops, concurrency int, seed int64, fn func(*device) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				d := fleet[r.Intn(len(fleet))]

				d.mu.Lock()
				t0 := time.Now()
				err := fn(d)
				dur := time.Since(t0)
				d.mu.Unlock()

				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, dur)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func printCounters(fleet []*device) {
	totals := make(map[vzauth.MetricID]uint64)
	for _, d := range fleet {
		for id, v := range d.manager.MetricsSnapshot().Counters {
			totals[id] += v
		}
	}
	fmt.Printf("counters: login_success=%d refresh_success=%d refresh_failure=%d profile_network=%d profile_cache=%d\n",
		totals[vzauth.MetricLoginSuccess],
		totals[vzauth.MetricRefreshSuccess],
		totals[vzauth.MetricRefreshFailure],
		totals[vzauth.MetricProfileNetwork],
		totals[vzauth.MetricProfileCache],
	)
}
