// Command gosession-loadtest drives many controllers against the development
// session API and reports login, forced-logout propagation and logout
// latencies.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/fakeserver"
)

type client struct {
	username   string
	controller *goSession.Controller
	loggedOut  chan struct{}
	once       sync.Once
	armed      atomic.Bool
}

func (c *client) Navigate(_ context.Context, page goSession.Page) {
	if page == goSession.PageLogin && c.armed.Load() {
		c.once.Do(func() { close(c.loggedOut) })
	}
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of accounts, one controller each")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		redisAddr   = flag.String("redis-addr", "", "redis address for the session registry; if empty, REDIS_ADDR env or miniredis is used")
		timeout     = flag.Duration("timeout", 10*time.Second, "per-operation timeout")
		verbose     = flag.Bool("v", false, "log controller output")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and timeout must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	logger := logr.Discard()
	if *verbose {
		logger = stdr.New(log.New(os.Stderr, "loadtest: ", log.LstdFlags))
	}

	accounts := make([]fakeserver.User, *users)
	for i := range accounts {
		accounts[i] = fakeserver.User{
			Username: fmt.Sprintf("user-%d", i),
			Password: fmt.Sprintf("pw-%d", i),
			Role:     goSession.RoleUser,
		}
	}

	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	srv, err := fakeserver.New(fakeserver.Options{
		Users:       accounts,
		Redis:       rdb,
		RedisPrefix: fmt.Sprintf("loadtest-%d", time.Now().UnixNano()),
		Hash:        fakeserver.HashParams{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		Logger:      logger.WithName("server"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeserver: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	clients := make([]*client, *users)
	for i := range clients {
		c, err := newClient(ts.URL, accounts[i].Username, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build controller: %v\n", err)
			os.Exit(1)
		}
		clients[i] = c
	}
	defer func() {
		for _, c := range clients {
			c.controller.Close()
		}
	}()

	loginStats := runPhase(clients, *concurrency, func(i int, c *client) error {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if _, err := c.controller.Login(ctx, goSession.Credentials{Username: c.username, Password: accounts[i].Password}); err != nil {
			return err
		}
		sid, err := srv.ActiveSession(ctx, c.username)
		if err != nil {
			return err
		}
		return srv.WaitRegistered(ctx, sid)
	})

	forcedStats := runPhase(clients, *concurrency, func(_ int, c *client) error {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		sid, err := srv.ActiveSession(ctx, c.username)
		if err != nil {
			return err
		}
		c.armed.Store(true)
		if err := srv.Push(sid, fakeserver.ForcedLogoutPush{Action: "force_logout", TargetSessionID: sid}); err != nil {
			return err
		}
		select {
		case <-c.loggedOut:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	logoutStats := runPhase(clients, *concurrency, func(i int, c *client) error {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		c.armed.Store(false)
		// a pushed forced logout leaves the server-side session in place
		if sid, err := srv.ActiveSession(ctx, c.username); err == nil && sid != "" {
			if err := srv.Revoke(ctx, sid); err != nil {
				return err
			}
		}
		if _, err := c.controller.Login(ctx, goSession.Credentials{Username: c.username, Password: accounts[i].Password}); err != nil {
			return err
		}
		return c.controller.Logout(ctx)
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("forced-logout", forcedStats)
	printStats("relogin+logout", logoutStats)

	totals := map[goSession.MetricID]uint64{}
	for _, c := range clients {
		for id, v := range c.controller.MetricsSnapshot().Counters {
			totals[id] += v
		}
	}
	fmt.Printf("forced logouts applied=%d ignored=%d reconnects=%d\n",
		totals[goSession.MetricForcedLogoutApplied],
		totals[goSession.MetricForcedLogoutIgnored],
		totals[goSession.MetricRealtimeReconnect],
	)
}

func newClient(baseURL, username string, logger logr.Logger) (*client, error) {
	cfg := goSession.DefaultConfig()
	cfg.API.RuntimeBaseURL = baseURL
	cfg.Login.RedirectDelay = 0
	cfg.Metrics.Enabled = true

	c := &client{username: username, loggedOut: make(chan struct{})}
	ctrl, err := goSession.New().
		WithConfig(cfg).
		WithNavigator(c).
		WithNotifier(goSession.NotifierFunc(func(context.Context, goSession.Notice) {})).
		WithLogger(logger.WithName(username)).
		Build()
	if err != nil {
		return nil, err
	}
	c.controller = ctrl
	return c, nil
}

func runPhase(clients []*client, concurrency int, op func(i int, c *client) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(clients))
		mu        sync.Mutex
		firstErr  error
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(clients) {
					return
				}
				t0 := time.Now()
				err := op(i, clients[i])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				if err != nil && firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", clients[i].username, err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	stats := computeStats(total, latencies, failures)
	stats.firstErr = firstErr
	return stats
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
	firstErr error
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
	if s.firstErr != nil {
		fmt.Printf("  first failure: %v\n", s.firstErr)
	}
}
