package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Check reports whether one backend is reachable.
type Check func(ctx context.Context) error

// PostgresCheck pings the pool.
func PostgresCheck(pool *pgxpool.Pool) Check {
	return pool.Ping
}

// RedisCheck pings the client.
func RedisCheck(rdb *redis.Client) Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// RunChecks runs every check concurrently and returns the results sorted by name.
func RunChecks(ctx context.Context, checks map[string]Check) ([]CheckResult, bool) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]CheckResult, 0, len(checks))
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			r := CheckResult{Name: name, Healthy: err == nil, Latency: time.Since(start).String()}
			if err != nil {
				r.Error = err.Error()
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	healthy := true
	for _, r := range results {
		healthy = healthy && r.Healthy
	}
	return results, healthy
}
