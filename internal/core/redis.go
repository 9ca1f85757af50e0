// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/carterperez-dev/templates/account-service/internal/config"
)

// Redis holds the client used for the session lookup cache.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "parse redis url").
			Wrap(err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute
	opts.ClientName = "account-service"

	r := &Redis{Client: redis.NewClient(opts)}
	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close() //nolint:errcheck // the ping error is the one worth returning
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("operation", "initial ping").
			Wrap(err)
	}

	return r, nil
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_UNAVAILABLE").Wrap(err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

// Collector exports the client's pool statistics.
func (r *Redis) Collector() prometheus.Collector {
	return NewRedisPoolCollector(r.PoolStats)
}

// RedisPoolCollector turns go-redis pool counters into Prometheus metrics on
// every scrape.
type RedisPoolCollector struct {
	stats func() *redis.PoolStats

	hits     *prometheus.Desc
	misses   *prometheus.Desc
	timeouts *prometheus.Desc
	total    *prometheus.Desc
	idle     *prometheus.Desc
	stale    *prometheus.Desc
}

func NewRedisPoolCollector(stats func() *redis.PoolStats) *RedisPoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("account_redis_pool_"+name, help, nil, nil)
	}
	return &RedisPoolCollector{
		stats:    stats,
		hits:     desc("hits_total", "Free connections found in the pool."),
		misses:   desc("misses_total", "Free connections not found in the pool."),
		timeouts: desc("timeouts_total", "Waits for a connection that timed out."),
		total:    desc("connections", "Connections in the pool."),
		idle:     desc("idle_connections", "Idle connections in the pool."),
		stale:    desc("stale_connections_total", "Stale connections removed from the pool."),
	}
}

func (c *RedisPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.total
	ch <- c.idle
	ch <- c.stale
}

func (c *RedisPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	if s == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.stale, prometheus.CounterValue, float64(s.StaleConns))
}
