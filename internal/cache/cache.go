// Package cache provides a Redis-backed hot layer for API reads with
// graceful degradation. When Redis is unavailable, operations return errors
// that callers handle by falling back to the database or the exchange.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"altcoin-screener/config"
)

// Key layout.
const (
	KeyMarketOverview = "market:overview"
	prefixTopResults  = "screening:top:%s" // timeframe
)

// Default TTLs.
const (
	MarketOverviewTTL = 30 * time.Second
	TopResultsTTL     = 60 * time.Second
)

// ErrMiss marks a cache miss so callers can tell it from an outage.
var ErrMiss = errors.New("cache miss")

// Service wraps a Redis client with a small circuit breaker. After several
// consecutive failures the breaker opens and calls fail fast until a
// background ping succeeds.
type Service struct {
	client *redis.Client
	cfg    config.RedisConfig
	log    zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewService connects to Redis. A failed initial ping is not fatal; the
// service starts degraded and recovers on its own.
func NewService(cfg config.RedisConfig, logger zerolog.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:        client,
		cfg:           cfg,
		log:           logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.log.Warn().Err(err).Str("address", cfg.Address).Msg("initial redis connection failed, starting degraded")
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.log.Info().Str("address", cfg.Address).Msg("redis connected")
	return s, nil
}

func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures {
		if s.healthy {
			s.log.Warn().Int("failures", s.failureCount).Msg("circuit breaker open, redis marked unhealthy")
		}
		s.healthy = false
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.log.Info().Msg("circuit breaker closed, redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

// checkHealth kicks off a background ping when the breaker has been open for
// long enough to be worth retrying.
func (s *Service) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Ping(pingCtx).Err(); err == nil {
			s.recordSuccess()
		} else {
			s.mu.Lock()
			s.lastCheck = time.Now()
			s.mu.Unlock()
		}
	}()
}

// GetJSON loads and unmarshals a cached value into dest. Returns ErrMiss on
// an absent key.
func (s *Service) GetJSON(ctx context.Context, key string, dest interface{}) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		s.recordFailure()
		return fmt.Errorf("redis get failed: %w", err)
	}
	s.recordSuccess()

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("error decoding cached value: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a value with a TTL.
func (s *Service) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error encoding value: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}
	s.recordSuccess()
	return nil
}

// StoreTopResults caches the ranked leaderboard for a timeframe, called
// after each screening pass rewrites its snapshot window. Failures are
// logged and swallowed; the database stays the source of truth.
func (s *Service) StoreTopResults(ctx context.Context, timeframe string, results interface{}) {
	if s == nil {
		return
	}
	if err := s.SetJSON(ctx, TopResultsKey(timeframe), results, TopResultsTTL); err != nil {
		s.log.Debug().Err(err).Str("timeframe", timeframe).Msg("top results cache write skipped")
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.recordFailure()
		return err
	}
	s.recordSuccess()
	return nil
}

func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Stats reports breaker state for the health endpoint.
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
}

func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Healthy:      s.healthy,
		FailureCount: s.failureCount,
		Address:      s.cfg.Address,
	}
}

// TopResultsKey builds the leaderboard key for a timeframe.
func TopResultsKey(timeframe string) string {
	return fmt.Sprintf(prefixTopResults, timeframe)
}
