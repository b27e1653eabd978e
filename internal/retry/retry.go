// Package retry adapts the teacher's circuit-breaker and retry-with-backoff
// patterns (libs/resilience/circuitbreaker.go, libs/database/connection.go)
// to the storage engine's xerrors.ErrBusy contract: internal/store wraps
// every bbolt write transaction (reads are not wrapped) through a Breaker
// so repeated lock contention
// trips the breaker instead of retrying forever.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config mirrors the teacher's CircuitBreakerConfig, narrowed to what the
// store needs (spec §7 "Busy" kind: transient, must not wedge a caller).
//
// MinRequestsToTrip and FailureRatioThreshold tune the trip decision to a
// single bbolt file's own contention profile: a store backing one symbol
// sees far fewer concurrent writers than the teacher's shared HTTP
// dependency, so RetryAttempts+1 (the most requests a single Do call can
// contribute before giving up) is the natural floor for "enough samples to
// judge," rather than a fixed constant borrowed from an unrelated caller.
type Config struct {
	Name                  string
	MaxRequests           uint32
	Interval              time.Duration
	Timeout               time.Duration
	MaxFailures           uint32
	MinRequestsToTrip     uint32
	FailureRatioThreshold float64
	RetryAttempts         int
	RetryDelay            time.Duration
}

// DefaultConfig returns the breaker/backoff settings used by a freshly
// opened symbol store.
func DefaultConfig(name string) Config {
	return Config{
		Name:                  name,
		MaxRequests:           3,
		Interval:              10 * time.Second,
		Timeout:               5 * time.Second,
		MaxFailures:           5,
		MinRequestsToTrip:     4, // RetryAttempts(3)+1: a single Do call's full attempt budget
		FailureRatioThreshold: 0.6,
		RetryAttempts:         3,
		RetryDelay:            10 * time.Millisecond,
	}
}

// Breaker wraps gobreaker with the bounded-backoff retry loop the bbolt
// adapter runs a transaction through on xerrors.ErrBusy.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	config Config
}

// New builds a Breaker from config.
func New(config Config) *Breaker {
	minRequests := config.MinRequestsToTrip
	if minRequests == 0 {
		minRequests = uint32(config.RetryAttempts) + 1
	}
	ratioThreshold := config.FailureRatioThreshold
	if ratioThreshold == 0 {
		ratioThreshold = DefaultConfig(config.Name).FailureRatioThreshold
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && (counts.ConsecutiveFailures >= config.MaxFailures || failureRatio >= ratioThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("[retry:%s] state changed: %s -> %s", name, from, to)
		},
	}
	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker[any](settings),
		name:   config.Name,
		config: config,
	}
}

// Do retries fn with exponential backoff while it returns isBusy(err), up to
// RetryAttempts+1 attempts. Every attempt runs through the circuit breaker,
// so sustained contention trips it open instead of retrying indefinitely.
func (b *Breaker) Do(ctx context.Context, isBusy func(error) bool, fn func() (any, error)) (any, error) {
	delay := b.config.RetryDelay
	var lastErr error

	for attempt := 0; attempt <= b.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		result, err := b.cb.Execute(fn)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isBusy(err) {
			return nil, fmt.Errorf("retry %s: %w", b.name, err)
		}
	}

	return nil, fmt.Errorf("retry %s: exhausted %d attempts: %w", b.name, b.config.RetryAttempts+1, lastErr)
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }
