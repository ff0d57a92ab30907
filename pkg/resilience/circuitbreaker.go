// Package resilience guards calls to external providers.
package resilience

import (
	"errors"
	"sync"
	"time"

	"talking-avatar/backend/pkg/logger"
)

// ErrCircuitOpen is returned without calling through while the breaker is open
var ErrCircuitOpen = errors.New("circuit open")

// State is the breaker position
type State string

const (
	// StateClosed lets every call through
	StateClosed State = "closed"
	// StateOpen short-circuits calls until the cool-down ends
	StateOpen State = "open"
	// StateHalfOpen lets a few probe calls through
	StateHalfOpen State = "half-open"
)

// Config holds breaker thresholds
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	CoolDown         time.Duration
	// OnStateChange, if set, is called with the lock held; keep it cheap
	OnStateChange func(name string, from, to State)
}

// DefaultConfig trips after five consecutive failures and probes again after a minute
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         60 * time.Second,
	}
}

// Stats is a snapshot of breaker counters
type Stats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	Requests        uint64    `json:"total_requests"`
	Failures        uint64    `json:"total_failures"`
	Successes       uint64    `json:"total_successes"`
	Rejected        uint64    `json:"rejected"`
	Opened          uint64    `json:"open_circuit_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// CircuitBreaker stops calling a provider that keeps failing. It never retries
// a call; a failure is returned to the caller as is.
type CircuitBreaker struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu           sync.Mutex
	state        State
	failureCount uint
	successCount uint
	nextAttempt  time.Time
	stats        Stats
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: StateClosed,
		stats: Stats{Name: cfg.Name},
	}
}

// Execute runs fn unless the breaker is open
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		cb.log.Warn("circuit breaker rejected call", "name", cb.cfg.Name)
		return ErrCircuitOpen
	}

	start := cb.now()
	err := fn()
	if err != nil {
		cb.onFailure()
		cb.log.Warn("circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", time.Since(start).String(),
		)
		return err
	}

	cb.onSuccess()
	return nil
}

// Call is Execute for functions that return a value
func Call[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var out T
	err := cb.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			cb.stats.Rejected++
			return false
		}
		cb.transition(StateHalfOpen)
	case StateHalfOpen:
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.stats.Rejected++
			return false
		}
	}

	cb.stats.Requests++
	return true
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Successes++
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Failures++
	cb.stats.LastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0

	if to == StateOpen {
		cb.stats.Opened++
		cb.nextAttempt = cb.now().Add(cb.cfg.CoolDown)
	}

	cb.log.Info("circuit breaker state changed", "name", cb.cfg.Name, "from", string(from), "to", string(to))
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the current position
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the counters
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := cb.stats
	s.State = cb.state
	return s
}
