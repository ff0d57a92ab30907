// Package health tracks the state of the components the server depends on.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"talking-avatar/backend/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Critical    bool      `json:"critical"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func(ctx context.Context) (Status, string, error)

type registration struct {
	check    Check
	critical bool
}

// Checker runs registered checks and keeps the last result of each
type Checker struct {
	checks       map[string]registration
	components   map[string]*Component
	checkPeriod  time.Duration
	checkTimeout time.Duration
	mutex        sync.RWMutex
	log          *logger.Logger

	// onChange is called after every round with the overall result
	onChange func(healthy bool)
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Checker{
		checks:       make(map[string]registration),
		components:   make(map[string]*Component),
		checkPeriod:  checkPeriod,
		checkTimeout: 5 * time.Second,
		log:          log,
	}
}

// RegisterCheck registers a new health check. A critical component that is
// down makes the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = registration{check: check, critical: critical}
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Critical:    critical,
		Description: "Not checked yet",
	}
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	c.mutex.RUnlock()

	// Checks run without the lock so a slow one does not block readers
	results := make(map[string]Component, len(checks))
	for name, reg := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
		status, description, err := reg.check(checkCtx)
		cancel()

		component := Component{
			Name:        name,
			Status:      status,
			Critical:    reg.critical,
			Description: description,
			LastChecked: time.Now(),
		}
		if err != nil {
			component.Error = err.Error()
			c.log.Error("Health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
		} else {
			c.log.Debug("Health check completed",
				"component", name,
				"status", string(status),
			)
		}
		results[name] = component
	}

	c.mutex.Lock()
	for name, component := range results {
		component := component
		c.components[name] = &component
	}
	onChange := c.onChange
	c.mutex.Unlock()

	if onChange != nil {
		onChange(c.IsSystemHealthy())
	}
}

// Start runs checks immediately and then every check period until ctx is done
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// GetStatus returns the current health status
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}

	return result
}

// IsSystemHealthy returns true if all critical components are up or degraded
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, component := range c.components {
		if component.Critical && component.Status == StatusDown {
			return false
		}
	}

	return true
}

// HTTPHandler reports every component and answers 503 when a critical one is down
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := c.IsSystemHealthy()

		w.Header().Set("Content-Type", "application/json")
		overall := "ok"
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			overall = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		response := map[string]any{
			"status":     overall,
			"timestamp":  time.Now(),
			"components": c.GetStatus(),
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			c.log.Error("Failed to encode health check response", "error", err.Error())
		}
	}
}

// RegisterStoreCheck registers the credential store as a critical component
func (c *Checker) RegisterStoreCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("store", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Credential store unreachable", err
		}
		return StatusUp, "Credential store reachable", nil
	})
}

// RegisterProvidersCheck reports degraded while provider keys are missing
func (c *Checker) RegisterProvidersCheck(configured func() bool) {
	c.RegisterCheck("providers", false, func(context.Context) (Status, string, error) {
		if !configured() {
			return StatusDegraded, "API keys missing, serving canned replies", nil
		}
		return StatusUp, "Language model and speech synthesis keys present", nil
	})
}

// RegisterBinaryCheck reports degraded when an external tool cannot be found
func (c *Checker) RegisterBinaryCheck(name, path string) {
	c.RegisterCheck("tool-"+name, false, func(context.Context) (Status, string, error) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return StatusDegraded, fmt.Sprintf("%s not found", path), err
		}
		return StatusUp, resolved, nil
	})
}
