package llmgateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kreeda/resumatch/internal/observability"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed indicates the circuit is allowing requests to pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen indicates the circuit is blocking requests due to failures.
	CircuitOpen
	// CircuitHalfOpen indicates the circuit is probing recovery with limited requests.
	CircuitHalfOpen
)

// String returns a string representation of the circuit state.
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements a per-model circuit breaker around LLM Gateway
// calls. Thresholds are caller-supplied; see the circuit breaker settings
// in config for the defaults.
type CircuitBreaker struct {
	mu               sync.RWMutex
	modelID          string
	failureThreshold int
	recoveryTimeout  time.Duration
	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	lastSuccessTime  time.Time
	totalRequests    int
	totalFailures    int
}

// NewCircuitBreaker creates a circuit breaker for one model ID, opening
// after failureThreshold consecutive failures and probing recovery after
// recoveryTimeout.
func NewCircuitBreaker(modelID string, failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		modelID:          modelID,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            CircuitClosed,
	}
}

// ShouldAttempt reports whether a request should be attempted given the
// current circuit state. An open circuit whose recovery timeout has
// elapsed moves to half-open and lets the call through as a probe.
func (cb *CircuitBreaker) ShouldAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) <= cb.recoveryTimeout {
			return false
		}
		cb.state = CircuitHalfOpen
		observability.RecordCircuitBreakerStatus(cb.modelID, int(CircuitHalfOpen))
		return true
	case CircuitHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful call, closing the circuit if it was
// half-open.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount++
	cb.lastSuccessTime = time.Now()
	cb.totalRequests++
	cb.failureCount = 0

	switch cb.state {
	case CircuitHalfOpen:
		cb.state = CircuitClosed
		observability.RecordCircuitBreakerStatus(cb.modelID, int(CircuitClosed))
		slog.Info("circuit breaker closed after successful recovery",
			slog.String("model", cb.modelID),
			slog.Float64("success_rate", cb.getSuccessRate()))
	case CircuitOpen:
		cb.state = CircuitClosed
		observability.RecordCircuitBreakerStatus(cb.modelID, int(CircuitClosed))
		slog.Warn("circuit breaker closed unexpectedly after success",
			slog.String("model", cb.modelID))
	}
}

// RecordFailure records a failed call, opening the circuit once the
// failure threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.totalFailures++
	cb.totalRequests++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.failureThreshold {
		cb.state = CircuitOpen
		observability.RecordCircuitBreakerStatus(cb.modelID, int(CircuitOpen))
		slog.Warn("circuit breaker opened due to consecutive failures",
			slog.String("model", cb.modelID),
			slog.Int("failure_count", cb.failureCount),
			slog.Int("threshold", cb.failureThreshold))
	}
}

// GetState returns the current circuit state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns circuit breaker statistics for diagnostics/admin surfaces.
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return map[string]interface{}{
		"model_id":       cb.modelID,
		"state":          cb.state.String(),
		"failure_count":  cb.failureCount,
		"success_count":  cb.successCount,
		"total_requests": cb.totalRequests,
		"total_failures": cb.totalFailures,
		"success_rate":   cb.getSuccessRate(),
		"failure_rate":   cb.getFailureRate(),
		"last_failure":   cb.lastFailureTime,
		"last_success":   cb.lastSuccessTime,
	}
}

func (cb *CircuitBreaker) getSuccessRate() float64 {
	if cb.totalRequests == 0 {
		return 0.0
	}
	return float64(cb.successCount) / float64(cb.totalRequests)
}

func (cb *CircuitBreaker) getFailureRate() float64 {
	if cb.totalRequests == 0 {
		return 0.0
	}
	return float64(cb.totalFailures) / float64(cb.totalRequests)
}

// CircuitBreakerManager manages one CircuitBreaker per model ID.
type CircuitBreakerManager struct {
	mu               sync.RWMutex
	breakers         map[string]*CircuitBreaker
	failureThreshold int
	recoveryTimeout  time.Duration
}

// NewCircuitBreakerManager creates a manager that lazily builds breakers
// using the given failure threshold and recovery timeout.
func NewCircuitBreakerManager(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// GetBreaker returns or lazily creates the breaker for modelID.
func (cbm *CircuitBreakerManager) GetBreaker(modelID string) *CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if breaker, exists := cbm.breakers[modelID]; exists {
		return breaker
	}

	breaker := NewCircuitBreaker(modelID, cbm.failureThreshold, cbm.recoveryTimeout)
	cbm.breakers[modelID] = breaker
	return breaker
}

// GetAllStats returns statistics for every known breaker.
func (cbm *CircuitBreakerManager) GetAllStats() map[string]interface{} {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	stats := make(map[string]interface{})
	for modelID, breaker := range cbm.breakers {
		stats[modelID] = breaker.GetStats()
	}
	return stats
}

// GetHealthyModels returns model IDs whose breaker is not open.
func (cbm *CircuitBreakerManager) GetHealthyModels() []string {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	var healthy []string
	for modelID, breaker := range cbm.breakers {
		if breaker.GetState() != CircuitOpen {
			healthy = append(healthy, modelID)
		}
	}
	return healthy
}
