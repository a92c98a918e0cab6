// Package circuit provides the failure-isolation breaker that guards each
// PLC controller IP: after repeated read failures the breaker opens and
// calls against that controller fail immediately instead of re-paying the
// full dial-and-read timeout on every tag of every poll cycle. After
// OpenTimeout a limited number of probe reads decide whether the
// controller is back.
package circuit

import (
	"fmt"
	"sync"
	"time"

	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// BreakerConfig configures one breaker.
//
// FailureDecay bounds how long closed-state failures are held against a
// controller: a failure streak that went quiet for longer than the decay
// window is forgotten, so a controller that hiccups once a shift never
// accumulates its way to a trip.
type BreakerConfig struct {
	Name              string        `yaml:"name"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	SuccessThreshold  int           `yaml:"success_threshold"`
	OpenTimeout       time.Duration `yaml:"open_timeout"`
	FailureDecay      time.Duration `yaml:"failure_decay"`
	HalfOpenMaxProbes int           `yaml:"half_open_max_probes"`

	// OnStateChange, when set, is invoked (under the breaker lock) on
	// every transition; the PLC connection cache uses it to export a
	// per-controller state gauge.
	OnStateChange func(name string, from, to types.CircuitBreakerState)
}

// Breaker is a three-state circuit breaker. All decisions happen in two
// locked phases, Allow then Record, so the protected call itself runs
// without the lock and concurrent reads against one controller do not
// serialize.
type Breaker struct {
	config BreakerConfig
	logger *logrus.Logger

	mu          sync.Mutex
	state       types.CircuitBreakerState
	failures    int64
	successes   int64
	requests    int64
	lastFailure time.Time
	lastSuccess time.Time

	nextProbeAt    time.Time
	probes         int
	probeSuccesses int
}

// NewBreaker creates a breaker with defaults filled in.
func NewBreaker(config BreakerConfig, logger *logrus.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if config.FailureDecay <= 0 {
		config.FailureDecay = 10 * time.Minute
	}
	if config.HalfOpenMaxProbes <= 0 {
		config.HalfOpenMaxProbes = 3
	}

	return &Breaker{
		config: config,
		logger: logger,
		state:  types.CircuitBreakerClosed,
	}
}

// Execute runs fn under the breaker: Allow decides admission, fn runs
// unlocked, Record feeds the outcome back.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(err)
	return err
}

// Allow reports whether a call may proceed right now, advancing the
// open -> half-open transition when the probe window has arrived.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++

	switch b.state {
	case types.CircuitBreakerClosed:
		b.decayFailuresLocked(time.Now())
		return nil

	case types.CircuitBreakerOpen:
		if time.Now().Before(b.nextProbeAt) {
			return fmt.Errorf("circuit breaker %s is open", b.config.Name)
		}
		b.setStateLocked(types.CircuitBreakerHalfOpen)
		b.probes = 1
		b.probeSuccesses = 0
		return nil

	default: // half-open
		if b.probes >= b.config.HalfOpenMaxProbes {
			return fmt.Errorf("circuit breaker %s is probing (max probes reached)", b.config.Name)
		}
		b.probes++
		return nil
	}
}

// Record feeds a call outcome back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if err != nil {
		b.failures++
		b.lastFailure = now

		if b.state == types.CircuitBreakerHalfOpen {
			// A failed probe: the controller is still down.
			b.tripLocked()
			return
		}
		if b.state == types.CircuitBreakerClosed && b.failures >= int64(b.config.FailureThreshold) {
			b.tripLocked()
		}
		return
	}

	b.successes++
	b.lastSuccess = now

	if b.state == types.CircuitBreakerHalfOpen {
		b.probeSuccesses++
		if b.probeSuccesses >= b.config.SuccessThreshold {
			b.setStateLocked(types.CircuitBreakerClosed)
			b.failures = 0
			b.nextProbeAt = time.Time{}
			b.logger.WithField("breaker", b.config.Name).Info("circuit breaker recovered")
		}
	}
}

// decayFailuresLocked forgets a closed-state failure streak whose last
// failure is older than the decay window.
func (b *Breaker) decayFailuresLocked(now time.Time) {
	if b.failures > 0 && now.Sub(b.lastFailure) > b.config.FailureDecay {
		b.failures = 0
	}
}

func (b *Breaker) tripLocked() {
	b.setStateLocked(types.CircuitBreakerOpen)
	b.nextProbeAt = time.Now().Add(b.config.OpenTimeout)

	b.logger.WithFields(logrus.Fields{
		"breaker":       b.config.Name,
		"failures":      b.failures,
		"next_probe_at": b.nextProbeAt,
	}).Warn("circuit breaker opened")
}

func (b *Breaker) setStateLocked(newState types.CircuitBreakerState) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, oldState, newState)
	}

	b.logger.WithFields(logrus.Fields{
		"breaker":   b.config.Name,
		"old_state": oldState,
		"new_state": newState,
	}).Info("circuit breaker state changed")
}

// State returns the breaker's current state.
func (b *Breaker) State() types.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether the breaker is currently open.
func (b *Breaker) IsOpen() bool {
	return b.State() == types.CircuitBreakerOpen
}

// CanExecute reports whether a call would currently be admitted, without
// consuming a probe slot or counting a request.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case types.CircuitBreakerClosed:
		return true
	case types.CircuitBreakerOpen:
		return !time.Now().Before(b.nextProbeAt)
	default:
		return b.probes < b.config.HalfOpenMaxProbes
	}
}

// ForceOpen trips the breaker unconditionally, e.g. when the connection
// cache decides a controller's TCP session is beyond salvage.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked()
}

// Reset forces the breaker back to closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setStateLocked(types.CircuitBreakerClosed)
	b.failures = 0
	b.probes = 0
	b.probeSuccesses = 0
	b.nextProbeAt = time.Time{}
}

// GetStats returns a snapshot of the breaker's counters.
func (b *Breaker) GetStats() types.CircuitBreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return types.CircuitBreakerStats{
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		Requests:      b.requests,
		LastFailure:   b.lastFailure,
		LastSuccess:   b.lastSuccess,
		NextRetryTime: b.nextProbeAt,
	}
}
