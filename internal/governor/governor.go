// Package governor gates outbound calls to a quota-limited remote service.
// A single Governor instance per service target combines a concurrency
// semaphore, a rolling-window quota scaled by an adaptive throttle factor,
// a short-horizon per-second cap and a circuit breaker.
package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Error-rate watermarks for throttle adjustment.
const (
	highErrorRate = 0.10
	midErrorRate  = 0.05
	lowErrorRate  = 0.01
)

type Config struct {
	// Target names the remote service in logs and metrics.
	Target string

	MaxConcurrent     int
	RequestsPerWindow int
	Window            time.Duration
	RequestsPerSecond int

	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int

	InitialThrottle float64
	MinThrottle     float64
	MaxThrottle     float64
	// ErrorWindow is the trailing span of call outcomes the throttle
	// adjustment looks at; MinSamples outcomes must be present before any
	// adjustment happens.
	ErrorWindow time.Duration
	MinSamples  int

	MaxBatchSize int

	// OnStateChange fires on every breaker transition while the state
	// lock is held. Callbacks must not call back into the Governor.
	OnStateChange func(from, to State)
}

func (c Config) withDefaults() Config {
	if c.Target == "" {
		c.Target = "remote"
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = 1500
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 25
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = time.Minute
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 2
	}
	if c.InitialThrottle <= 0 {
		c.InitialThrottle = 0.7
	}
	if c.MinThrottle <= 0 {
		c.MinThrottle = 0.2
	}
	if c.MaxThrottle <= 0 || c.MaxThrottle > 1.0 {
		c.MaxThrottle = 0.8
	}
	if c.ErrorWindow <= 0 {
		c.ErrorWindow = 5 * time.Minute
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 3
	}
	return c
}

type outcome struct {
	at time.Time
	ok bool
}

// Governor is safe for concurrent use. All mutable state sits behind one
// mutex; the concurrency slots are a weighted semaphore so blocked callers
// queue without spinning.
type Governor struct {
	cfg       Config
	log       zerolog.Logger
	slots     *semaphore.Weighted
	perSecond *rate.Limiter

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	halfOpenSuccesses   int
	lastFailure         time.Time
	throttle            float64
	window              []time.Time
	outcomes            []outcome
	inFlight            int
	successes           uint64
	failures            uint64
}

func New(cfg Config, logger zerolog.Logger) *Governor {
	cfg = cfg.withDefaults()
	return &Governor{
		cfg:       cfg,
		log:       logger.With().Str("component", "governor").Str("target", cfg.Target).Logger(),
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		perSecond: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		state:     StateClosed,
		throttle:  cfg.InitialThrottle,
	}
}

// Permit is a held concurrency slot. Exactly one Release per Permit takes
// effect; extra calls are ignored.
type Permit struct {
	g    *Governor
	once sync.Once
}

// Release frees the slot and reports the call outcome, driving breaker
// transitions and the throttle factor.
func (p *Permit) Release(success bool) {
	p.once.Do(func() { p.g.release(success) })
}

// Acquire blocks until the caller may start a remote call: the circuit
// must not be open, a concurrency slot must be free and the rolling-window
// quota must have room. Callers bound the wait through ctx; on expiry the
// error is *CircuitOpenError or *ThrottledError depending on the gate.
func (g *Governor) Acquire(ctx context.Context) (*Permit, error) {
	for {
		if err := g.waitCircuit(ctx); err != nil {
			return nil, err
		}
		if err := g.slots.Acquire(ctx, 1); err != nil {
			return nil, &ThrottledError{Stage: "concurrency slot", Err: err}
		}
		admitted, err := g.waitQuota(ctx)
		if err != nil {
			g.slots.Release(1)
			return nil, err
		}
		if admitted {
			break
		}
		// The breaker opened while this caller queued for quota. Drop the
		// slot and go back to waiting on the circuit.
		g.slots.Release(1)
	}

	if err := g.perSecond.Wait(ctx); err != nil {
		g.abortAdmission()
		return nil, &ThrottledError{Stage: "per-second cap", Err: err}
	}
	return &Permit{g: g}, nil
}

// waitCircuit blocks while the breaker is open. The OPEN to HALF_OPEN
// transition is evaluated lazily here, there is no background timer.
func (g *Governor) waitCircuit(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.state != StateOpen {
			g.mu.Unlock()
			return nil
		}
		wait := g.cfg.RecoveryTimeout - time.Since(g.lastFailure)
		if wait <= 0 {
			g.transitionLocked(StateHalfOpen)
			g.halfOpenSuccesses = 0
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return &CircuitOpenError{RetryAfter: wait}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &CircuitOpenError{RetryAfter: wait, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// waitQuota admits the caller into the rolling window, sleeping exactly
// until the oldest recorded request ages out when the window is full.
// Returns false without error when the breaker opened in the meantime.
func (g *Governor) waitQuota(ctx context.Context) (bool, error) {
	for {
		g.mu.Lock()
		if g.state == StateOpen {
			g.mu.Unlock()
			return false, nil
		}
		now := time.Now()
		g.pruneWindowLocked(now)
		if len(g.window) < g.effectiveLimitLocked() {
			g.window = append(g.window, now)
			g.inFlight++
			g.mu.Unlock()
			return true, nil
		}
		wait := g.window[0].Add(g.cfg.Window).Sub(now) + 10*time.Millisecond
		g.mu.Unlock()

		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return false, &ThrottledError{Stage: "window quota", Wait: wait}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, &ThrottledError{Stage: "window quota", Wait: wait, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (g *Governor) abortAdmission() {
	g.slots.Release(1)
	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
}

func (g *Governor) release(success bool) {
	now := time.Now()

	g.mu.Lock()
	g.inFlight--
	g.outcomes = append(g.outcomes, outcome{at: now, ok: success})

	if success {
		g.successes++
		switch g.state {
		case StateHalfOpen:
			g.halfOpenSuccesses++
			g.consecutiveFailures = 0
			if g.halfOpenSuccesses >= g.cfg.HalfOpenMaxCalls {
				g.transitionLocked(StateClosed)
			}
		case StateClosed:
			g.consecutiveFailures = 0
		}
	} else {
		g.failures++
		g.consecutiveFailures++
		g.lastFailure = now
		switch g.state {
		case StateHalfOpen:
			g.transitionLocked(StateOpen)
		case StateClosed:
			if g.consecutiveFailures >= g.cfg.FailureThreshold {
				g.transitionLocked(StateOpen)
			}
		}
	}

	g.adjustThrottleLocked(now)
	g.mu.Unlock()

	g.slots.Release(1)
}

// adjustThrottleLocked recomputes the throttle factor from the error rate
// over the trailing outcome window. High error rates multiply the factor
// down, a near-clean window nudges it back up. Always clamped to
// [MinThrottle, MaxThrottle].
func (g *Governor) adjustThrottleLocked(now time.Time) {
	cutoff := now.Add(-g.cfg.ErrorWindow)
	i := 0
	for i < len(g.outcomes) && g.outcomes[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		g.outcomes = append(g.outcomes[:0], g.outcomes[i:]...)
	}

	total := len(g.outcomes)
	if total <= g.cfg.MinSamples {
		return
	}
	errs := 0
	for _, o := range g.outcomes {
		if !o.ok {
			errs++
		}
	}
	errorRate := float64(errs) / float64(total)

	before := g.throttle
	switch {
	case errorRate > highErrorRate:
		g.throttle *= 0.6
	case errorRate > midErrorRate:
		g.throttle *= 0.8
	case errorRate < lowErrorRate:
		g.throttle *= 1.01
	}
	if g.throttle < g.cfg.MinThrottle {
		g.throttle = g.cfg.MinThrottle
	}
	if g.throttle > g.cfg.MaxThrottle {
		g.throttle = g.cfg.MaxThrottle
	}
	if g.throttle != before {
		g.log.Debug().
			Float64("error_rate", errorRate).
			Float64("throttle_factor", g.throttle).
			Msg("throttle factor adjusted")
	}
}

func (g *Governor) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-g.cfg.Window)
	i := 0
	for i < len(g.window) && g.window[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		g.window = append(g.window[:0], g.window[i:]...)
	}
}

// effectiveLimitLocked scales the nominal window quota by the throttle
// factor, never below one so the pipeline cannot starve itself.
func (g *Governor) effectiveLimitLocked() int {
	limit := int(float64(g.cfg.RequestsPerWindow) * g.throttle)
	if limit < 1 {
		limit = 1
	}
	return limit
}

func (g *Governor) transitionLocked(to State) {
	from := g.state
	if from == to {
		return
	}
	g.state = to

	switch to {
	case StateOpen:
		g.log.Warn().
			Int("consecutive_failures", g.consecutiveFailures).
			Dur("recovery_timeout", g.cfg.RecoveryTimeout).
			Msg("circuit breaker opened")
	case StateHalfOpen:
		g.log.Info().Msg("circuit breaker half-open, probing")
	case StateClosed:
		g.log.Info().Msg("circuit breaker closed, service recovered")
	}

	if g.cfg.OnStateChange != nil {
		g.cfg.OnStateChange(from, to)
	}
}

// OptimalBatchSize reports how many images one remote request should carry
// right now: a single probe while the breaker is open, shrinking with the
// throttle factor, never above the configured hard maximum.
func (g *Governor) OptimalBatchSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batchSizeLocked()
}

func (g *Governor) batchSizeLocked() int {
	switch {
	case g.state == StateOpen:
		return 1
	case g.throttle < 0.5:
		return 1
	case g.throttle < 0.7:
		return min(2, g.cfg.MaxBatchSize)
	default:
		return g.cfg.MaxBatchSize
	}
}

// Snapshot is a point-in-time view of governor state for the status
// endpoint, the run report and logging.
type Snapshot struct {
	Target              string  `json:"target"`
	CircuitState        string  `json:"circuit_state"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	ThrottleFactor      float64 `json:"throttle_factor"`
	EffectiveLimit      int     `json:"effective_limit"`
	InFlight            int     `json:"in_flight"`
	OptimalBatchSize    int     `json:"optimal_batch_size"`
	Successes           uint64  `json:"successes"`
	Failures            uint64  `json:"failures"`
}

func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Target:              g.cfg.Target,
		CircuitState:        g.state.String(),
		ConsecutiveFailures: g.consecutiveFailures,
		ThrottleFactor:      g.throttle,
		EffectiveLimit:      g.effectiveLimitLocked(),
		InFlight:            g.inFlight,
		OptimalBatchSize:    g.batchSizeLocked(),
		Successes:           g.successes,
		Failures:            g.failures,
	}
}

// CircuitState returns the current breaker state, evaluated lazily: an
// elapsed recovery timeout shows through as HALF_OPEN readiness only on
// the next Acquire, matching the transition rules.
func (g *Governor) CircuitState() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
