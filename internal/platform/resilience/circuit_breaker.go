package resilience

import (
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
)

var ErrCircuitOpen = crerr.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// Outcome is what a caller reports back for a request the breaker let through.
type Outcome int

const (
	// OutcomeHealthy covers responses that say the source is up, including
	// client errors such as a 404 for an unknown player.
	OutcomeHealthy Outcome = iota
	// OutcomeFault is a transient upstream failure: network errors, 429 and 5xx.
	OutcomeFault
	// OutcomeAbandoned is a request the caller cancelled. It frees a trial slot
	// without moving the breaker either way.
	OutcomeAbandoned
)

// StateChangeFunc observes transitions. It runs after the breaker lock is
// released, so it may call State.
type StateChangeFunc func(from, to CircuitState)

// CircuitBreaker stops hammering a source that keeps failing transiently.
// A nil *CircuitBreaker allows everything.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	openTimeout      time.Duration
	halfOpenMaxReq   int

	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	trialsInFlight      int
	trialSuccesses      int
	onChange            StateChangeFunc
	now                 func() time.Time
}

func NewCircuitBreaker(failureThreshold int, openTimeout time.Duration, halfOpenMaxReq int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if openTimeout <= 0 {
		openTimeout = 15 * time.Second
	}
	if halfOpenMaxReq < 1 {
		halfOpenMaxReq = 1
	}

	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		halfOpenMaxReq:   halfOpenMaxReq,
		state:            CircuitStateClosed,
		now:              time.Now,
	}
}

// OnStateChange registers fn for every transition. Call it before the
// breaker is shared.
func (b *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Allow admits a request or returns an error wrapping ErrCircuitOpen that
// says how long until the next trial is possible.
func (b *CircuitBreaker) Allow() error {
	if b == nil {
		return nil
	}
	var err error
	b.transition(func() {
		if b.state == CircuitStateOpen {
			if wait := b.openTimeout - b.now().Sub(b.openedAt); wait > 0 {
				err = crerr.Wrapf(ErrCircuitOpen, "next trial in %s", wait.Round(time.Millisecond))
				return
			}
			b.state = CircuitStateHalfOpen
			b.trialsInFlight = 0
			b.trialSuccesses = 0
		}
		if b.state == CircuitStateHalfOpen {
			if b.trialsInFlight >= b.halfOpenMaxReq {
				err = crerr.Wrapf(ErrCircuitOpen, "%d trial request(s) already in flight", b.trialsInFlight)
				return
			}
			b.trialsInFlight++
		}
	})
	return err
}

// Report settles a request Allow admitted.
func (b *CircuitBreaker) Report(outcome Outcome) {
	if b == nil {
		return
	}
	b.transition(func() {
		switch outcome {
		case OutcomeFault:
			b.onFault()
		case OutcomeAbandoned:
			if b.state == CircuitStateHalfOpen && b.trialsInFlight > 0 {
				b.trialsInFlight--
			}
		default:
			b.onHealthy()
		}
	})
}

func (b *CircuitBreaker) RecordSuccess() { b.Report(OutcomeHealthy) }

func (b *CircuitBreaker) RecordFailure() { b.Report(OutcomeFault) }

func (b *CircuitBreaker) State() CircuitState {
	if b == nil {
		return CircuitStateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitStateOpen && b.now().Sub(b.openedAt) >= b.openTimeout {
		return CircuitStateHalfOpen
	}
	return b.state
}

func (b *CircuitBreaker) transition(mutate func()) {
	b.mu.Lock()
	from := b.state
	mutate()
	to, hook := b.state, b.onChange
	b.mu.Unlock()

	if hook != nil && from != to {
		hook(from, to)
	}
}

func (b *CircuitBreaker) onHealthy() {
	switch b.state {
	case CircuitStateClosed:
		b.consecutiveFailures = 0
	case CircuitStateHalfOpen:
		if b.trialsInFlight > 0 {
			b.trialsInFlight--
		}
		b.trialSuccesses++
		if b.trialSuccesses >= b.halfOpenMaxReq && b.trialsInFlight == 0 {
			b.state = CircuitStateClosed
			b.consecutiveFailures = 0
			b.trialSuccesses = 0
			b.openedAt = time.Time{}
		}
	}
}

func (b *CircuitBreaker) onFault() {
	switch b.state {
	case CircuitStateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.trip()
		}
	case CircuitStateHalfOpen:
		b.trip()
	case CircuitStateOpen:
		b.openedAt = b.now()
	}
}

func (b *CircuitBreaker) trip() {
	b.state = CircuitStateOpen
	b.openedAt = b.now()
	b.trialsInFlight = 0
	b.trialSuccesses = 0
}
