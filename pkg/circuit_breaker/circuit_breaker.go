package circuit_breaker

import (
	"errors"
	"sync"
	"time"
)

type State uint8

const (
	Closed State = iota + 1
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	// Window is the number of most recent calls the failure ratio is computed over.
	Window int `envconfig:"CB_WINDOW" default:"10"`
	// Timeout is how long the breaker stays open before letting a probe through.
	Timeout time.Duration `envconfig:"CB_TIMEOUT" default:"10s"`
	// FailureRatio opens the breaker once reached inside Window.
	FailureRatio float64 `envconfig:"CB_FAILURE_RATIO" default:"0.5"`
	// RecoveryCalls is the number of consecutive successes needed to close from half-open.
	RecoveryCalls int `envconfig:"CB_RECOVERY_CALLS" default:"3"`
}

type CircuitBreaker interface {
	Call(fn func() error) error
	State() State
	Reset()
}

type circuitBreaker struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	state    State
	openedAt time.Time
	// ring buffer of call outcomes, true means failed
	outcomes  []bool
	pos       int
	successes int
}

func New(cfg Config) CircuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = 10
	}
	return &circuitBreaker{
		cfg:      cfg,
		now:      time.Now,
		state:    Closed,
		outcomes: make([]bool, cfg.Window),
	}
}

func (cb *circuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == Open {
		if cb.now().Sub(cb.openedAt) < cb.cfg.Timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.state = HalfOpen
		cb.successes = 0
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.outcomes[cb.pos] = err != nil
	cb.pos = (cb.pos + 1) % len(cb.outcomes)

	if cb.state == HalfOpen {
		if err != nil {
			cb.trip()
			return err
		}
		cb.successes++
		if cb.successes >= cb.cfg.RecoveryCalls {
			cb.reset()
		}
		return nil
	}

	fails := 0
	for _, failed := range cb.outcomes {
		if failed {
			fails++
		}
	}
	if float64(fails)/float64(len(cb.outcomes)) >= cb.cfg.FailureRatio {
		cb.trip()
	}
	return err
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

func (cb *circuitBreaker) trip() {
	cb.state = Open
	cb.successes = 0
	cb.openedAt = cb.now()
}

func (cb *circuitBreaker) reset() {
	for i := range cb.outcomes {
		cb.outcomes[i] = false
	}
	cb.successes = 0
	cb.pos = 0
	cb.state = Closed
}
