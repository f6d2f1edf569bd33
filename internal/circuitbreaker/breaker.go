// Package circuitbreaker stops calling a failing dependency for a cooldown
// period and lets a limited number of probes through afterwards.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name        string
	MaxFailures int
	Cooldown    time.Duration
	// Probes is how many calls may run while half-open.
	Probes int
}

func (c *Config) sanitize() {
	if c.Name == "" {
		c.Name = "unnamed"
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
}

type Breaker struct {
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time

	mutex    sync.Mutex
	state    State
	failures int
	inflight int
	openedAt time.Time

	stats Stats
}

// Stats is reported by the health endpoint.
type Stats struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Calls    int64  `json:"calls"`
	Failures int64  `json:"failures"`
	Rejected int64  `json:"rejected"`
	LastTrip string `json:"lastTrip,omitempty"`
}

func New(cfg Config, logger *logrus.Logger) *Breaker {
	cfg.sanitize()
	return &Breaker{cfg: cfg, logger: logger, now: time.Now}
}

// Execute runs fn unless the breaker is open. fn's error counts as a
// failure and is returned unchanged.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	err := fn()

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.state == StateHalfOpen {
		b.inflight--
	}
	if err != nil {
		b.stats.Failures++
		b.onFailure()
		return err
	}
	b.failures = 0
	if b.state == StateHalfOpen {
		b.setState(StateClosed)
	}
	return nil
}

func (b *Breaker) acquire() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.stats.Rejected++
			return ErrOpen
		}
		b.setState(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.inflight >= b.cfg.Probes {
			b.stats.Rejected++
			return ErrOpen
		}
		b.inflight++
	}
	b.stats.Calls++
	return nil
}

func (b *Breaker) onFailure() {
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
		b.openedAt = b.now()
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.inflight = 0
	if to == StateOpen {
		b.stats.LastTrip = b.openedAt.Format(time.RFC3339)
	}
	if to == StateClosed {
		b.failures = 0
	}

	b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.cfg.Name,
		"from_state":      from.String(),
		"to_state":        to.String(),
	}).Info("Circuit breaker state changed")
}

func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *Breaker) Stats() Stats {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	s := b.stats
	s.Name = b.cfg.Name
	s.State = b.state.String()
	return s
}

func (b *Breaker) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return fmt.Sprintf("Breaker(name=%s, state=%s, failures=%d/%d)",
		b.cfg.Name, b.state, b.failures, b.cfg.MaxFailures)
}
