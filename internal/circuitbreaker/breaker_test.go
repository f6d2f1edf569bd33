package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New(cfg, logger)
	b.now = c.now
	return b, c
}

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestOpensAfterMaxFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "kafka", MaxFailures: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected underlying error, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while open")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 2, Cooldown: time.Minute})

	b.Execute(fail)
	b.Execute(succeed)
	b.Execute(fail)
	if b.State() != StateClosed {
		t.Fatalf("non-consecutive failures should not trip, got %s", b.State())
	}
}

func TestHalfOpenProbe(t *testing.T) {
	b, c := newTestBreaker(Config{MaxFailures: 1, Cooldown: 10 * time.Second})

	b.Execute(fail)
	c.advance(5 * time.Second)
	if err := b.Execute(succeed); !errors.Is(err, ErrOpen) {
		t.Fatalf("still cooling down, got %v", err)
	}

	c.advance(6 * time.Second)
	if err := b.Execute(fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe should run, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("failed probe must reopen, got %s", b.State())
	}

	c.advance(11 * time.Second)
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("probe should pass, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("successful probe must close, got %s", b.State())
	}
}

func TestHalfOpenLimitsConcurrentProbes(t *testing.T) {
	b, c := newTestBreaker(Config{MaxFailures: 1, Cooldown: time.Second, Probes: 1})
	b.Execute(fail)
	c.advance(2 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	if err := b.Execute(succeed); !errors.Is(err, ErrOpen) {
		t.Fatalf("second probe should be rejected, got %v", err)
	}
	close(release)
	wg.Wait()

	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestStats(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "notify", MaxFailures: 1, Cooldown: time.Minute})
	b.Execute(succeed)
	b.Execute(fail)
	b.Execute(succeed)

	s := b.Stats()
	if s.Name != "notify" || s.State != "open" {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.Calls != 2 || s.Failures != 1 || s.Rejected != 1 {
		t.Errorf("unexpected counters %+v", s)
	}
	if s.LastTrip == "" {
		t.Error("last trip should be recorded")
	}
}

func TestDefaults(t *testing.T) {
	b, _ := newTestBreaker(Config{})
	if b.cfg.Name != "unnamed" || b.cfg.MaxFailures != 5 || b.cfg.Cooldown != 30*time.Second || b.cfg.Probes != 1 {
		t.Errorf("unexpected defaults %+v", b.cfg)
	}
}
