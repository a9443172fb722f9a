// Package barrier aligns concurrently issued clip starts to a single audio
// clock reading.
//
// Callers that arrive while a cohort is open join it. The cohort is released
// once no new caller has arrived for one quantum; the engine clock is then
// started once and every member receives the same captured time. A steady
// trickle of arrivals keeps the cohort open indefinitely unless MaxWait
// bounds it.
package barrier

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultQuantum is the quiescence window.
const DefaultQuantum = 5 * time.Millisecond

// Clock is the part of the audio engine a cohort release touches.
type Clock interface {
	Start()
	CurrentTime() time.Duration
}

// Options configure a Synchronizer. Zero values pick defaults; a zero MaxWait
// never forces a release.
type Options struct {
	Quantum time.Duration
	MaxWait time.Duration
	Logger  *logrus.Entry
}

// Synchronizer is a rendezvous barrier keyed on a shared arrival counter.
type Synchronizer struct {
	clock   Clock
	quantum time.Duration
	maxWait time.Duration
	log     *logrus.Entry

	mu         sync.Mutex
	target     uint64
	released   uint64
	generation *cohort
}

type cohort struct {
	id      uint64
	opened  time.Time
	last    time.Time
	members int
	joined  int
	timer   *time.Timer
	done    chan struct{}
	at      time.Duration
}

// New creates a Synchronizer releasing cohorts against clock.
func New(clock Clock, opts Options) *Synchronizer {
	if opts.Quantum <= 0 {
		opts.Quantum = DefaultQuantum
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "barrier")
	}
	return &Synchronizer{
		clock:   clock,
		quantum: opts.Quantum,
		maxWait: opts.MaxWait,
		log:     opts.Logger,
	}
}

// Wait joins the open cohort (or opens one) and blocks until it is released.
// It returns the engine time captured at release, shared by every member.
// Cancelling ctx abandons the wait without affecting other members.
func (s *Synchronizer) Wait(ctx context.Context) (time.Duration, error) {
	s.mu.Lock()
	s.target++
	now := time.Now()
	c := s.generation
	if c == nil {
		c = &cohort{id: s.target, opened: now, done: make(chan struct{})}
		s.generation = c
		c.timer = time.AfterFunc(s.quantum, func() { s.settle(c) })
	}
	c.last = now
	c.members++
	c.joined++
	s.mu.Unlock()

	select {
	case <-c.done:
		return c.at, nil
	case <-ctx.Done():
		s.mu.Lock()
		c.members--
		s.mu.Unlock()
		return 0, ctx.Err()
	}
}

// settle runs when the cohort timer fires. It re-arms while arrivals are
// still recent, otherwise releases the cohort.
func (s *Synchronizer) settle(c *cohort) {
	s.mu.Lock()
	if s.generation != c {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	wait := s.quantum - now.Sub(c.last)
	if s.maxWait > 0 {
		if left := s.maxWait - now.Sub(c.opened); left < wait {
			wait = left
		}
	}
	if wait > 0 {
		c.timer.Reset(wait)
		s.mu.Unlock()
		return
	}
	s.generation = nil
	s.released++
	members, joined := c.members, c.joined
	s.mu.Unlock()

	if members > 0 {
		s.clock.Start()
		c.at = s.clock.CurrentTime()
	}
	s.log.WithFields(logrus.Fields{
		"cohort":  c.id,
		"members": members,
		"joined":  joined,
		"waited":  now.Sub(c.opened),
	}).Debug("cohort released")
	close(c.done)
}

// Target is the number of arrivals so far.
func (s *Synchronizer) Target() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Released is the number of cohorts released so far.
func (s *Synchronizer) Released() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Pending reports how many callers are waiting in the open cohort.
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == nil {
		return 0
	}
	return s.generation.members
}
