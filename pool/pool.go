package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoEndpoint means every candidate endpoint is cooling down or
	// failed its probe. Retryable after backoff.
	ErrNoEndpoint = errors.New("no gateway endpoint available")
	// ErrAuthDenied means at least one endpoint rejected our key or
	// origin. A configuration problem, not a transient fault.
	ErrAuthDenied = errors.New("gateway denied authorization; check endpoint url and api key")
)

const (
	baseCooldown = 2 * time.Second
	maxCooldown  = 30 * time.Second
	probeTimeout = 3 * time.Second
	// how long a probed endpoint stays "current" before re-probing
	currentTTL = 10 * time.Second
	// extra score added on auth rejections
	authPenalty = 2
)

// Endpoint is one gateway candidate with its health state. All health
// fields are owned by the pool and mutated only under its lock.
type Endpoint struct {
	url           string
	gw            Gateway
	cooldownUntil time.Time
	failScore     int
}

func (ep *Endpoint) URL() string      { return ep.url }
func (ep *Endpoint) Gateway() Gateway { return ep.gw }

// Pool tracks candidate gateway endpoints, probes them on demand and
// rotates past unhealthy ones. Safe for concurrent use.
type Pool struct {
	mu           sync.Mutex
	urls         []string
	entries      []*Endpoint
	current      *Endpoint
	currentUntil time.Time

	probe func(context.Context, Gateway) error
	now   func() time.Time
	log   *log.Entry
}

func Create(urls []string) (*Pool, error) {
	return CreateWithDial(urls, Dial)
}

func CreateWithDial(urls []string, dial func(string) Gateway) (*Pool, error) {
	if len(urls) == 0 {
		return nil, errors.New("no endpoint urls")
	}
	e1 := &Pool{
		urls: urls,
		probe: func(ctx context.Context, gw Gateway) error {
			_, err := gw.Slot(ctx)
			return err
		},
		now: time.Now,
		log: log.WithField("component", "pool"),
	}
	e1.entries = make([]*Endpoint, 0, len(urls))
	for _, u := range urls {
		e1.entries = append(e1.entries, &Endpoint{url: u, gw: dial(u)})
	}
	return e1, nil
}

// Select returns a healthy endpoint, probing candidates in order of
// (cooldownUntil, failScore). A recently probed endpoint is reused
// without re-probing until its window passes. If every candidate is
// cooling down Select fails fast instead of blocking.
func (e1 *Pool) Select(ctx context.Context) (*Endpoint, error) {
	e1.mu.Lock()
	now := e1.now()
	if e1.current != nil && now.Before(e1.currentUntil) {
		ep := e1.current
		e1.mu.Unlock()
		return ep, nil
	}
	candidates := make([]*Endpoint, 0, len(e1.entries))
	for _, ep := range e1.entries {
		if ep.cooldownUntil.After(now) {
			continue
		}
		candidates = append(candidates, ep)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.cooldownUntil.Equal(b.cooldownUntil) {
			return a.cooldownUntil.Before(b.cooldownUntil)
		}
		return a.failScore < b.failScore
	})
	e1.mu.Unlock()

	sawAuth := false
	for _, ep := range candidates {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := e1.probe(probeCtx, ep.gw)
		cancel()
		if err == nil {
			e1.mu.Lock()
			ep.failScore = 0
			ep.cooldownUntil = time.Time{}
			e1.current = ep
			e1.currentUntil = e1.now().Add(currentTTL)
			e1.mu.Unlock()
			return ep, nil
		}
		class := Classify(err)
		if class == ClassAuthDenied {
			sawAuth = true
		}
		e1.log.Debugf("probe failed url=%s class=%s: %s", ep.url, class, err)
		e1.penalize(ep, class)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if sawAuth {
		return nil, fmt.Errorf("%w (%d endpoints)", ErrAuthDenied, len(e1.urls))
	}
	return nil, ErrNoEndpoint
}

// MarkFailure penalizes an endpoint after a gateway call made outside
// the probe path failed.
func (e1 *Pool) MarkFailure(ep *Endpoint, err error) {
	e1.penalize(ep, Classify(err))
}

func (e1 *Pool) penalize(ep *Endpoint, class Class) {
	e1.mu.Lock()
	defer e1.mu.Unlock()
	ep.failScore++
	if class == ClassAuthDenied {
		ep.failScore += authPenalty
	}
	d := time.Duration(ep.failScore) * baseCooldown
	if maxCooldown < d {
		d = maxCooldown
	}
	ep.cooldownUntil = e1.now().Add(d)
	if e1.current == ep {
		e1.current = nil
	}
}

// Endpoints returns a snapshot of the candidate list, healthy or not.
// Used by callers that rotate through endpoints themselves.
func (e1 *Pool) Endpoints() []*Endpoint {
	e1.mu.Lock()
	defer e1.mu.Unlock()
	out := make([]*Endpoint, len(e1.entries))
	copy(out, e1.entries)
	return out
}

// Size reports the number of configured endpoints.
func (e1 *Pool) Size() int {
	e1.mu.Lock()
	defer e1.mu.Unlock()
	return len(e1.entries)
}
