package confirm

import (
	"context"
	"errors"
	"math/rand"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
	"github.com/solfeed/solfeed-tool/pool"
)

// Outcome is the terminal state of one confirmation watch.
type Outcome int

const (
	// Confirmed means the ledger acknowledged durable inclusion.
	Confirmed Outcome = iota + 1
	// Exhausted means the watch gave up after its cycle budget.
	// Non-fatal: the write is assumed likely-successful.
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Exhausted:
		return "exhausted"
	default:
		return "polling"
	}
}

const (
	maxCycles     = 6
	cycleDelay    = 2 * time.Second
	jitterSpread  = time.Second
	statusTimeout = 5 * time.Second
)

// Poller drives a bounded status poll across the endpoint pool. Each
// cycle tries every endpoint at most once, rotating past failing ones;
// between cycles it sleeps with jitter.
type Poller struct {
	pool   *pool.Pool
	cycles int
	sleep  func(context.Context, time.Duration) error
	log    *log.Entry
}

func Create(p *pool.Pool) (*Poller, error) {
	if p == nil {
		return nil, errors.New("no pool")
	}
	return &Poller{
		pool:   p,
		cycles: maxCycles,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
		log: log.WithField("component", "confirm"),
	}, nil
}

// Await polls until the signature confirms or the cycle budget runs
// out. Exhausted is an outcome, not an error; the only errors are
// context cancellation.
func (e1 *Poller) Await(ctx context.Context, sig sgo.Signature) (Outcome, error) {
	for cycle := 0; cycle < e1.cycles; cycle++ {
		tried := make(map[string]bool)
		endpoints := e1.pool.Endpoints()
	inner:
		for _, ep := range endpoints {
			if tried[ep.URL()] {
				continue
			}
			tried[ep.URL()] = true
			status, err := e1.queryStatus(ctx, ep, sig)
			if err != nil {
				if ctx.Err() != nil {
					return 0, ctx.Err()
				}
				e1.pool.MarkFailure(ep, err)
				e1.log.Debugf("status poll failed url=%s class=%s", ep.URL(), pool.Classify(err))
				continue
			}
			if confirmed(status) {
				return Confirmed, nil
			}
			// a clean "not yet" answer ends the cycle; rotation is
			// for failing endpoints only
			break inner
		}
		if err := e1.sleep(ctx, jittered()); err != nil {
			return 0, err
		}
	}
	e1.log.Infof("confirmation exhausted after %d cycles sig=%s", e1.cycles, sig)
	return Exhausted, nil
}

func (e1 *Poller) queryStatus(ctx context.Context, ep *pool.Endpoint, sig sgo.Signature) (*sgorpc.SignatureStatusesResult, error) {
	statusCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	out, err := ep.Gateway().SignatureStatuses(statusCtx, []sgo.Signature{sig})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func confirmed(status *sgorpc.SignatureStatusesResult) bool {
	if status == nil || status.Err != nil {
		return false
	}
	switch status.ConfirmationStatus {
	case sgorpc.ConfirmationStatusConfirmed, sgorpc.ConfirmationStatusFinalized:
		return true
	}
	return false
}

func jittered() time.Duration {
	return cycleDelay + time.Duration(rand.Int63n(int64(jitterSpread)))
}
