package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/pool"
)

const (
	cacheTTL      = 60 * time.Second
	scanLimit     = 100
	maxRegistries = 8
	listTimeout   = 5 * time.Second
)

// Config selects how the active registries are discovered.
type Config struct {
	// Owner is the account whose history anchors manifest discovery
	// and the fallback registry when no manifest is found.
	Owner sgo.PublicKey
	// Tag filters manifests; only manifests carrying this tag count.
	Tag string
	// Explicit, when set, disables discovery entirely.
	Explicit *sgo.PublicKey
	// Sharding spreads writes over registries by time bucket.
	Sharding bool
	// ShardWindow is the bucket width. Zero means 30 minutes.
	ShardWindow time.Duration
}

// Resolver discovers which ledger accounts anchor this application's
// events and caches the answer briefly.
type Resolver struct {
	mu       sync.Mutex
	pool     *pool.Pool
	config   Config
	cached   []sgo.PublicKey
	loadedAt time.Time
	now      func() time.Time
	log      *log.Entry
}

func Create(p *pool.Pool, config Config) (*Resolver, error) {
	if p == nil {
		return nil, errors.New("no pool")
	}
	if config.Explicit == nil && config.Owner.IsZero() {
		return nil, errors.New("no owner and no explicit registry")
	}
	if config.ShardWindow == 0 {
		config.ShardWindow = 30 * time.Minute
	}
	return &Resolver{
		pool:   p,
		config: config,
		now:    time.Now,
		log:    log.WithField("component", "registry"),
	}, nil
}

// ActiveRegistries returns the registry accounts to read from and
// write to. Results are cached for a minute; discovery failures fall
// back to the owner account rather than erroring a feed load.
func (e1 *Resolver) ActiveRegistries(ctx context.Context) ([]sgo.PublicKey, error) {
	if e1.config.Explicit != nil {
		return []sgo.PublicKey{*e1.config.Explicit}, nil
	}
	e1.mu.Lock()
	if e1.cached != nil && e1.now().Sub(e1.loadedAt) < cacheTTL {
		out := append([]sgo.PublicKey{}, e1.cached...)
		e1.mu.Unlock()
		return out, nil
	}
	e1.mu.Unlock()

	regs := e1.discover(ctx)
	if len(regs) == 0 {
		regs = []sgo.PublicKey{e1.config.Owner}
	}

	e1.mu.Lock()
	e1.cached = regs
	e1.loadedAt = e1.now()
	out := append([]sgo.PublicKey{}, regs...)
	e1.mu.Unlock()
	return out, nil
}

// discover scans the owner's recent history for the newest valid
// manifest matching the configured tag.
func (e1 *Resolver) discover(ctx context.Context) []sgo.PublicKey {
	ep, err := e1.pool.Select(ctx)
	if err != nil {
		e1.log.Debugf("discovery skipped: %s", err)
		return nil
	}
	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	sigs, err := ep.Gateway().SignaturesFor(listCtx, e1.config.Owner, sgo.Signature{}, scanLimit)
	cancel()
	if err != nil {
		e1.pool.MarkFailure(ep, err)
		e1.log.Debugf("owner history scan failed: %s", err)
		return nil
	}

	var best *event.Manifest
	var bestTime int64
	for _, s := range sigs {
		if s == nil || s.Err != nil {
			continue
		}
		ev := event.DecodeSource(event.Source{Memo: s.Memo})
		m, ok := ev.(event.Manifest)
		if !ok {
			continue
		}
		if m.Tag != e1.config.Tag {
			continue
		}
		if m.Owner != e1.config.Owner.String() {
			continue
		}
		var ts int64
		if s.BlockTime != nil {
			ts = s.BlockTime.Time().Unix()
		}
		if best == nil || bestTime < ts {
			keep := m
			best = &keep
			bestTime = ts
		}
	}
	if best == nil {
		return nil
	}

	seen := make(map[string]bool)
	out := make([]sgo.PublicKey, 0, len(best.Registries))
	for _, addr := range best.Registries {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		key, err := sgo.PublicKeyFromBase58(addr)
		if err != nil {
			continue
		}
		out = append(out, key)
		if maxRegistries <= len(out) {
			break
		}
	}
	return out
}
