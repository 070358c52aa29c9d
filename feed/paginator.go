package feed

import (
	"context"
	"errors"
	"sort"
	"time"

	bin "github.com/gagliardetto/binary"
	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/pool"
	"github.com/solfeed/solfeed-tool/registry"
	"go.uber.org/ratelimit"
)

const (
	DefaultPageLimit = 20

	listTimeout  = 5 * time.Second
	fetchTimeout = 9 * time.Second
	// bounded retry per transaction body; on exhaustion the single
	// transaction is skipped, never the page
	fetchAttempts = 3
	retryBase     = 200 * time.Millisecond
)

// Item is one decoded event with its ledger placement.
type Item struct {
	Event     event.Event
	Signature sgo.Signature
	Slot      uint64
	BlockTime time.Time
}

// Page is an ordered newest-first slice of items plus the cursor for
// the next page.
type Page struct {
	Items []Item
	Next  Cursor
}

// Source yields feed pages. Implemented by the ledger-backed Paginator
// and by the precomputed-feed HTTP client.
type Source interface {
	FetchPage(ctx context.Context, cursor Cursor, limit int) (*Page, error)
}

// Paginator walks registries' transaction history backward and decodes
// events out of memos.
type Paginator struct {
	pool     *pool.Pool
	resolver *registry.Resolver
	limiter  ratelimit.Limiter
	sleep    func(context.Context, time.Duration) error
	log      *log.Entry
}

func Create(p *pool.Pool, r *registry.Resolver, minSpacing time.Duration) (*Paginator, error) {
	if p == nil || r == nil {
		return nil, errors.New("no pool or resolver")
	}
	var limiter ratelimit.Limiter
	if minSpacing <= 0 {
		limiter = ratelimit.NewUnlimited()
	} else {
		// one call per spacing window; spacings above a second are
		// legal, so never collapse the rate to calls-per-second
		limiter = ratelimit.New(1, ratelimit.Per(minSpacing))
	}
	return &Paginator{
		pool:     p,
		resolver: r,
		limiter:  limiter,
		sleep:    sleepCtx,
		log:      log.WithField("component", "feed"),
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type candidate struct {
	registry string
	sig      *sgorpc.TransactionSignature
}

// FetchPage returns up to limit decoded events older than cursor,
// newest first, and the cursor to continue from. Transient gateway
// faults degrade the page instead of failing it; only a fully
// unavailable pool errors out.
func (e1 *Paginator) FetchPage(ctx context.Context, cursor Cursor, limit int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if cursor == nil {
		cursor = Cursor{}
	}
	regs, err := e1.resolver.ActiveRegistries(ctx)
	if err != nil {
		return nil, err
	}
	perRegistry := (limit + len(regs) - 1) / len(regs)

	var candidates []candidate
	for _, reg := range regs {
		addr := reg.String()
		sigs, err := e1.listSignatures(ctx, reg, cursor[addr], perRegistry)
		if err != nil {
			// configuration-class faults surface; a flaky listing on
			// one registry only degrades the page
			if errors.Is(err, pool.ErrNoEndpoint) || errors.Is(err, pool.ErrAuthDenied) {
				return nil, err
			}
			e1.log.Infof("registry %s listing degraded: %s", addr, err)
			continue
		}
		for _, s := range sigs {
			if s == nil {
				continue
			}
			candidates = append(candidates, candidate{registry: addr, sig: s})
		}
	}

	// newest first by ledger slot; wall clock is unreliable and can
	// be absent for unconfirmed entries
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[j].sig.Slot < candidates[i].sig.Slot
	})
	// every considered signature advances its registry's cursor, even
	// when it decodes to nothing or another registry already supplied
	// the same transaction. A registry whose unique entry falls past
	// the page boundary stops advancing so that entry is not skipped.
	next := cursor.Clone()
	seen := make(map[sgo.Signature]bool)
	stopped := make(map[string]bool)
	page := candidates[:0]
	for _, c := range candidates {
		if stopped[c.registry] {
			continue
		}
		if seen[c.sig.Signature] {
			next[c.registry] = c.sig.Signature
			continue
		}
		if len(page) == limit {
			stopped[c.registry] = true
			continue
		}
		seen[c.sig.Signature] = true
		page = append(page, c)
		next[c.registry] = c.sig.Signature
	}

	items := make([]Item, 0, len(page))
	for _, c := range page {
		ev, ok := e1.decodeOne(ctx, c.sig)
		if !ok {
			continue
		}
		var bt time.Time
		if c.sig.BlockTime != nil {
			bt = c.sig.BlockTime.Time()
		}
		items = append(items, Item{
			Event:     ev,
			Signature: c.sig.Signature,
			Slot:      c.sig.Slot,
			BlockTime: bt,
		})
	}
	return &Page{Items: items, Next: next}, nil
}

func (e1 *Paginator) listSignatures(ctx context.Context, reg sgo.PublicKey, before sgo.Signature, limit int) ([]*sgorpc.TransactionSignature, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ep, err := e1.pool.Select(ctx)
		if err != nil {
			return nil, err
		}
		listCtx, cancel := context.WithTimeout(ctx, listTimeout)
		sigs, err := ep.Gateway().SignaturesFor(listCtx, reg, before, limit)
		cancel()
		if err == nil {
			return sigs, nil
		}
		lastErr = err
		e1.pool.MarkFailure(ep, err)
	}
	return nil, lastErr
}

// decodeOne fetches a single transaction body, serially rate limited,
// and decodes its memo. Transient failures retry with bounded backoff;
// exhaustion skips the transaction silently.
func (e1 *Paginator) decodeOne(ctx context.Context, sig *sgorpc.TransactionSignature) (event.Event, bool) {
	var res *sgorpc.GetTransactionResult
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if 0 < attempt {
			if err := e1.sleep(ctx, retryBase<<uint(attempt-1)); err != nil {
				return nil, false
			}
		}
		ep, err := e1.pool.Select(ctx)
		if err != nil {
			continue
		}
		e1.limiter.Take()
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		res, err = ep.Gateway().Transaction(fetchCtx, sig.Signature)
		cancel()
		if err == nil {
			break
		}
		res = nil
		e1.pool.MarkFailure(ep, err)
		e1.log.Debugf("tx fetch attempt %d failed sig=%s class=%s", attempt+1, sig.Signature, pool.Classify(err))
	}
	if res == nil {
		return nil, false
	}

	src := event.Source{Memo: sig.Memo}
	if res.Transaction != nil {
		if tx, err := sgo.TransactionFromDecoder(bin.NewBinDecoder(res.Transaction.GetBinary())); err == nil {
			src.Tx = tx
		}
	}
	if res.Meta != nil {
		src.Logs = res.Meta.LogMessages
	}
	ev := event.DecodeSource(src)
	if ev == nil {
		return nil, false
	}
	return ev, true
}
