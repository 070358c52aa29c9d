package feed

import (
	"context"
	"errors"

	"github.com/solfeed/solfeed-tool/event"
)

// Tally is the derived like/tip aggregate for one content id. Never
// authoritative; the ledger is truth and the tally is rebuildable.
type Tally struct {
	Likes  int
	TipSum uint64
}

// Aggregator rescans a bounded recent window and accumulates tallies.
type Aggregator struct {
	src    Source
	feeBps uint64
}

func CreateAggregator(src Source, feeBps uint64) (*Aggregator, error) {
	if src == nil {
		return nil, errors.New("no feed source")
	}
	if 10_000 < feeBps {
		return nil, errors.New("fee above 100%")
	}
	return &Aggregator{src: src, feeBps: feeBps}, nil
}

// CreatorShare is the portion of a tip that reaches the creator: the
// gross amount minus the platform fee, fee floored at one base unit.
func CreatorShare(amount, feeBps uint64) uint64 {
	if amount == 0 {
		return 0
	}
	fee := amount * feeBps / 10_000
	if fee < 1 {
		fee = 1
	}
	if amount <= fee {
		return 0
	}
	return amount - fee
}

// RecentTallies scans the most recent scanLimit transactions of the
// active registries and accumulates like counts and net tip sums per
// content id. Superlikes count as one like-unit, same as likes.
func (e1 *Aggregator) RecentTallies(ctx context.Context, scanLimit int) (map[string]Tally, error) {
	page, err := e1.src.FetchPage(ctx, nil, scanLimit)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Tally)
	for _, item := range page.Items {
		like, ok := item.Event.(event.Like)
		if !ok {
			continue
		}
		t := out[like.ContentID]
		t.Likes++
		t.TipSum += CreatorShare(like.Amount, e1.feeBps)
		out[like.ContentID] = t
	}
	return out, nil
}
