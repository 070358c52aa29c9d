package web

import (
	sgo "github.com/gagliardetto/solana-go"
	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/feed"
)

// ItemJSON carries one feed item over HTTP. Payload is the raw memo
// bytes; consumers re-run the standard decode/validate path on it, so
// the contract is identical whichever side produced the item.
type ItemJSON struct {
	Kind      string `json:"kind"`
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime int64  `json:"blockTime,omitempty"`
	Payload   []byte `json:"payload"`
}

type PageJSON struct {
	Items      []ItemJSON `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

func PageToJSON(page *feed.Page) (*PageJSON, error) {
	token, err := page.Next.Token()
	if err != nil {
		return nil, err
	}
	out := &PageJSON{
		Items:      make([]ItemJSON, 0, len(page.Items)),
		NextCursor: token,
	}
	for _, item := range page.Items {
		payload, err := event.Encode(item.Event)
		if err != nil {
			continue
		}
		var bt int64
		if !item.BlockTime.IsZero() {
			bt = item.BlockTime.Unix()
		}
		out.Items = append(out.Items, ItemJSON{
			Kind:      item.Event.Kind(),
			Signature: item.Signature.String(),
			Slot:      item.Slot,
			BlockTime: bt,
			Payload:   payload,
		})
	}
	return out, nil
}

// PageFromJSON validates a wire page back into feed items. Items whose
// payload fails decoding are dropped silently, same as ledger reads.
func PageFromJSON(in *PageJSON) (*feed.Page, error) {
	next, err := feed.ParseToken(in.NextCursor)
	if err != nil {
		return nil, err
	}
	page := &feed.Page{Next: next}
	for _, item := range in.Items {
		ev := event.Decode(item.Payload)
		if ev == nil {
			continue
		}
		sig, err := sgo.SignatureFromBase58(item.Signature)
		if err != nil {
			continue
		}
		out := feed.Item{
			Event:     ev,
			Signature: sig,
			Slot:      item.Slot,
		}
		if item.BlockTime != 0 {
			out.BlockTime = timeUnix(item.BlockTime)
		}
		page.Items = append(page.Items, out)
	}
	return page, nil
}
