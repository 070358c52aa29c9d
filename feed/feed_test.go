package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/pool"
	"github.com/solfeed/solfeed-tool/registry"
)

type ledgerEntry struct {
	sig  sgo.Signature
	slot uint64
	memo string
}

type fakeGateway struct {
	histories map[string][]ledgerEntry // newest first
	failFetch map[sgo.Signature]bool
	fetches   int
}

func (g *fakeGateway) Slot(ctx context.Context) (uint64, error) { return 1, nil }
func (g *fakeGateway) LatestBlockhash(ctx context.Context) (sgo.Hash, error) {
	return sgo.Hash{}, nil
}
func (g *fakeGateway) SignaturesFor(ctx context.Context, account sgo.PublicKey, before sgo.Signature, limit int) ([]*sgorpc.TransactionSignature, error) {
	h := g.histories[account.String()]
	start := 0
	if !before.IsZero() {
		for i, e := range h {
			if e.sig == before {
				start = i + 1
				break
			}
		}
	}
	out := []*sgorpc.TransactionSignature{}
	for i := start; i < len(h) && len(out) < limit; i++ {
		e := h[i]
		ts := &sgorpc.TransactionSignature{Signature: e.sig, Slot: e.slot}
		if len(e.memo) != 0 {
			memo := e.memo
			ts.Memo = &memo
		}
		out = append(out, ts)
	}
	return out, nil
}
func (g *fakeGateway) Transaction(ctx context.Context, sig sgo.Signature) (*sgorpc.GetTransactionResult, error) {
	g.fetches++
	if g.failFetch[sig] {
		return nil, errors.New("502 bad gateway")
	}
	return &sgorpc.GetTransactionResult{}, nil
}
func (g *fakeGateway) SignatureStatuses(ctx context.Context, sigs []sgo.Signature) ([]*sgorpc.SignatureStatusesResult, error) {
	return nil, nil
}
func (g *fakeGateway) SendTransaction(ctx context.Context, tx *sgo.Transaction) (sgo.Signature, error) {
	return sgo.Signature{}, nil
}

func sigN(n int) sgo.Signature {
	var s sgo.Signature
	s[0] = byte(n)
	s[1] = byte(n >> 8)
	s[2] = 1
	return s
}

func likeMemo(t *testing.T, id string, amount uint64) string {
	t.Helper()
	data, err := event.Encode(event.Like{ContentID: id, Liker: "someone", Amount: amount})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func newKey(t *testing.T) sgo.PublicKey {
	t.Helper()
	key, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	return key.PublicKey()
}

func testPaginator(t *testing.T, gw *fakeGateway, reg sgo.PublicKey, urls ...string) *Paginator {
	t.Helper()
	if len(urls) == 0 {
		urls = []string{"http://a"}
	}
	p, err := pool.CreateWithDial(urls, func(string) pool.Gateway { return gw })
	if err != nil {
		t.Fatal(err)
	}
	r, err := registry.Create(p, registry.Config{Explicit: &reg, Owner: reg})
	if err != nil {
		t.Fatal(err)
	}
	pg, err := Create(p, r, 0)
	if err != nil {
		t.Fatal(err)
	}
	pg.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return pg
}

func TestConsecutivePagesNeverOverlap(t *testing.T) {
	reg := newKey(t)
	gw := &fakeGateway{histories: map[string][]ledgerEntry{}}
	var history []ledgerEntry
	for i := 40; 0 < i; i-- {
		history = append(history, ledgerEntry{
			sig:  sigN(i),
			slot: uint64(i * 10),
			memo: likeMemo(t, "content", 100),
		})
	}
	gw.histories[reg.String()] = history
	pg := testPaginator(t, gw, reg)

	page1, err := pg.FetchPage(context.Background(), nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	page2, err := pg.FetchPage(context.Background(), page1.Next, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.Items) != 10 || len(page2.Items) != 10 {
		t.Fatalf("bad page sizes: %d %d", len(page1.Items), len(page2.Items))
	}
	seen := make(map[sgo.Signature]bool)
	for _, item := range page1.Items {
		seen[item.Signature] = true
	}
	for _, item := range page2.Items {
		if seen[item.Signature] {
			t.Fatalf("signature %s appears on both pages", item.Signature)
		}
	}
	for i := 1; i < len(page1.Items); i++ {
		if page1.Items[i-1].Slot < page1.Items[i].Slot {
			t.Fatal("page not newest-first")
		}
	}
}

func TestCursorAdvancesPastNonEvents(t *testing.T) {
	reg := newKey(t)
	var history []ledgerEntry
	// five recent transactions that are not events at all
	for i := 10; 5 < i; i-- {
		history = append(history, ledgerEntry{sig: sigN(i), slot: uint64(i * 10)})
	}
	for i := 5; 2 < i; i-- {
		history = append(history, ledgerEntry{
			sig:  sigN(i),
			slot: uint64(i * 10),
			memo: likeMemo(t, "older", 100),
		})
	}
	gw := &fakeGateway{histories: map[string][]ledgerEntry{reg.String(): history}}
	pg := testPaginator(t, gw, reg)

	page1, err := pg.FetchPage(context.Background(), nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.Items) != 0 {
		t.Fatalf("expected empty first page, got %d items", len(page1.Items))
	}
	if page1.Next[reg.String()] != sigN(6) {
		t.Fatal("cursor did not advance past non-events")
	}
	page2, err := pg.FetchPage(context.Background(), page1.Next, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Items) != 3 {
		t.Fatalf("expected 3 items on second page, got %d", len(page2.Items))
	}
}

func TestSingleFetchFailureDegradesPage(t *testing.T) {
	reg := newKey(t)
	bad := sigN(1)
	history := []ledgerEntry{
		{sig: sigN(3), slot: 30, memo: likeMemo(t, "a", 100)},
		{sig: sigN(2), slot: 20, memo: likeMemo(t, "b", 100)},
		{sig: bad, slot: 10, memo: likeMemo(t, "c", 100)},
	}
	gw := &fakeGateway{
		histories: map[string][]ledgerEntry{reg.String(): history},
		failFetch: map[sgo.Signature]bool{bad: true},
	}
	pg := testPaginator(t, gw, reg, "http://a", "http://b")

	page, err := pg.FetchPage(context.Background(), nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.Next[reg.String()] != bad {
		t.Fatal("cursor did not advance past the failed transaction")
	}
}

func TestMergeAcrossRegistries(t *testing.T) {
	owner := newKey(t)
	regA := newKey(t)
	regB := newKey(t)
	manifest, err := event.Encode(event.Manifest{
		Tag:        "registry.v1",
		Owner:      owner.String(),
		Registries: []string{regA.String(), regB.String()},
		UpdatedAt:  100,
	})
	if err != nil {
		t.Fatal(err)
	}
	manifestMemo := string(manifest)
	gw := &fakeGateway{histories: map[string][]ledgerEntry{
		owner.String(): {{sig: sigN(99), slot: 5, memo: manifestMemo}},
		regA.String(): {
			{sig: sigN(10), slot: 100, memo: likeMemo(t, "a", 100)},
			{sig: sigN(9), slot: 90, memo: likeMemo(t, "a", 100)},
		},
		regB.String(): {
			{sig: sigN(8), slot: 95, memo: likeMemo(t, "b", 100)},
			{sig: sigN(7), slot: 85, memo: likeMemo(t, "b", 100)},
		},
	}}
	p, err := pool.CreateWithDial([]string{"http://a"}, func(string) pool.Gateway { return gw })
	if err != nil {
		t.Fatal(err)
	}
	r, err := registry.Create(p, registry.Config{Owner: owner, Tag: "registry.v1"})
	if err != nil {
		t.Fatal(err)
	}
	pg, err := Create(p, r, 0)
	if err != nil {
		t.Fatal(err)
	}

	page, err := pg.FetchPage(context.Background(), nil, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(page.Items))
	}
	want := []uint64{100, 95, 90, 85}
	for i, item := range page.Items {
		if item.Slot != want[i] {
			t.Fatalf("position %d: slot %d, want %d", i, item.Slot, want[i])
		}
	}
}

func TestCreateWithSpacingAboveOneSecond(t *testing.T) {
	reg := newKey(t)
	gw := &fakeGateway{histories: map[string][]ledgerEntry{
		reg.String(): {{sig: sigN(1), slot: 10, memo: likeMemo(t, "a", 100)}},
	}}
	p, err := pool.CreateWithDial([]string{"http://a"}, func(string) pool.Gateway { return gw })
	if err != nil {
		t.Fatal(err)
	}
	r, err := registry.Create(p, registry.Config{Explicit: &reg, Owner: reg})
	if err != nil {
		t.Fatal(err)
	}
	pg, err := Create(p, r, 1500*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	page, err := pg.FetchPage(context.Background(), nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
}

func TestSharedSignatureNotReplayedAcrossPages(t *testing.T) {
	owner := newKey(t)
	regA := newKey(t)
	regB := newKey(t)
	manifest, err := event.Encode(event.Manifest{
		Tag:        "registry.v1",
		Owner:      owner.String(),
		Registries: []string{regA.String(), regB.String()},
		UpdatedAt:  100,
	})
	if err != nil {
		t.Fatal(err)
	}
	// one transaction that touched both registries shows up in both
	// listings under the same signature
	shared := sigN(9)
	sharedMemo := likeMemo(t, "both", 100)
	gw := &fakeGateway{histories: map[string][]ledgerEntry{
		owner.String(): {{sig: sigN(99), slot: 5, memo: string(manifest)}},
		regA.String(): {
			{sig: sigN(10), slot: 100, memo: likeMemo(t, "a", 100)},
			{sig: shared, slot: 90, memo: sharedMemo},
			{sig: sigN(7), slot: 80, memo: likeMemo(t, "a", 100)},
		},
		regB.String(): {
			{sig: shared, slot: 90, memo: sharedMemo},
		},
	}}
	p, err := pool.CreateWithDial([]string{"http://a"}, func(string) pool.Gateway { return gw })
	if err != nil {
		t.Fatal(err)
	}
	r, err := registry.Create(p, registry.Config{Owner: owner, Tag: "registry.v1"})
	if err != nil {
		t.Fatal(err)
	}
	pg, err := Create(p, r, 0)
	if err != nil {
		t.Fatal(err)
	}

	page1, err := pg.FetchPage(context.Background(), nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page1.Items))
	}
	if page1.Next[regB.String()] != shared {
		t.Fatal("duplicate did not advance the second registry's cursor")
	}
	page2, err := pg.FetchPage(context.Background(), page1.Next, 3)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[sgo.Signature]bool)
	for _, item := range page1.Items {
		seen[item.Signature] = true
	}
	for _, item := range page2.Items {
		if seen[item.Signature] {
			t.Fatalf("signature %s appears on both pages", item.Signature)
		}
	}
	if len(page2.Items) != 1 || page2.Items[0].Slot != 80 {
		t.Fatalf("bad second page: %+v", page2.Items)
	}
}

type stubSource struct {
	page *Page
}

func (s *stubSource) FetchPage(ctx context.Context, cursor Cursor, limit int) (*Page, error) {
	return s.page, nil
}

func TestTallyAccumulation(t *testing.T) {
	items := []Item{}
	for i, amt := range []uint64{5000, 5000, 50000} {
		items = append(items, Item{
			Event:     event.Like{ContentID: "X", Liker: "someone", Amount: amt, Superlike: i == 2},
			Signature: sigN(i + 1),
			Slot:      uint64(i),
		})
	}
	// non-like noise must not count
	items = append(items, Item{
		Event:     event.Publish{ContentKey: "X", Creator: "someone", Lines: []string{"hi"}},
		Signature: sigN(50),
	})
	agg, err := CreateAggregator(&stubSource{page: &Page{Items: items}}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	tallies, err := agg.RecentTallies(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	got := tallies["X"]
	if got.Likes != 3 {
		t.Fatalf("likes=%d, want 3", got.Likes)
	}
	if got.TipSum != 54000 {
		t.Fatalf("tipSum=%d, want 54000", got.TipSum)
	}
}

func TestCreatorShare(t *testing.T) {
	cases := []struct {
		amount, feeBps, want uint64
	}{
		{5000, 1000, 4500},
		{50000, 1000, 45000},
		{0, 1000, 0},
		{5, 0, 4},    // fee floors at one unit
		{1, 1000, 0}, // fee swallows the whole amount
	}
	for i, c := range cases {
		if got := CreatorShare(c.amount, c.feeBps); got != c.want {
			t.Fatalf("case %d: got %d want %d", i, got, c.want)
		}
	}
}

func TestCursorTokenRoundTrip(t *testing.T) {
	c := Cursor{
		newKey(t).String(): sigN(7),
		newKey(t).String(): sigN(9),
	}
	tok, err := c.Token()
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(c) {
		t.Fatalf("size mismatch: %d", len(back))
	}
	for k, v := range c {
		if back[k] != v {
			t.Fatalf("mismatch at %s", k)
		}
	}
	if _, err = ParseToken("!!!not-base58!!!"); err == nil {
		t.Fatal("expected parse failure")
	}
	empty, err := ParseToken("")
	if err != nil || len(empty) != 0 {
		t.Fatal("empty token should parse to empty cursor")
	}
}
