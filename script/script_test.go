package script

import (
	"context"
	"errors"
	"testing"

	sgo "github.com/gagliardetto/solana-go"
	sgosys "github.com/gagliardetto/solana-go/programs/system"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/solfeed/solfeed-tool/confirm"
	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/pool"
	"github.com/solfeed/solfeed-tool/registry"
)

type writeGateway struct {
	statusQueries int
}

func (g *writeGateway) Slot(ctx context.Context) (uint64, error) { return 1, nil }
func (g *writeGateway) LatestBlockhash(ctx context.Context) (sgo.Hash, error) {
	return sgo.Hash{1, 2, 3}, nil
}
func (g *writeGateway) SignaturesFor(ctx context.Context, account sgo.PublicKey, before sgo.Signature, limit int) ([]*sgorpc.TransactionSignature, error) {
	return nil, nil
}
func (g *writeGateway) Transaction(ctx context.Context, sig sgo.Signature) (*sgorpc.GetTransactionResult, error) {
	return nil, nil
}
func (g *writeGateway) SignatureStatuses(ctx context.Context, sigs []sgo.Signature) ([]*sgorpc.SignatureStatusesResult, error) {
	g.statusQueries++
	return []*sgorpc.SignatureStatusesResult{nil}, nil
}
func (g *writeGateway) SendTransaction(ctx context.Context, tx *sgo.Transaction) (sgo.Signature, error) {
	return sgo.Signature{9}, nil
}

type fakeSigner struct {
	key  sgo.PrivateKey
	tx   *sgo.Transaction
	fail error
}

func (s *fakeSigner) PublicKey() sgo.PublicKey { return s.key.PublicKey() }
func (s *fakeSigner) SignAndSend(ctx context.Context, tx *sgo.Transaction) (sgo.Signature, error) {
	s.tx = tx
	if s.fail != nil {
		return sgo.Signature{}, s.fail
	}
	return sgo.Signature{7}, nil
}

type harness struct {
	script  *Script
	signer  *fakeSigner
	gateway *writeGateway
	reg     sgo.PublicKey
}

func newHarness(t *testing.T, config Configuration, withSigner bool) *harness {
	t.Helper()
	gw := &writeGateway{}
	p, err := pool.CreateWithDial([]string{"http://a"}, func(string) pool.Gateway { return gw })
	if err != nil {
		t.Fatal(err)
	}
	regKey, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	reg := regKey.PublicKey()
	r, err := registry.Create(p, registry.Config{Explicit: &reg, Owner: reg})
	if err != nil {
		t.Fatal(err)
	}
	poller, err := confirm.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	var signer Signer
	var fs *fakeSigner
	if withSigner {
		key, err := sgo.NewRandomPrivateKey()
		if err != nil {
			t.Fatal(err)
		}
		fs = &fakeSigner{key: key}
		signer = fs
	}
	s, err := Create(context.Background(), config, p, r, signer, poller)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{script: s, signer: fs, gateway: gw, reg: reg}
}

func TestPublishWithoutSigner(t *testing.T) {
	h := newHarness(t, Configuration{}, false)
	_, err := h.script.Publish(context.Background(), event.Publish{
		ContentKey: "k", Creator: "c",
	}, nil)
	if !errors.Is(err, ErrSignerUnavailable) {
		t.Fatalf("expected ErrSignerUnavailable, got %v", err)
	}
}

func TestCancelledSignerNoPolling(t *testing.T) {
	h := newHarness(t, Configuration{}, true)
	h.signer.fail = errors.New("user rejected the request")
	_, err := h.script.Publish(context.Background(), event.Publish{
		ContentKey: "k", Creator: "c",
	}, nil)
	if !errors.Is(err, ErrUserCancelled) {
		t.Fatalf("expected ErrUserCancelled, got %v", err)
	}
	if h.gateway.statusQueries != 0 {
		t.Fatalf("confirmation polled after cancellation: %d queries", h.gateway.statusQueries)
	}
}

func TestSubmitComposition(t *testing.T) {
	h := newHarness(t, Configuration{AnchorLamports: 1234}, true)
	ev := event.Publish{
		ContentKey: "post-1",
		Lines:      []string{"hello"},
		Creator:    h.signer.key.PublicKey().String(),
	}
	sig, err := h.script.Submit(context.Background(), ev, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sig != (sgo.Signature{7}) {
		t.Fatalf("wrong signature: %s", sig)
	}
	tx := h.signer.tx
	if tx == nil {
		t.Fatal("signer never saw a transaction")
	}
	msg := tx.Message
	if !msg.AccountKeys[0].Equals(h.signer.key.PublicKey()) {
		t.Fatal("fee payer is not the signer")
	}
	foundRegistry := false
	for _, k := range msg.AccountKeys {
		if k.Equals(h.reg) {
			foundRegistry = true
		}
	}
	if !foundRegistry {
		t.Fatal("anchor registry missing from transaction")
	}
	var memoData []byte
	for _, ix := range msg.Instructions {
		if msg.AccountKeys[ix.ProgramIDIndex].Equals(event.MemoProgramID) {
			memoData = []byte(ix.Data)
		}
	}
	if memoData == nil {
		t.Fatal("no memo instruction")
	}
	back := event.Decode(memoData)
	if back == nil {
		t.Fatal("memo does not decode")
	}
	if back.(event.Publish).ContentKey != "post-1" {
		t.Fatalf("wrong event in memo: %+v", back)
	}
}

func TestLikeSplitsTip(t *testing.T) {
	collectorKey, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	collector := collectorKey.PublicKey()
	h := newHarness(t, Configuration{FeeBps: 1000, FeeCollector: &collector}, true)
	creatorKey, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	creator := creatorKey.PublicKey()

	_, err = h.script.Like(context.Background(), "post-1", creator, 5000, false)
	if err != nil {
		t.Fatal(err)
	}
	msg := h.signer.tx.Message
	// anchor + creator share + collector fee + memo
	if len(msg.Instructions) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(msg.Instructions))
	}
	found := map[string]bool{}
	for _, k := range msg.AccountKeys {
		found[k.String()] = true
	}
	if !found[creator.String()] || !found[collector.String()] {
		t.Fatal("creator or collector missing from transaction")
	}
}

func TestIsCancellation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, true},
		{errors.New("User rejected the request"), true},
		{errors.New("signing cancelled"), true},
		{errors.New("Transaction denied by user"), true},
		{errors.New("connection refused"), false},
	}
	for i, c := range cases {
		if got := IsCancellation(c.err); got != c.want {
			t.Fatalf("case %d: got %v want %v", i, got, c.want)
		}
	}
}

func sgosysTransfer(from, to sgo.PublicKey, amount uint64) sgo.Instruction {
	b := sgosys.NewTransferInstructionBuilder()
	b.SetFundingAccount(from)
	b.SetRecipientAccount(to)
	b.SetLamports(amount)
	return b.Build()
}

func TestKeypairSignerSigns(t *testing.T) {
	gw := &writeGateway{}
	p, err := pool.CreateWithDial([]string{"http://a"}, func(string) pool.Gateway { return gw })
	if err != nil {
		t.Fatal(err)
	}
	key, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	signer, err := CreateKeypairSigner(p, key)
	if err != nil {
		t.Fatal(err)
	}
	builder := sgo.NewTransactionBuilder()
	builder.SetFeePayer(key.PublicKey())
	b := sgosysTransfer(key.PublicKey(), key.PublicKey(), 1)
	builder.AddInstruction(b)
	builder.SetRecentBlockHash(sgo.Hash{1})
	tx, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := signer.SignAndSend(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if sig != (sgo.Signature{9}) {
		t.Fatalf("wrong signature: %s", sig)
	}
	if len(tx.Signatures) == 0 {
		t.Fatal("transaction left unsigned")
	}
}
