// Package script builds and submits event-carrying transactions: a
// nominal anchor transfer under the selected registry, any fee or
// creator transfers, and the encoded event memo.
package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	sgosys "github.com/gagliardetto/solana-go/programs/system"
	log "github.com/sirupsen/logrus"
	"github.com/solfeed/solfeed-tool/confirm"
	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/feed"
	"github.com/solfeed/solfeed-tool/pool"
	"github.com/solfeed/solfeed-tool/registry"
	"github.com/solfeed/solfeed-tool/util"
)

const (
	blockhashTimeout = 5 * time.Second
	// nominal lamports anchoring a write under its registry
	defaultAnchorLamports = 5_000
)

type Configuration struct {
	// FeeBps is the platform fee in basis points applied to tips.
	FeeBps uint64
	// AnchorLamports overrides the nominal registry transfer amount.
	AnchorLamports uint64
	// FeeCollector receives the platform fee share of tips.
	FeeCollector *sgo.PublicKey
}

// Transfer is one extra lamport movement bundled into a write.
type Transfer struct {
	To       sgo.PublicKey
	Lamports uint64
}

type Script struct {
	ctx      context.Context
	pool     *pool.Pool
	resolver *registry.Resolver
	signer   Signer
	poller   *confirm.Poller
	config   Configuration
	log      *log.Entry
}

func Create(
	ctx context.Context,
	config Configuration,
	p *pool.Pool,
	r *registry.Resolver,
	signer Signer,
	poller *confirm.Poller,
) (*Script, error) {
	if p == nil || r == nil {
		return nil, errors.New("no pool or resolver")
	}
	if config.AnchorLamports == 0 {
		config.AnchorLamports = defaultAnchorLamports
	}
	return &Script{
		ctx:      ctx,
		pool:     p,
		resolver: r,
		signer:   signer,
		poller:   poller,
		config:   config,
		log:      log.WithField("component", "script"),
	}, nil
}

// Publish submits an event and returns its signature as soon as a
// gateway accepts the submission. Confirmation is handed off to the
// poller; a later confirmation timeout is a warning, not a failure.
func (e1 *Script) Publish(ctx context.Context, ev event.Event, transfers []Transfer) (sgo.Signature, error) {
	sig, err := e1.Submit(ctx, ev, transfers)
	if err != nil {
		return sgo.Signature{}, err
	}
	if e1.poller != nil {
		go e1.watch(sig)
	}
	return sig, nil
}

// Submit is the synchronous half of Publish: build, sign, send.
func (e1 *Script) Submit(ctx context.Context, ev event.Event, transfers []Transfer) (sgo.Signature, error) {
	if e1.signer == nil {
		return sgo.Signature{}, ErrSignerUnavailable
	}
	data, err := event.Encode(ev)
	if err != nil {
		return sgo.Signature{}, err
	}
	mctx, release := util.MergeCtx(ctx, e1.ctx)
	defer release()

	reg, err := e1.resolver.SelectForWrite(mctx)
	if err != nil {
		return sgo.Signature{}, err
	}
	ep, err := e1.pool.Select(mctx)
	if err != nil {
		return sgo.Signature{}, err
	}
	hashCtx, cancel := context.WithTimeout(mctx, blockhashTimeout)
	blockhash, err := ep.Gateway().LatestBlockhash(hashCtx)
	cancel()
	if err != nil {
		e1.pool.MarkFailure(ep, err)
		return sgo.Signature{}, err
	}

	payer := e1.signer.PublicKey()
	builder := sgo.NewTransactionBuilder()
	builder.SetFeePayer(payer)

	anchor := sgosys.NewTransferInstructionBuilder()
	anchor.SetFundingAccount(payer)
	anchor.SetRecipientAccount(reg)
	anchor.SetLamports(e1.config.AnchorLamports)
	builder.AddInstruction(anchor.Build())

	for _, tr := range transfers {
		if tr.Lamports == 0 {
			continue
		}
		b := sgosys.NewTransferInstructionBuilder()
		b.SetFundingAccount(payer)
		b.SetRecipientAccount(tr.To)
		b.SetLamports(tr.Lamports)
		builder.AddInstruction(b.Build())
	}

	builder.AddInstruction(sgo.NewInstruction(
		event.MemoProgramID,
		sgo.AccountMetaSlice{sgo.NewAccountMeta(payer, false, true)},
		data,
	))
	builder.SetRecentBlockHash(blockhash)

	tx, err := builder.Build()
	if err != nil {
		return sgo.Signature{}, err
	}
	sig, err := e1.signer.SignAndSend(mctx, tx)
	if err != nil {
		if IsCancellation(err) {
			return sgo.Signature{}, ErrUserCancelled
		}
		return sgo.Signature{}, err
	}
	e1.log.Infof("submitted sig=%s registry=%s kind=%s", sig, reg, ev.Kind())
	return sig, nil
}

// Like publishes a like event and routes the tip: the creator receives
// the net share, the configured collector the fee.
func (e1 *Script) Like(ctx context.Context, contentID string, creator sgo.PublicKey, amount uint64, superlike bool) (sgo.Signature, error) {
	if e1.signer == nil {
		return sgo.Signature{}, ErrSignerUnavailable
	}
	share := feed.CreatorShare(amount, e1.config.FeeBps)
	transfers := []Transfer{}
	if 0 < share {
		transfers = append(transfers, Transfer{To: creator, Lamports: share})
	}
	if e1.config.FeeCollector != nil && share < amount {
		transfers = append(transfers, Transfer{To: *e1.config.FeeCollector, Lamports: amount - share})
	}
	ev := event.Like{
		ContentID: contentID,
		Liker:     e1.signer.PublicKey().String(),
		Amount:    amount,
		Superlike: superlike,
	}
	return e1.Publish(ctx, ev, transfers)
}

func (e1 *Script) watch(sig sgo.Signature) {
	outcome, err := e1.poller.Await(e1.ctx, sig)
	if err != nil {
		e1.log.Debugf("confirmation watch ended early sig=%s: %s", sig, err)
		return
	}
	if outcome == confirm.Exhausted {
		e1.log.Warnf("confirmation timed out sig=%s; write assumed likely-successful", sig)
		return
	}
	e1.log.Debugf("confirmed sig=%s", sig)
}

// AwaitConfirmation exposes the poller for callers that want to block
// on inclusion themselves.
func (e1 *Script) AwaitConfirmation(ctx context.Context, sig sgo.Signature) (confirm.Outcome, error) {
	if e1.poller == nil {
		return 0, fmt.Errorf("no poller attached")
	}
	mctx, release := util.MergeCtx(ctx, e1.ctx)
	defer release()
	return e1.poller.Await(mctx, sig)
}
