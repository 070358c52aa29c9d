package pool

import (
	"context"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
)

// Gateway is the minimal ledger read/write surface the projection
// needs from one RPC endpoint. Implementations must be safe for
// concurrent use.
type Gateway interface {
	// Slot returns the chain head. Used as the cheap health probe.
	Slot(ctx context.Context) (uint64, error)
	// LatestBlockhash returns a fresh anti-replay recency token.
	LatestBlockhash(ctx context.Context) (sgo.Hash, error)
	// SignaturesFor lists up to limit signatures touching account,
	// walking backward from before (zero = newest).
	SignaturesFor(ctx context.Context, account sgo.PublicKey, before sgo.Signature, limit int) ([]*sgorpc.TransactionSignature, error)
	// Transaction fetches one transaction body.
	Transaction(ctx context.Context, sig sgo.Signature) (*sgorpc.GetTransactionResult, error)
	// SignatureStatuses returns the confirmation status for each
	// signature, nil entries for unknown ones.
	SignatureStatuses(ctx context.Context, sigs []sgo.Signature) ([]*sgorpc.SignatureStatusesResult, error)
	// SendTransaction submits a fully signed transaction.
	SendTransaction(ctx context.Context, tx *sgo.Transaction) (sgo.Signature, error)
}

var maxTxVersion uint64 = 0

type rpcGateway struct {
	client *sgorpc.Client
}

// Dial wraps a plain RPC client for one endpoint url.
func Dial(url string) Gateway {
	return &rpcGateway{client: sgorpc.New(url)}
}

func (g *rpcGateway) Slot(ctx context.Context) (uint64, error) {
	return g.client.GetSlot(ctx, sgorpc.CommitmentConfirmed)
}

func (g *rpcGateway) LatestBlockhash(ctx context.Context) (sgo.Hash, error) {
	out, err := g.client.GetLatestBlockhash(ctx, sgorpc.CommitmentFinalized)
	if err != nil {
		return sgo.Hash{}, err
	}
	return out.Value.Blockhash, nil
}

func (g *rpcGateway) SignaturesFor(ctx context.Context, account sgo.PublicKey, before sgo.Signature, limit int) ([]*sgorpc.TransactionSignature, error) {
	opts := &sgorpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: sgorpc.CommitmentConfirmed,
	}
	if !before.IsZero() {
		opts.Before = before
	}
	return g.client.GetSignaturesForAddressWithOpts(ctx, account, opts)
}

func (g *rpcGateway) Transaction(ctx context.Context, sig sgo.Signature) (*sgorpc.GetTransactionResult, error) {
	return g.client.GetTransaction(ctx, sig, &sgorpc.GetTransactionOpts{
		Encoding:                       sgo.EncodingBase64,
		Commitment:                     sgorpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxTxVersion,
	})
}

func (g *rpcGateway) SignatureStatuses(ctx context.Context, sigs []sgo.Signature) ([]*sgorpc.SignatureStatusesResult, error) {
	out, err := g.client.GetSignatureStatuses(ctx, true, sigs...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return out.Value, nil
}

func (g *rpcGateway) SendTransaction(ctx context.Context, tx *sgo.Transaction) (sgo.Signature, error) {
	return g.client.SendTransactionWithOpts(ctx, tx, sgorpc.TransactionOpts{
		SkipPreflight: true,
	})
}
