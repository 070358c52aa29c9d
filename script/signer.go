package script

import (
	"context"
	"errors"
	"strings"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/solfeed/solfeed-tool/pool"
)

var (
	// ErrSignerUnavailable means a write was attempted with no signing
	// capability attached. Fatal for the write; never retried.
	ErrSignerUnavailable = errors.New("no signer attached")
	// ErrUserCancelled means the signer declined to sign. A distinct
	// outcome, not a failure.
	ErrUserCancelled = errors.New("signing cancelled by user")
)

// Signer is the injected signing capability. A wallet bridge
// implements SignAndSend directly; KeypairSigner signs locally and
// submits raw through the pool.
type Signer interface {
	PublicKey() sgo.PublicKey
	SignAndSend(ctx context.Context, tx *sgo.Transaction) (sgo.Signature, error)
}

// IsCancellation reports whether a signer error is cancellation-shaped.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cancel") ||
		strings.Contains(msg, "reject") ||
		strings.Contains(msg, "denied by user") ||
		strings.Contains(msg, "user denied")
}

const submitTimeout = 9 * time.Second

// KeypairSigner signs with a local private key and submits the raw
// transaction via a pooled gateway.
type KeypairSigner struct {
	key  sgo.PrivateKey
	pool *pool.Pool
}

func CreateKeypairSigner(p *pool.Pool, key sgo.PrivateKey) (*KeypairSigner, error) {
	if p == nil {
		return nil, errors.New("no pool")
	}
	if len(key) == 0 {
		return nil, ErrSignerUnavailable
	}
	return &KeypairSigner{key: key, pool: p}, nil
}

// SignerFromKeygenFile loads a solana-keygen formatted key file.
func SignerFromKeygenFile(p *pool.Pool, path string) (*KeypairSigner, error) {
	key, err := sgo.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, err
	}
	return CreateKeypairSigner(p, key)
}

func (e1 *KeypairSigner) PublicKey() sgo.PublicKey {
	return e1.key.PublicKey()
}

func (e1 *KeypairSigner) SignAndSend(ctx context.Context, tx *sgo.Transaction) (sgo.Signature, error) {
	_, err := tx.Sign(func(p sgo.PublicKey) *sgo.PrivateKey {
		if p.Equals(e1.key.PublicKey()) {
			return &e1.key
		}
		return nil
	})
	if err != nil {
		return sgo.Signature{}, err
	}
	ep, err := e1.pool.Select(ctx)
	if err != nil {
		return sgo.Signature{}, err
	}
	sendCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	sig, err := ep.Gateway().SendTransaction(sendCtx, tx)
	if err != nil {
		e1.pool.MarkFailure(ep, err)
		return sgo.Signature{}, err
	}
	return sig, nil
}
