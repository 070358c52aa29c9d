package registry

import (
	"context"
	"encoding/binary"
	"hash/fnv"

	sgo "github.com/gagliardetto/solana-go"
)

// SelectForWrite picks the registry a new write should anchor under.
// With sharding on, the current time is hashed into a fixed bucket so
// concurrent writers land on the same registry (read locality) while
// the choice rotates across buckets over time (load spread).
func (e1 *Resolver) SelectForWrite(ctx context.Context) (sgo.PublicKey, error) {
	regs, err := e1.ActiveRegistries(ctx)
	if err != nil {
		return sgo.PublicKey{}, err
	}
	if len(regs) == 1 || !e1.config.Sharding {
		return regs[0], nil
	}
	bucket := e1.now().Unix() / int64(e1.config.ShardWindow.Seconds())
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(bucket))
	h := fnv.New64a()
	h.Write(buf[:])
	return regs[h.Sum64()%uint64(len(regs))], nil
}
