package main

import (
	"fmt"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/solfeed/solfeed-tool/script"
)

type Like struct {
	Key       string `arg:"" name:"key" help:"File path of the signing private key (solana-keygen format)."`
	ContentID string `arg:"" name:"content" help:"Content id to like."`
	Creator   string `arg:"" name:"creator" help:"Creator address receiving the tip."`
	Amount    uint64 `option:"" name:"amount" default:"5000" help:"Tip amount in lamports."`
	Super     bool   `option:"" name:"super" help:"Mark as a superlike."`
	Collector string `option:"" name:"collector" help:"Fee collector address."`
}

func (r *Like) Run(kongCtx *CLIContext) error {
	clients := kongCtx.Clients
	signer, err := script.SignerFromKeygenFile(clients.Pool, r.Key)
	if err != nil {
		return err
	}
	creator, err := sgo.PublicKeyFromBase58(r.Creator)
	if err != nil {
		return fmt.Errorf("bad creator address: %w", err)
	}
	config := script.Configuration{FeeBps: clients.FeeBps}
	if len(r.Collector) != 0 {
		collector, err := sgo.PublicKeyFromBase58(r.Collector)
		if err != nil {
			return fmt.Errorf("bad collector address: %w", err)
		}
		config.FeeCollector = &collector
	}
	s, err := script.Create(
		kongCtx.Ctx,
		config,
		clients.Pool,
		clients.Resolver,
		signer,
		clients.Poller,
	)
	if err != nil {
		return err
	}
	sig, err := s.Like(kongCtx.Ctx, r.ContentID, creator, r.Amount, r.Super)
	if err != nil {
		return err
	}
	fmt.Printf("signature: %s\n", sig)
	return nil
}
