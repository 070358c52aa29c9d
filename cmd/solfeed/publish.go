package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/script"
)

type Publish struct {
	Key       string   `arg:"" name:"key" help:"File path of the signing private key (solana-keygen format)."`
	Text      []string `arg:"" name:"text" help:"Post text, one argument per line."`
	Watermark string   `option:"" name:"watermark" help:"Optional watermark string."`
}

func (r *Publish) Run(kongCtx *CLIContext) error {
	clients := kongCtx.Clients
	signer, err := script.SignerFromKeygenFile(clients.Pool, r.Key)
	if err != nil {
		return err
	}
	s, err := script.Create(
		kongCtx.Ctx,
		script.Configuration{FeeBps: clients.FeeBps},
		clients.Pool,
		clients.Resolver,
		signer,
		clients.Poller,
	)
	if err != nil {
		return err
	}
	ev := event.Publish{
		ContentKey: uuid.NewString(),
		Lines:      r.Text,
		Watermark:  r.Watermark,
		Creator:    signer.PublicKey().String(),
	}
	sig, err := s.Submit(kongCtx.Ctx, ev, nil)
	if err != nil {
		return err
	}
	fmt.Printf("content key: %s\nsignature: %s\n", ev.ContentKey, sig)
	outcome, err := s.AwaitConfirmation(kongCtx.Ctx, sig)
	if err != nil {
		return err
	}
	fmt.Printf("confirmation: %s\n", outcome)
	return nil
}
