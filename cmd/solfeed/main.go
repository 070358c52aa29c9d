package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/solfeed/solfeed-tool/confirm"
	"github.com/solfeed/solfeed-tool/feed"
	"github.com/solfeed/solfeed-tool/pool"
	"github.com/solfeed/solfeed-tool/registry"
	"github.com/solfeed/solfeed-tool/util"
)

type CLIContext struct {
	Ctx     context.Context
	Clients *Clients
}

type debugFlag bool

var cli struct {
	Verbose    debugFlag `help:"Set logging to verbose." short:"v" default:"false"`
	EnvFile    string    `option:"" name:"env" help:"Path to an env file loaded before flags are read." default:""`
	Rpc        string    `option:"" name:"rpc" help:"Comma separated gateway RPC urls (ie https://api.mainnet-beta.solana.com). Falls back to RPC_URLS/RPC_URL."`
	Owner      string    `option:"" name:"owner" help:"Owner account anchoring manifest discovery."`
	Registry   string    `option:"" name:"registry" help:"Explicit registry address; skips manifest discovery."`
	Tag        string    `option:"" name:"tag" default:"registry.v1" help:"Manifest tag to match during discovery."`
	Shard      bool      `option:"" name:"shard" help:"Spread writes over registries by time bucket."`
	FeeBps     uint64    `option:"" name:"fee-bps" default:"1000" help:"Platform fee on tips, in basis points."`
	Spacing    uint64    `option:"" name:"spacing-ms" default:"250" help:"Minimum milliseconds between transaction body fetches."`
	Feed       Feed      `cmd:"" name:"feed" help:"Read the event feed."`
	Publish    Publish   `cmd:"" name:"publish" help:"Publish a post."`
	Like       Like      `cmd:"" name:"like" help:"Like a post, optionally with a tip."`
	Tallies    Tallies   `cmd:"" name:"tallies" help:"Print like/tip tallies over recent history."`
	Registries Regs      `cmd:"" name:"registries" help:"Print the active registries."`
	Serve      Serve     `cmd:"" name:"serve" help:"Serve the precomputed feed and like-count endpoints."`
}

// Clients wires the shared read stack once per invocation.
type Clients struct {
	Pool     *pool.Pool
	Resolver *registry.Resolver
	Poller   *confirm.Poller
	FeeBps   uint64
	Spacing  time.Duration
}

func (d debugFlag) AfterApply() error {
	if d {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	return nil
}

func buildClients() (*Clients, error) {
	var urls []string
	if len(cli.Rpc) != 0 {
		urls = util.SplitList(cli.Rpc)
	} else {
		config, err := util.RpcConfigFromEnv()
		if err != nil {
			return nil, err
		}
		urls = config.Urls
	}
	p, err := pool.Create(urls)
	if err != nil {
		return nil, err
	}
	regConfig := registry.Config{
		Tag:      cli.Tag,
		Sharding: cli.Shard,
	}
	if len(cli.Owner) != 0 {
		owner, err := sgo.PublicKeyFromBase58(cli.Owner)
		if err != nil {
			return nil, fmt.Errorf("bad owner address: %w", err)
		}
		regConfig.Owner = owner
	}
	if len(cli.Registry) != 0 {
		explicit, err := sgo.PublicKeyFromBase58(cli.Registry)
		if err != nil {
			return nil, fmt.Errorf("bad registry address: %w", err)
		}
		regConfig.Explicit = &explicit
	}
	resolver, err := registry.Create(p, regConfig)
	if err != nil {
		return nil, err
	}
	poller, err := confirm.Create(p)
	if err != nil {
		return nil, err
	}
	return &Clients{
		Pool:     p,
		Resolver: resolver,
		Poller:   poller,
		FeeBps:   cli.FeeBps,
		Spacing:  time.Duration(cli.Spacing) * time.Millisecond,
	}, nil
}

func (c *Clients) Paginator() (*feed.Paginator, error) {
	return feed.Create(c.Pool, c.Resolver, c.Spacing)
}

func main() {
	// the env file feeds RPC_URLS before flags are parsed
	if path := os.Getenv("SOLFEED_ENV"); len(path) != 0 {
		godotenv.Load(path)
	} else {
		godotenv.Load()
	}

	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, syscall.SIGTERM, syscall.SIGINT)
	ctx, cancel := context.WithCancel(context.Background())
	go loopSignal(ctx, cancel, signalC)

	kongCtx := kong.Parse(&cli)
	if len(cli.EnvFile) != 0 {
		godotenv.Overload(cli.EnvFile)
	}
	clients, err := buildClients()
	kongCtx.FatalIfErrorf(err)
	err = kongCtx.Run(&CLIContext{Ctx: ctx, Clients: clients})
	kongCtx.FatalIfErrorf(err)
}

func loopSignal(ctx context.Context, cancel context.CancelFunc, signalC <-chan os.Signal) {
	defer cancel()
	doneC := ctx.Done()
	select {
	case <-doneC:
	case s := <-signalC:
		os.Stderr.WriteString(fmt.Sprintf("%s\n", s.String()))
	}
}
