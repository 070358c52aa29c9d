package main

import (
	"github.com/solfeed/solfeed-tool/feed"
	"github.com/solfeed/solfeed-tool/web"
)

type Serve struct {
	Listen string `option:"" name:"listen" default:":8080" help:"Listen address for the feed server."`
}

func (r *Serve) Run(kongCtx *CLIContext) error {
	pg, err := kongCtx.Clients.Paginator()
	if err != nil {
		return err
	}
	agg, err := feed.CreateAggregator(pg, kongCtx.Clients.FeeBps)
	if err != nil {
		return err
	}
	server, err := web.CreateServer(pg, agg)
	if err != nil {
		return err
	}
	return server.Run(kongCtx.Ctx, r.Listen)
}
