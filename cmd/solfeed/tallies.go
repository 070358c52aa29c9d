package main

import (
	"fmt"
	"sort"

	"github.com/solfeed/solfeed-tool/feed"
	"github.com/solfeed/solfeed-tool/util"
)

type Tallies struct {
	Scan int `option:"" name:"scan" default:"200" help:"How many recent transactions to scan."`
}

func (r *Tallies) Run(kongCtx *CLIContext) error {
	pg, err := kongCtx.Clients.Paginator()
	if err != nil {
		return err
	}
	agg, err := feed.CreateAggregator(pg, kongCtx.Clients.FeeBps)
	if err != nil {
		return err
	}
	tallies, err := agg.RecentTallies(kongCtx.Ctx, r.Scan)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := tallies[id]
		fmt.Printf("%s likes=%d tips=%s\n", id, t.Likes, util.FormatSOL(t.TipSum))
	}
	return nil
}

type Regs struct {
}

func (r *Regs) Run(kongCtx *CLIContext) error {
	regs, err := kongCtx.Clients.Resolver.ActiveRegistries(kongCtx.Ctx)
	if err != nil {
		return err
	}
	for _, reg := range regs {
		fmt.Println(reg.String())
	}
	return nil
}
