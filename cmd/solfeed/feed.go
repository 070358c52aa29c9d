package main

import (
	"fmt"
	"strings"

	"github.com/solfeed/solfeed-tool/event"
	"github.com/solfeed/solfeed-tool/feed"
	"github.com/solfeed/solfeed-tool/util"
	"github.com/solfeed/solfeed-tool/web"
)

type Feed struct {
	Limit  int    `option:"" name:"limit" default:"20" help:"Page size."`
	Cursor string `option:"" name:"cursor" help:"Opaque cursor token from a previous page."`
	Remote string `option:"" name:"remote" help:"Read from a precomputed feed endpoint instead of the ledger."`
}

func (r *Feed) Run(kongCtx *CLIContext) error {
	cursor, err := feed.ParseToken(r.Cursor)
	if err != nil {
		return err
	}
	var src feed.Source
	if len(r.Remote) != 0 {
		src, err = web.CreateClient(r.Remote)
	} else {
		src, err = kongCtx.Clients.Paginator()
	}
	if err != nil {
		return err
	}
	page, err := src.FetchPage(kongCtx.Ctx, cursor, r.Limit)
	if err != nil {
		return err
	}
	for _, item := range page.Items {
		printItem(item)
	}
	token, err := page.Next.Token()
	if err != nil {
		return err
	}
	if len(token) != 0 {
		fmt.Printf("next cursor: %s\n", token)
	}
	return nil
}

func printItem(item feed.Item) {
	when := ""
	if !item.BlockTime.IsZero() {
		when = item.BlockTime.Format("2006-01-02 15:04:05")
	}
	switch ev := item.Event.(type) {
	case event.Publish:
		fmt.Printf("[%d] %s post %s by %s\n", item.Slot, when, ev.ContentKey, ev.Creator)
		for _, line := range ev.Lines {
			fmt.Printf("    %s\n", line)
		}
	case event.Like:
		mark := "like"
		if ev.Superlike {
			mark = "superlike"
		}
		fmt.Printf("[%d] %s %s on %s by %s (%s)\n",
			item.Slot, when, mark, ev.ContentID, ev.Liker, util.FormatSOL(ev.Amount))
	case event.Manifest:
		fmt.Printf("[%d] %s manifest tag=%s registries=%s\n",
			item.Slot, when, ev.Tag, strings.Join(ev.Registries, ","))
	}
}
