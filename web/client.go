package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/solfeed/solfeed-tool/feed"
)

func timeUnix(ts int64) time.Time { return time.Unix(ts, 0).UTC() }

// Client reads a precomputed feed endpoint, bypassing the gateway pool
// entirely. It satisfies feed.Source, so callers cannot tell the two
// read paths apart.
type Client struct {
	base string
	hc   *http.Client
}

func CreateClient(base string) (*Client, error) {
	if len(base) == 0 {
		return nil, errors.New("no base url")
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 9 * time.Second},
	}, nil
}

func (e1 *Client) FetchPage(ctx context.Context, cursor feed.Cursor, limit int) (*feed.Page, error) {
	token, err := cursor.Token()
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if len(token) != 0 {
		q.Set("cursor", token)
	}
	if 0 < limit {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := e1.base + "/api/feed"
	if len(q) != 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e1.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed endpoint returned %d", resp.StatusCode)
	}
	var page PageJSON
	if err = json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return PageFromJSON(&page)
}

// LikeCounts reads the like-count snapshot endpoint.
func (e1 *Client) LikeCounts(ctx context.Context, scan int) (map[string]int, error) {
	endpoint := e1.base + "/api/likes"
	if 0 < scan {
		endpoint += "?scan=" + strconv.Itoa(scan)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e1.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("likes endpoint returned %d", resp.StatusCode)
	}
	out := make(map[string]int)
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
