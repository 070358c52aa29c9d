// Package web serves the precomputed-feed and like-count endpoints
// over plain JSON, and ships the client for consuming a precomputed
// feed instead of walking the ledger directly.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/solfeed/solfeed-tool/feed"
)

const (
	maxPageLimit = 100
	maxScanLimit = 500
	defaultScan  = 200
)

type Server struct {
	src   feed.Source
	tally *feed.Aggregator
	log   *log.Entry
}

func CreateServer(src feed.Source, tally *feed.Aggregator) (*Server, error) {
	if src == nil {
		return nil, errors.New("no feed source")
	}
	return &Server{
		src:   src,
		tally: tally,
		log:   log.WithField("component", "web"),
	}, nil
}

func (e1 *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/feed", e1.handleFeed)
	mux.HandleFunc("/api/likes", e1.handleLikes)
	mux.HandleFunc("/healthz", e1.handleHealth)
	return mux
}

// Run serves until ctx is canceled.
func (e1 *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: e1.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	e1.log.Infof("listening on %s", addr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (e1 *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	reqLog := e1.log.WithField("req", uuid.NewString())
	cursor, err := feed.ParseToken(r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, "bad cursor", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", feed.DefaultPageLimit, maxPageLimit)
	page, err := e1.src.FetchPage(r.Context(), cursor, limit)
	if err != nil {
		reqLog.Infof("feed fetch failed: %s", err)
		http.Error(w, "feed unavailable", http.StatusBadGateway)
		return
	}
	out, err := PageToJSON(page)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	reqLog.Debugf("feed page items=%d", len(out.Items))
	writeJSON(w, out)
}

func (e1 *Server) handleLikes(w http.ResponseWriter, r *http.Request) {
	if e1.tally == nil {
		http.Error(w, "tallies disabled", http.StatusNotFound)
		return
	}
	reqLog := e1.log.WithField("req", uuid.NewString())
	scan := queryInt(r, "scan", defaultScan, maxScanLimit)
	tallies, err := e1.tally.RecentTallies(r.Context(), scan)
	if err != nil {
		reqLog.Infof("tally scan failed: %s", err)
		http.Error(w, "tallies unavailable", http.StatusBadGateway)
		return
	}
	counts := make(map[string]int, len(tallies))
	for id, t := range tallies {
		counts[id] = t.Likes
	}
	writeJSON(w, counts)
}

func (e1 *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func queryInt(r *http.Request, name string, fallback, max int) int {
	raw := r.URL.Query().Get(name)
	if len(raw) == 0 {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if max < n {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
