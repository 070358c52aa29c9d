package pool

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Class buckets a gateway failure into the retry policy it gets.
type Class int

const (
	ClassOK Class = iota
	// ClassRateLimited covers per-tenant quota rejections. Expected
	// under load, short cooldown, never surfaced to callers.
	ClassRateLimited
	// ClassAuthDenied covers key/origin rejections. A configuration
	// problem, penalized hard and surfaced.
	ClassAuthDenied
	// ClassTimeout covers deadline and dial timeouts.
	ClassTimeout
	// ClassTransient is everything else recoverable.
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassRateLimited:
		return "rate-limited"
	case ClassAuthDenied:
		return "auth-denied"
	case ClassTimeout:
		return "timeout"
	default:
		return "transient"
	}
}

// Classify maps an error from a gateway call onto its failure class.
func Classify(err error) Class {
	if err == nil {
		return ClassOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case 429:
			return ClassRateLimited
		case 401, 403:
			return ClassAuthDenied
		}
		return ClassTransient
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		// -32005: node is behind / too many requests on some providers
		if rpcErr.Code == -32005 {
			return ClassRateLimited
		}
		return ClassTransient
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"), strings.Contains(msg, "rate limit"):
		return ClassRateLimited
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"), strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "api key"), strings.Contains(msg, "origin"):
		return ClassAuthDenied
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return ClassTimeout
	}
	return ClassTransient
}
