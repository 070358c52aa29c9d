package util

import (
	"errors"
	"os"
	"strings"
)

// RpcConfig holds the gateway endpoint list. Endpoints are plain urls;
// keys or origin restrictions live inside the url itself.
type RpcConfig struct {
	Urls []string
}

// RpcConfigFromEnv reads RPC_URLS (comma separated) or the single
// RPC_URL.
func RpcConfigFromEnv() (*RpcConfig, error) {
	config := new(RpcConfig)
	if list := os.Getenv("RPC_URLS"); len(strings.TrimSpace(list)) != 0 {
		config.Urls = SplitList(list)
	} else if single := os.Getenv("RPC_URL"); len(single) != 0 {
		config.Urls = []string{single}
	}
	if len(config.Urls) == 0 {
		return nil, errors.New("no rpc url")
	}
	return config, nil
}

// SplitList splits a comma separated value, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		out = append(out, part)
	}
	return out
}
