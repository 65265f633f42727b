package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey    string
	APISecret string

	// Testnet switches both REST and websocket endpoints.
	Testnet     bool
	RESTBaseURL string
	HTTPTimeout time.Duration
}

const (
	mainnetRESTBaseURL = "https://fapi.binance.com"
	testnetRESTBaseURL = "https://testnet.binancefuture.com"
)

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		if out.Testnet {
			out.RESTBaseURL = testnetRESTBaseURL
		} else {
			out.RESTBaseURL = mainnetRESTBaseURL
		}
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}
