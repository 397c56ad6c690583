package clients

import (
	"net"
	"net/http"
	"time"

	"fieldtrack-go/internal/config"
)

// NewHTTPClient returns the client used for every remote store call.
// Connections are few and long-lived, so idle pooling stays small.
func NewHTTPClient(cfg config.Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}
	return &http.Client{Transport: transport, Timeout: cfg.RemoteTimeout()}
}
