package clients

import (
	"testing"
	"time"

	"fieldtrack-go/internal/config"
)

func TestNewHTTPClientTimeout(t *testing.T) {
	cfg := config.Config{}
	cfg.Remote.TimeoutSeconds = 7
	c := NewHTTPClient(cfg)
	if c.Timeout != 7*time.Second {
		t.Fatalf("expected 7s timeout, got %s", c.Timeout)
	}
	if c.Transport == nil {
		t.Fatalf("expected a tuned transport")
	}
}
