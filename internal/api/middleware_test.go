package api

import (
	"net/http"
	"testing"
)

func TestLimiterSetReusesPerIP(t *testing.T) {
	l := newLimiterSet()
	a := l.get("1.2.3.4")
	if l.get("1.2.3.4") != a {
		t.Fatal("expected the same limiter for a repeated IP")
	}
	if l.get("5.6.7.8") == a {
		t.Fatal("expected distinct limiters for distinct IPs")
	}
	l.reset()
	if l.get("1.2.3.4") == a {
		t.Fatal("expected a fresh limiter after reset")
	}
}

func TestRateLimitExceeded(t *testing.T) {
	h, cleanup := newTestAPIServer(t)
	defer cleanup()

	client := h.server.Client()
	limited := false
	for i := 0; i < 70; i++ {
		resp, err := client.Get(h.server.URL + "/health")
		if err != nil {
			t.Fatalf("health: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected a 429 after exhausting the per-IP burst")
	}
}
