// Package httpx provides the shared outbound HTTP client used for all
// vendor API calls (LINE Messaging API, Discord webhook).
package httpx

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound vendor call. The push path already
// carries its own per-call context deadline; this gives the webhook relay
// path the same bound.
const DefaultTimeout = 10 * time.Second

// SharedClient returns an HTTP client with connection pooling.
// Use this instead of creating individual clients per component.
func SharedClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
