package netwatch

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPProber determines reachability by hitting the backend health endpoint.
// A 2xx answer means connected and reachable; transport failures mean offline.
type HTTPProber struct {
	client *resty.Client
}

// NewHTTPProber builds a prober against baseURL (the hosted document API or
// the local emulator).
func NewHTTPProber(baseURL string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &HTTPProber{client: c}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) State {
	resp, err := p.client.R().SetContext(ctx).Get("/v0/health")
	if err != nil {
		return State{Connected: false, InternetReachable: false}
	}
	ok := resp.IsSuccess()
	return State{Connected: true, InternetReachable: ok, TransportType: "http"}
}
