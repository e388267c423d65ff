package httpx

import (
	"net/http"
	"time"
)

// Outbound LLM and Slack calls share one client, so one timeout and one
// connection pool govern them.

const (
	defaultExternalHTTPTimeout = 90 * time.Second

	// Idle connections kept per host beyond the parallel batch calls, for
	// the retry pass and Slack posts.
	spareIdleConnsPerHost = 2
)

type Settings struct {
	TimeoutSeconds int
	// MaxParallelCalls is the number of provider calls that may be in
	// flight at once.
	MaxParallelCalls int
}

var externalHTTPClient = &http.Client{
	Timeout:   defaultExternalHTTPTimeout,
	Transport: newTransport(1),
}

func ExternalHTTPClient() *http.Client {
	return externalHTTPClient
}

// ConfigureExternalHTTPClient updates the shared client in place and returns
// the applied timeout.
func ConfigureExternalHTTPClient(s Settings) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if s.TimeoutSeconds > 0 {
		timeout = time.Duration(s.TimeoutSeconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	externalHTTPClient.Transport = newTransport(s.MaxParallelCalls)
	return timeout
}

func ExternalHTTPTimeout() time.Duration {
	return externalHTTPClient.Timeout
}

func newTransport(parallel int) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = max(parallel, 1) + spareIdleConnsPerHost
	return t
}
