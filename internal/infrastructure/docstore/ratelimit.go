package docstore

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client and throttles its scan operations
// (Search/SearchScroll) with a golang.org/x/time/rate token-bucket limiter,
// applied to the poller's scroll-scan traffic so a misconfigured reload
// interval can't hammer the backing store. Point reads and writes pass
// through unthrottled.
type RateLimitedClient struct {
	Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps client with a limiter allowing
// requestsPerSecond sustained scan calls and bursts of up to burst calls
// (a burst of 0 or less is treated as 1).
func NewRateLimitedClient(client Client, requestsPerSecond float64, burst int) *RateLimitedClient {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{
		Client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (c *RateLimitedClient) Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*ScrollPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Client.Search(ctx, index, docType, ids, withVersion, size, keepAlive)
}

func (c *RateLimitedClient) SearchScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*ScrollPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Client.SearchScroll(ctx, scrollID, keepAlive)
}

var _ Client = (*RateLimitedClient)(nil)
