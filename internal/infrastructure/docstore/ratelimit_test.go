package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingClient records how many Search/SearchScroll calls reach the
// wrapped client, so tests can assert the limiter actually gates them
// rather than just passing calls straight through.
type countingClient struct {
	Client
	searches int
}

func (c *countingClient) Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*ScrollPage, error) {
	c.searches++
	return &ScrollPage{Done: true}, nil
}

func TestRateLimitedClient_AllowsWithinBurst(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimitedClient(inner, 10, 3)

	for i := 0; i < 3; i++ {
		_, err := client.Search(context.Background(), "idx", "user", nil, false, 10, time.Second)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, inner.searches)
}

func TestRateLimitedClient_BlocksBeyondBurstUntilContextCancel(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimitedClient(inner, 0.001, 1)

	_, err := client.Search(context.Background(), "idx", "user", nil, false, 10, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Search(ctx, "idx", "user", nil, false, 10, time.Second)
	assert.Error(t, err)
	assert.Equal(t, 1, inner.searches)
}

func TestRateLimitedClient_DelegatesUnthrottledMethods(t *testing.T) {
	inner := &fakePassthroughClient{}
	client := NewRateLimitedClient(inner, 100, 10)

	_, err := client.Get(context.Background(), "idx", "user", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets)
}

type fakePassthroughClient struct {
	gets int
}

func (f *fakePassthroughClient) Get(ctx context.Context, index, docType, id string) (*Document, error) {
	f.gets++
	return &Document{ID: id}, nil
}

func (f *fakePassthroughClient) Index(ctx context.Context, index, docType, id string, source map[string]any, refresh bool) (bool, int64, error) {
	return true, 1, nil
}

func (f *fakePassthroughClient) Delete(ctx context.Context, index, docType, id string, refresh bool) (bool, error) {
	return true, nil
}

func (f *fakePassthroughClient) Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*ScrollPage, error) {
	return &ScrollPage{Done: true}, nil
}

func (f *fakePassthroughClient) SearchScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*ScrollPage, error) {
	return &ScrollPage{Done: true}, nil
}

func (f *fakePassthroughClient) ClearScroll(ctx context.Context, scrollIDs ...string) error {
	return nil
}

var _ Client = (*fakePassthroughClient)(nil)
