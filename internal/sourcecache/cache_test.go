package sourcecache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidentia/internal/sources"
)

// requireRedis skips the test unless a live Redis instance is reachable
// at EVIDENTIA_TEST_REDIS_ADDR, mirroring how the eventstore package
// skips its Postgres-dependent tests when no DSN is configured.
func requireRedis(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("EVIDENTIA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EVIDENTIA_TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestWrapReturnsUnchangedFetcherWhenCacheNil(t *testing.T) {
	fetcher := sources.NewPubMedFixture()
	assert.Same(t, fetcher, Wrap(fetcher, nil))
}

func TestCachedFetcherSearchHitsUpstreamOnceThenServesFromCache(t *testing.T) {
	addr := requireRedis(t)
	cache := New(addr, "pubmed-test", time.Minute)
	defer cache.Close()

	counting := &countingFetcher{Fetcher: sources.NewPubMedFixture()}
	wrapped := Wrap(counting, cache)

	ctx := context.Background()
	first, err := wrapped.Search(ctx, "NAD", 5)
	require.NoError(t, err)
	second, err := wrapped.Search(ctx, "NAD", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.searchCalls)
}

type countingFetcher struct {
	sources.Fetcher
	searchCalls int
}

func (f *countingFetcher) Search(ctx context.Context, query string, limit int) ([]sources.Record, error) {
	f.searchCalls++
	return f.Fetcher.Search(ctx, query, limit)
}
