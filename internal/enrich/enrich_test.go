package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"fgcrank/ingestion/internal/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	accounts map[int64]client.PlayerAccount
	batches  [][]int64
}

func (f *fakeFetcher) PlayerAccounts(_ context.Context, playerIDs []int64) (map[int64]client.PlayerAccount, error) {
	f.batches = append(f.batches, playerIDs)
	out := map[int64]client.PlayerAccount{}
	for _, id := range playerIDs {
		if acct, ok := f.accounts[id]; ok {
			out[id] = acct
		}
	}
	return out, nil
}

type fakePlayers struct {
	missing []int64
	saved   map[int64]string
}

func (f *fakePlayers) ListMissingDiscriminators(context.Context) ([]int64, error) {
	return f.missing, nil
}

func (f *fakePlayers) SetDiscriminators(_ context.Context, discriminators map[int64]string) error {
	if f.saved == nil {
		f.saved = map[int64]string{}
	}
	for k, v := range discriminators {
		f.saved[k] = v
	}
	return nil
}

type memCache struct {
	data map[string]string
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value
	return nil
}

func TestEnrichMissingResolvesDiscriminators(t *testing.T) {
	fetcher := &fakeFetcher{accounts: map[int64]client.PlayerAccount{
		100: {GamerTag: "alpha", Discriminator: "a1b2c3", HasUser: true},
		200: {GamerTag: "bravo", HasUser: false},
	}}
	players := &fakePlayers{missing: []int64{100, 200}}

	e := New(fetcher, players, nil, time.Hour)
	require.NoError(t, e.EnrichMissing(context.Background()))

	assert.Equal(t, map[int64]string{100: "a1b2c3"}, players.saved)
}

func TestEnrichMissingNoCandidates(t *testing.T) {
	fetcher := &fakeFetcher{}
	players := &fakePlayers{}

	e := New(fetcher, players, nil, time.Hour)
	require.NoError(t, e.EnrichMissing(context.Background()))

	assert.Empty(t, fetcher.batches)
}

func TestEnrichMissingBatchesLookups(t *testing.T) {
	var missing []int64
	for i := int64(0); i < 250; i++ {
		missing = append(missing, i)
	}
	fetcher := &fakeFetcher{}
	players := &fakePlayers{missing: missing}

	e := New(fetcher, players, nil, time.Hour)
	require.NoError(t, e.EnrichMissing(context.Background()))

	require.Len(t, fetcher.batches, 3)
	assert.Len(t, fetcher.batches[0], 100)
	assert.Len(t, fetcher.batches[1], 100)
	assert.Len(t, fetcher.batches[2], 50)
}

type flakyCache struct {
	memCache
	failKeys map[string]bool
}

func (c *flakyCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c.failKeys[key] {
		return "", false, errors.New("connection refused")
	}
	return c.memCache.Get(ctx, key)
}

// A cache failure mid-scan must fall back to the full candidate set, not a
// partially filtered one: players already skipped before the failure still
// get queried.
func TestEnrichMissingCacheFailureQueriesFullSet(t *testing.T) {
	fetcher := &fakeFetcher{accounts: map[int64]client.PlayerAccount{
		1: {GamerTag: "alpha", Discriminator: "aaa111", HasUser: true},
		2: {GamerTag: "bravo", Discriminator: "bbb222", HasUser: true},
		3: {GamerTag: "charlie", Discriminator: "ccc333", HasUser: true},
	}}
	players := &fakePlayers{missing: []int64{1, 2, 3}}

	c := &flakyCache{failKeys: map[string]bool{cacheKey(3): true}}
	require.NoError(t, c.memCache.Set(context.Background(), cacheKey(1), "1", time.Hour))

	e := New(fetcher, players, c, time.Hour)
	require.NoError(t, e.EnrichMissing(context.Background()))

	require.Len(t, fetcher.batches, 1)
	assert.Equal(t, []int64{1, 2, 3}, fetcher.batches[0])
	assert.Equal(t, map[int64]string{1: "aaa111", 2: "bbb222", 3: "ccc333"}, players.saved)
}

// Players without a resolvable user get cached, and cached players are
// skipped on the next run.
func TestEnrichMissingCachesUnresolvable(t *testing.T) {
	fetcher := &fakeFetcher{accounts: map[int64]client.PlayerAccount{
		200: {GamerTag: "bravo", HasUser: false},
	}}
	players := &fakePlayers{missing: []int64{200}}
	c := &memCache{}

	e := New(fetcher, players, c, time.Hour)
	require.NoError(t, e.EnrichMissing(context.Background()))
	require.Len(t, fetcher.batches, 1)

	require.NoError(t, e.EnrichMissing(context.Background()))
	assert.Len(t, fetcher.batches, 1, "cached player must not be re-queried")
}
