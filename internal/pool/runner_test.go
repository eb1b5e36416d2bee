package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jgourd/leadharvest/internal/extract"
	"github.com/jgourd/leadharvest/internal/harvest"
	"github.com/jgourd/leadharvest/internal/hash/sha256"
	"github.com/jgourd/leadharvest/internal/storage/memory"
)

type countingFetcher struct {
	inFlight atomic.Int64
	peak     atomic.Int64
	fail     map[string]error
	body     func(url string) []byte
}

func (f *countingFetcher) Fetch(_ context.Context, request harvest.FetchRequest) (harvest.Document, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if cur <= old || f.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	if err, ok := f.fail[request.URL]; ok {
		return harvest.Document{}, err
	}
	body := []byte(`<html><head><title>Acme | Apply Now</title></head><body>heartland</body></html>`)
	if f.body != nil {
		body = f.body(request.URL)
	}
	return harvest.Document{URL: request.URL, StatusCode: 200, Body: body}, nil
}

type tickClock struct{}

func (tickClock) Now() time.Time { return time.Now() }

func newRunner(f harvest.Fetcher, archive harvest.Archive, cfg Config) *Runner {
	return New(f, extract.NewCascade(nil), archive, nil, tickClock{}, uuid.New(), cfg, nil)
}

func refs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://easyapply.co/job/%d", i)
	}
	return out
}

func TestRunner_ConcurrencyBound(t *testing.T) {
	t.Parallel()

	f := &countingFetcher{}
	r := newRunner(f, nil, Config{Workers: 3})

	outcomes := r.Run(context.Background(), refs(20))
	require.Len(t, outcomes, 20)
	require.LessOrEqual(t, f.peak.Load(), int64(3))
	require.GreaterOrEqual(t, f.peak.Load(), int64(2))

	done, total := r.Progress()
	require.Equal(t, int64(20), done)
	require.Equal(t, int64(20), total)
}

func TestRunner_MixedOutcomes(t *testing.T) {
	t.Parallel()

	f := &countingFetcher{fail: map[string]error{
		"https://easyapply.co/job/1": harvest.Oversized(9<<20, 8<<20),
	}}
	r := newRunner(f, nil, Config{Workers: 4})

	outcomes := r.Run(context.Background(), refs(3))
	require.Len(t, outcomes, 3)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].URL < outcomes[j].URL })

	require.NoError(t, outcomes[0].Err)
	require.Equal(t, "Acme", outcomes[0].Fact.Company)
	require.Error(t, outcomes[1].Err)
	require.Equal(t, harvest.KindOversized, harvest.KindOf(outcomes[1].Err))
	require.NoError(t, outcomes[2].Err)
}

func TestRunner_MarkerGuardRejectsUnrelatedContent(t *testing.T) {
	t.Parallel()

	f := &countingFetcher{body: func(url string) []byte {
		if url == "https://easyapply.co/job/0" {
			return []byte(`<html><body>parked domain for sale</body></html>`)
		}
		return []byte(`<html><head><title>Acme | Apply Now</title></head><body>HeartLand listing</body></html>`)
	}}
	r := newRunner(f, nil, Config{Workers: 2, RequireMarker: "heartland"})

	outcomes := r.Run(context.Background(), refs(2))
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].URL < outcomes[j].URL })

	require.Error(t, outcomes[0].Err)
	require.Equal(t, harvest.KindMalformed, harvest.KindOf(outcomes[0].Err))
	require.NoError(t, outcomes[1].Err)
	require.Equal(t, "Acme", outcomes[1].Fact.Company)
}

func TestRunner_ArchivesFetchedBodies(t *testing.T) {
	t.Parallel()

	archive := memory.New()
	r := newRunner(&countingFetcher{}, archive, Config{Workers: 2})

	runID := r.runID.String()
	outcomes := r.Run(context.Background(), refs(3))
	require.Len(t, outcomes, 3)

	require.Equal(t, 3, archive.Len())
	name := runID + "/" + sha256.Short([]byte("https://easyapply.co/job/0")) + ".html"
	data, ok := archive.Object(name)
	require.True(t, ok)
	require.NotEmpty(t, data)
}

func TestRunner_CancelStopsFeedingWork(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(&countingFetcher{fail: map[string]error{}}, nil, Config{Workers: 2})
	outcomes := r.Run(ctx, refs(50))
	// Workers may drain a handful of items raced in before the cancel is
	// observed, but nowhere near the full list.
	require.Less(t, len(outcomes), 50)
}

func TestRunner_EmptyInput(t *testing.T) {
	t.Parallel()

	r := newRunner(&countingFetcher{}, nil, Config{})
	require.Empty(t, r.Run(context.Background(), nil))

	done, total := r.Progress()
	require.Zero(t, done)
	require.Zero(t, total)
}

func TestRunner_FetchErrorListedOnce(t *testing.T) {
	t.Parallel()

	f := &countingFetcher{fail: map[string]error{
		"https://easyapply.co/job/0": errors.New("plain failure"),
	}}
	r := newRunner(f, nil, Config{Workers: 1})

	outcomes := r.Run(context.Background(), refs(1))
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	require.Zero(t, outcomes[0].Fact.Company)
}
