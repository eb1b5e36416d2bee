package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeduplicator_InsertIsIdempotent(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator()
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	fact := ExtractedFact{URL: "https://easyapply.co/job/1", Company: "Acme Plumbing"}
	require.True(t, d.Add(fact, ts))
	require.False(t, d.Add(fact, ts.Add(time.Hour)))
	require.Equal(t, 1, d.Len())

	// Case-folded value collides too.
	require.False(t, d.Add(ExtractedFact{URL: fact.URL, Company: "ACME PLUMBING"}, ts))
	require.Equal(t, 1, d.Len())

	// First-seen timestamp from the first insert wins.
	records := d.Records()
	require.Len(t, records, 1)
	require.Equal(t, ts, records[0].FirstSeenAt)
}

func TestDeduplicator_SameCompanyDifferentReferenceIsDistinct(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator()
	ts := time.Now().UTC()

	require.True(t, d.Add(ExtractedFact{URL: "https://easyapply.co/job/1", Company: "Acme"}, ts))
	require.True(t, d.Add(ExtractedFact{URL: "https://easyapply.co/job/2", Company: "Acme"}, ts))
	require.Equal(t, 2, d.Len())
}

func TestDeduplicator_RecordsSortedByKey(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator()
	ts := time.Now().UTC()
	d.Add(ExtractedFact{URL: "https://easyapply.co/job/9", Company: "Zeta Co"}, ts)
	d.Add(ExtractedFact{URL: "https://easyapply.co/job/3", Company: "alpha llc"}, ts)
	d.Add(ExtractedFact{URL: "https://easyapply.co/job/5", Company: "Mid Corp"}, ts)

	records := d.Records()
	require.Len(t, records, 3)
	require.Equal(t, "alpha llc", records[0].Company)
	require.Equal(t, "Mid Corp", records[1].Company)
	require.Equal(t, "Zeta Co", records[2].Company)
}

func TestCreditLedger(t *testing.T) {
	t.Parallel()

	l := NewCreditLedger(3)
	require.False(t, l.Exhausted())
	l.Spend(1)
	l.Spend(1)
	require.False(t, l.Exhausted())
	require.Equal(t, 2, l.Used())
	l.Spend(1)
	require.True(t, l.Exhausted())
	l.Spend(-5)
	require.Equal(t, 3, l.Used())
}
