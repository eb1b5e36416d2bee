package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jgourd/leadharvest/internal/harvest"
)

func TestCSVSinkWritesBatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "leads.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)

	seen := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	err = s.Write(context.Background(), []harvest.LeadRecord{
		{Company: "Acme Logistics", URL: "https://easyapply.co/job/a", FirstSeenAt: seen},
		{Company: "Bravo, Bakery", URL: "https://easyapply.co/job/b", FirstSeenAt: seen},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"company_name,source_url,first_seen_at\n"+
			"Acme Logistics,https://easyapply.co/job/a,2026-08-31T09:30:00Z\n"+
			"\"Bravo, Bakery\",https://easyapply.co/job/b,2026-08-31T09:30:00Z\n",
		string(data),
	)
}

func TestCSVSinkEmptyBatchKeepsHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "leads.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "company_name,source_url,first_seen_at\n", string(data))
}

func TestCSVSinkReplacesPreviousRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "leads.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)

	seen := time.Now().UTC()
	require.NoError(t, s.Write(context.Background(), []harvest.LeadRecord{
		{Company: "Old Co", URL: "https://easyapply.co/job/old", FirstSeenAt: seen},
	}))
	require.NoError(t, s.Write(context.Background(), []harvest.LeadRecord{
		{Company: "New Co", URL: "https://easyapply.co/job/new", FirstSeenAt: seen},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "New Co")
	require.NotContains(t, string(data), "Old Co")
}

func TestNewCSVSinkRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSVSink("")
	require.Error(t, err)
}
