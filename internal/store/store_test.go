package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abpcore/filterengine/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.Store{Path: ":memory:", CacheTTL: time.Minute, MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIngestAndLookupRoundTrip(t *testing.T) {
	s := openTestStore(t)

	loaded, failed, err := s.Ingest([]string{
		"||example.com^$script",
		"! a comment, not a rule",
	}, 1)
	require.NoError(t, err)
	require.Equal(t, 1, loaded)
	require.Equal(t, 1, failed)

	filters, err := s.GetFiltersForDomain(context.Background(), "example.com", false)
	require.NoError(t, err)
	require.Len(t, filters, 1)
}

// A lookup for a subdomain fans out across every parent-domain suffix
// and unions the results.
func TestGetFiltersForDomainFansOutAcrossSuffixes(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Ingest([]string{
		"||a.b.c.com^$script",
		"||b.c.com^$image",
		"||c.com^$stylesheet",
		"||com^$font",
		"||other.com^$script",
	}, 1)
	require.NoError(t, err)

	filters, err := s.GetFiltersForDomain(context.Background(), "a.b.c.com", false)
	require.NoError(t, err)
	require.Len(t, filters, 4)
}

// Any Ingest call invalidates the lookup cache, so a second ingest's
// rows are visible on the very next lookup rather than a stale cached
// empty result.
func TestIngestInvalidatesLookupCache(t *testing.T) {
	s := openTestStore(t)

	filters, err := s.GetFiltersForDomain(context.Background(), "example.com", false)
	require.NoError(t, err)
	require.Empty(t, filters)

	_, _, err = s.Ingest([]string{"||example.com^$script"}, 1)
	require.NoError(t, err)

	filters, err = s.GetFiltersForDomain(context.Background(), "example.com", false)
	require.NoError(t, err)
	require.Len(t, filters, 1)
}

func TestWhitelistAndBlacklistAreIndependentBuckets(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Ingest([]string{
		"||example.com^$script",
		"@@||example.com^$script",
	}, 1)
	require.NoError(t, err)

	blacklisted, err := s.GetFiltersForDomain(context.Background(), "example.com", false)
	require.NoError(t, err)
	require.Len(t, blacklisted, 1)
	require.False(t, blacklisted[0].IsException)

	whitelisted, err := s.GetFiltersForDomain(context.Background(), "example.com", true)
	require.NoError(t, err)
	require.Len(t, whitelisted, 1)
	require.True(t, whitelisted[0].IsException)
}

func TestFinalizeForReadRejectsFurtherIngest(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.FinalizeForRead())

	_, _, err := s.Ingest([]string{"||example.com^$script"}, 1)
	require.ErrorIs(t, err, errReadOnly)
}

func TestGlobalDomainKeyUsedForDomainlessRules(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Ingest([]string{"$script"}, 1)
	require.NoError(t, err)

	filters, err := s.GetFiltersForDomain(context.Background(), "", false)
	require.NoError(t, err)
	require.Len(t, filters, 1)

	filters, err = s.GetFiltersForDomain(context.Background(), "anything.example", false)
	require.NoError(t, err)
	require.Empty(t, filters)
}
