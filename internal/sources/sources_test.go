package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubMedFixtureSearchMatchesTitleAndAbstract(t *testing.T) {
	f := NewPubMedFixture()
	recs, err := f.Search(context.Background(), "systematic review", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "10000001", recs[0]["pmid"])
}

func TestPubMedFixtureSearchEmptyQueryReturnsAll(t *testing.T) {
	f := NewPubMedFixture()
	recs, err := f.Search(context.Background(), "", 100)
	require.NoError(t, err)
	assert.Len(t, recs, 6)
}

func TestPubMedFixtureGetUnknownIDReturnsNotFoundError(t *testing.T) {
	f := NewPubMedFixture()
	_, err := f.Get(context.Background(), "99999999")
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, NamePubMed, nf.Source)
}

func TestClinicalTrialsFixtureGetByID(t *testing.T) {
	f := NewClinicalTrialsFixture()
	rec, err := f.Get(context.Background(), "NCT01000002")
	require.NoError(t, err)
	assert.Equal(t, true, rec["is_registry_only"])
}

func TestDailyMedFixtureReportsAuthConfiguration(t *testing.T) {
	unconfigured := NewDailyMedFixture(false)
	assert.True(t, unconfigured.AuthRequired())
	assert.False(t, unconfigured.AuthConfigured())

	configured := NewDailyMedFixture(true)
	assert.True(t, configured.AuthConfigured())
}

func TestOpenFDAFixtureSearchByReaction(t *testing.T) {
	f := NewOpenFDAFixture()
	recs, err := f.Search(context.Background(), "headache", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "9000002", recs[0]["safetyreportid"])
}

func TestOpenAlexFixtureGetByWorkID(t *testing.T) {
	f := NewOpenAlexFixture()
	rec, err := f.Get(context.Background(), "W1000000001")
	require.NoError(t, err)
	assert.Equal(t, 42, rec["cited_by_count"])
}

func TestClampLimitFallsBackWhenNonPositive(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10))
	assert.Equal(t, 10, clampLimit(-1, 10))
	assert.Equal(t, 3, clampLimit(3, 10))
}

func TestMatchesQueryIsCaseInsensitiveAndMultiTerm(t *testing.T) {
	assert.True(t, matchesQuery("Nicotinamide Riboside trial", "riboside"))
	assert.True(t, matchesQuery("Nicotinamide Riboside trial", "RIBOSIDE FALLS"))
	assert.False(t, matchesQuery("Nicotinamide Riboside trial", "placebo-only"))
}

func TestAllFixturesSatisfyFetcherAndAuthRequirement(t *testing.T) {
	var fetchers []Fetcher = []Fetcher{
		NewPubMedFixture(),
		NewClinicalTrialsFixture(),
		NewDailyMedFixture(true),
		NewOpenFDAFixture(),
		NewOpenAlexFixture(),
	}
	for _, f := range fetchers {
		_, ok := f.(AuthRequirement)
		assert.True(t, ok, "%s fixture must implement AuthRequirement", f.Source())
	}
}
