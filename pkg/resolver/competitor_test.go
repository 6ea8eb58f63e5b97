package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestResolveCompetitor_CreatesAndReportsExisting(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	ctx := context.Background()

	first := NewCompetitorSession(ids[0])
	res := r.ResolveCompetitor(ctx, first, CompetitorInput{Name: "Globex", WebsiteURL: "https://globex.example"})
	require.Equal(t, StatusResolved, res.Status)
	assert.True(t, res.Created)
	assert.Empty(t, res.Existing)
	assert.Equal(t, []State{StateCheckExisting, StateNone, StateCollectMissingFields, StateCreate, StateResolved}, first.Trail)

	second := NewCompetitorSession(ids[0])
	res = r.ResolveCompetitor(ctx, second, CompetitorInput{Name: "Globex", WebsiteURL: "https://globex.example"})
	require.Equal(t, StatusResolved, res.Status)
	assert.Contains(t, second.Trail, StateHasCompetitors)
	require.Len(t, res.Existing, 1, "existing competitors are reported but do not block")
	assert.Equal(t, first.CompetitorID, res.Existing[0].ID)
	assert.NotEqual(t, first.CompetitorID, res.ID)

	found, err := store.FindCompetitors(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestResolveCompetitor_MissingFields(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	ctx := context.Background()

	t.Run("business id", func(t *testing.T) {
		res := r.ResolveCompetitor(ctx, &CompetitorSession{}, CompetitorInput{Name: "Globex"})
		assert.Equal(t, StatusNeedsFields, res.Status)
		assert.Equal(t, []string{"business_id"}, res.Missing)
	})

	t.Run("website", func(t *testing.T) {
		s := NewCompetitorSession(ids[0])
		res := r.ResolveCompetitor(ctx, s, CompetitorInput{Name: "Globex"})
		require.Equal(t, StatusNeedsFields, res.Status)
		assert.Equal(t, []string{"website_url"}, res.Missing)

		res = r.ResolveCompetitor(ctx, s, CompetitorInput{WebsiteURL: "https://globex.example"})
		require.Equal(t, StatusResolved, res.Status)
		assert.Equal(t, "Globex", res.Competitor.Name)
	})
}

func TestResolveCompetitor_UnknownBusiness(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	ctx := context.Background()

	bad := NewCompetitorSession("biz_missing")
	res := r.ResolveCompetitor(ctx, bad, CompetitorInput{Name: "Globex", WebsiteURL: "https://globex.example"})
	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, models.ErrorKindReference, res.ErrorKind)
	assert.ErrorIs(t, res.Err, models.ErrReference)
	assert.Equal(t, StateFailed, bad.State)

	// terminal: further input does not retry the write
	res = r.ResolveCompetitor(ctx, bad, CompetitorInput{Name: "Initech"})
	assert.Equal(t, models.ErrorKindReference, res.ErrorKind)
	assert.Equal(t, "Globex", bad.Name)

	// a sibling competitor still succeeds
	good := NewCompetitorSession(ids[1])
	res = r.ResolveCompetitor(ctx, good, CompetitorInput{Name: "Initech", WebsiteURL: "https://initech.example"})
	require.Equal(t, StatusResolved, res.Status)

	for _, id := range ids {
		found, err := store.FindCompetitors(ctx, id)
		require.NoError(t, err)
		if id == ids[1] {
			assert.Len(t, found, 1)
		} else {
			assert.Empty(t, found)
		}
	}
}

func TestResolveCompetitor_DirectoryLookup(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, directory.NewStatic(nil, nopLogger()), nopLogger())
	ctx := context.Background()

	s := NewCompetitorSession(ids[0])
	res := r.ResolveCompetitor(ctx, s, CompetitorInput{Name: "Nike", Address: "Houston", LookupDirectory: true})
	require.Equal(t, StatusNeedsConfirmation, res.Status)
	assert.Equal(t, StateDirectoryMatchedMultiple, res.State)
	require.Len(t, res.Candidates, 2)

	res = r.ResolveCompetitor(ctx, s, CompetitorInput{Decision: Decision{Selection: 2}})
	require.Equal(t, StatusResolved, res.Status)
	require.NotNil(t, res.Competitor)
	assert.Equal(t, "Nike Clearance Store", res.Competitor.Name)
	assert.Equal(t, "https://www.nike.com/clearance", res.Competitor.WebsiteURL)
	assert.Equal(t, "ChIJabCdefG7j4ARutYjKLM9012", res.Competitor.ExternalPlaceID)
}

func TestResolveCompetitor_DirectoryRejected(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, directory.NewStatic(nil, nopLogger()), nopLogger())
	ctx := context.Background()

	s := NewCompetitorSession(ids[0])
	res := r.ResolveCompetitor(ctx, s, CompetitorInput{Name: "Starbucks", Address: "Downtown", LookupDirectory: true})
	require.Equal(t, StateDirectoryMatchedSingle, res.State)

	res = r.ResolveCompetitor(ctx, s, CompetitorInput{Decision: Decision{Confirm: confirm(false)}})
	require.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, []string{"website_url"}, res.Missing)
	assert.Empty(t, s.ExternalPlaceID)
}

func TestResolveCompetitor_KnownPlaceSkipsDirectory(t *testing.T) {
	store, ids := seededStore(t)
	dir := &fakeDirectory{}
	r := NewResolver(store, dir, nopLogger())

	res := r.ResolveCompetitor(context.Background(), NewCompetitorSession(ids[0]), CompetitorInput{
		Name: "Globex", WebsiteURL: "https://globex.example", ExternalPlaceID: "place-1",
		Address: "1 Industrial Way", LookupDirectory: true,
	})
	require.Equal(t, StatusResolved, res.Status)
	assert.Empty(t, dir.queries)
	assert.Equal(t, "place-1", res.Competitor.ExternalPlaceID)
}

func TestResolveCompetitor_ExistingOnEveryReply(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	ctx := context.Background()

	earlier, err := store.CreateCompetitor(ctx, ids[0], models.CompetitorFields{Name: "Globex", WebsiteURL: "https://globex.example"})
	require.NoError(t, err)

	s := NewCompetitorSession(ids[0])
	res := r.ResolveCompetitor(ctx, s, CompetitorInput{Name: "Initech"})
	require.Equal(t, StatusNeedsFields, res.Status)
	require.Len(t, res.Existing, 1)

	res = r.ResolveCompetitor(ctx, s, CompetitorInput{})
	require.Equal(t, StatusNeedsFields, res.Status)
	require.Len(t, res.Existing, 1, "later replies still carry the existing list")
	assert.Equal(t, earlier.ID, res.Existing[0].ID)

	res = r.ResolveCompetitor(ctx, s, CompetitorInput{WebsiteURL: "https://initech.example"})
	require.Equal(t, StatusResolved, res.Status)
	require.Len(t, res.Existing, 1)
	assert.Equal(t, earlier.ID, res.Existing[0].ID)
}
