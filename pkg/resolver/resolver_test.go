package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/directory"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/recordstore"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// testStore wraps the in-memory store with call counters and injectable
// storage failures.
type testStore struct {
	*recordstore.Memory

	createBusinessCalls int
	failFinds           int
	failCreates         int
	// writeThenFail persists the business before reporting the failure.
	writeThenFail bool
}

func newTestStore() *testStore {
	return &testStore{Memory: recordstore.NewMemory()}
}

var errUnavailable = errors.New("connection refused")

func (s *testStore) FindBusinessesByName(ctx context.Context, query string) ([]models.Business, error) {
	if s.failFinds > 0 {
		s.failFinds--
		return nil, models.NewStorageError("find_businesses_by_name", errUnavailable)
	}
	return s.Memory.FindBusinessesByName(ctx, query)
}

func (s *testStore) CreateBusiness(ctx context.Context, fields models.BusinessFields) (*models.Business, error) {
	s.createBusinessCalls++
	if s.failCreates > 0 {
		s.failCreates--
		if s.writeThenFail {
			if _, err := s.Memory.CreateBusiness(ctx, fields); err != nil {
				return nil, err
			}
		}
		return nil, models.NewStorageError("create_business", errUnavailable)
	}
	return s.Memory.CreateBusiness(ctx, fields)
}

type fakeDirectory struct {
	results map[string][]models.Candidate
	queries []string
}

func (d *fakeDirectory) Search(_ context.Context, query string, _ *models.LatLng) []models.Candidate {
	d.queries = append(d.queries, query)
	return d.results[query]
}

func seededStore(t *testing.T) (*testStore, []string) {
	t.Helper()
	store := newTestStore()
	ids, err := recordstore.Seed(context.Background(), store.Memory, recordstore.DemoBusinesses)
	require.NoError(t, err)
	return store, ids
}

func confirm(v bool) *bool { return &v }

func TestResolveBusiness_MissingNameAndAddress(t *testing.T) {
	r := NewResolver(newTestStore(), &fakeDirectory{}, nopLogger())
	s := NewBusinessSession()

	res := r.ResolveBusiness(context.Background(), s, BusinessInput{Name: "Acme"})
	assert.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, []string{"address"}, res.Missing)
	assert.Equal(t, StateStart, s.State)
}

func TestResolveBusiness_SingleMatchConfirmed(t *testing.T) {
	store, ids := seededStore(t)
	dir := &fakeDirectory{}
	r := NewResolver(store, dir, nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Widgets", Address: "202 Elm St"})
	require.Equal(t, StatusNeedsConfirmation, res.Status)
	assert.Equal(t, StateMatchedSingle, res.State)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, ids[1], res.Candidates[0].BusinessID)

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Confirm: confirm(true)}})
	require.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, ids[1], res.ID)
	assert.False(t, res.Created)
	assert.Zero(t, store.createBusinessCalls)
	assert.Empty(t, dir.queries)
}

func TestResolveBusiness_AcmeOrdinalSelection(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Acme", Address: "Main"})
	require.Equal(t, StatusNeedsConfirmation, res.Status)
	assert.Equal(t, StateMatchedMultiple, res.State)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Acme Corp", res.Candidates[0].Name)
	assert.Equal(t, "Acme Widgets", res.Candidates[1].Name)

	t.Run("confirm without ordinal is rejected", func(t *testing.T) {
		res := r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Confirm: confirm(true)}})
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, models.ErrorKindInvalidInput, res.ErrorKind)
		assert.Equal(t, StateMatchedMultiple, s.State)
	})

	t.Run("out of range ordinal leaves state unchanged", func(t *testing.T) {
		res := r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Selection: 3}})
		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, models.ErrInvalidInput)
		assert.Equal(t, StateMatchedMultiple, s.State)
	})

	t.Run("no decision re-presents candidates", func(t *testing.T) {
		res := r.ResolveBusiness(ctx, s, BusinessInput{})
		assert.Equal(t, StatusNeedsConfirmation, res.Status)
		assert.Len(t, res.Candidates, 2)
	})

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Selection: 2}})
	require.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, ids[1], res.ID)
	assert.Zero(t, store.createBusinessCalls)
}

func TestResolveBusiness_NoMatchAnywhereCreatesOnce(t *testing.T) {
	store, ids := seededStore(t)
	dir := &fakeDirectory{}
	r := NewResolver(store, dir, nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Globex", Address: "1 Industrial Way"})
	require.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, StateCollectMissingFields, res.State)
	assert.Equal(t, []string{"business_type", "description"}, res.Missing)
	assert.Equal(t, []string{"Globex 1 Industrial Way"}, dir.queries)
	assert.Equal(t, []State{StateLookupLocal, StateNoMatch, StateDirectoryLookup, StateDirectoryNoMatch, StateCollectMissingFields}, s.Trail)

	res = r.ResolveBusiness(ctx, s, BusinessInput{BusinessType: "Logistics"})
	require.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, []string{"description"}, res.Missing)

	res = r.ResolveBusiness(ctx, s, BusinessInput{Description: "Freight forwarding", OwnerContact: "ops@globex.example"})
	require.Equal(t, StatusResolved, res.Status)
	assert.True(t, res.Created)
	assert.NotContains(t, ids, res.ID)
	assert.Equal(t, 1, store.createBusinessCalls)
	require.NotNil(t, res.Business)
	assert.Equal(t, "ops@globex.example", res.Business.OwnerContact)

	// further calls on a resolved session never write
	res = r.ResolveBusiness(ctx, s, BusinessInput{Name: "Globex", Address: "1 Industrial Way"})
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, 1, store.createBusinessCalls)
}

func TestResolveBusiness_NikeGalleriaFromDirectory(t *testing.T) {
	store := newTestStore()
	r := NewResolver(store, directory.NewStatic(nil, nopLogger()), nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Nike", Address: "Galleria"})
	require.Equal(t, StatusNeedsConfirmation, res.Status)
	assert.Equal(t, StateDirectoryMatchedSingle, res.State)
	require.Len(t, res.Candidates, 1)
	placeID := res.Candidates[0].ExternalPlaceID

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Confirm: confirm(true)}, BusinessType: "Retail"})
	require.Equal(t, StatusResolved, res.Status)
	assert.True(t, res.Created)
	require.NotNil(t, res.Business)
	assert.Equal(t, placeID, res.Business.ExternalPlaceID)
	assert.Equal(t, "Nike Store Galleria", res.Business.Name)
	assert.Equal(t, "5085 Westheimer Rd, Houston, TX 77056", res.Business.Address)
	assert.Equal(t, "Retail", res.Business.BusinessType)
	assert.Equal(t, 1, store.createBusinessCalls)
}

func TestResolveBusiness_RejectLocalFallsBackToDirectory(t *testing.T) {
	store, _ := seededStore(t)
	dir := &fakeDirectory{results: map[string][]models.Candidate{
		"Acme 9 Harbor Rd": {
			{Source: models.CandidateSourceDirectory, Name: "Acme Harbor Supply", Address: "9 Harbor Rd", ExternalPlaceID: "place-9"},
			{Source: models.CandidateSourceDirectory, Name: "Acme Marine", Address: "11 Harbor Rd", ExternalPlaceID: "place-11"},
		},
	}}
	r := NewResolver(store, dir, nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Acme", Address: "9 Harbor Rd"})
	require.Equal(t, StateMatchedMultiple, res.State)

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{RejectAll: true}})
	require.Equal(t, StatusNeedsConfirmation, res.Status)
	assert.Equal(t, StateDirectoryMatchedMultiple, res.State)
	assert.Equal(t, "place-9", res.Candidates[0].ExternalPlaceID)
	assert.Equal(t, "place-11", res.Candidates[1].ExternalPlaceID)

	t.Run("rejecting directory candidates collects fields", func(t *testing.T) {
		cp := *s
		res := r.ResolveBusiness(ctx, &cp, BusinessInput{Decision: Decision{RejectAll: true}})
		assert.Equal(t, StatusNeedsFields, res.Status)
		assert.Equal(t, []string{"business_type", "description"}, res.Missing)
		assert.Empty(t, cp.ExternalPlaceID)
	})

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Selection: 2}})
	require.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, []string{"business_type"}, res.Missing, "a confirmed directory candidate needs no description")
	assert.Equal(t, "Acme Marine", s.Name)
	assert.Equal(t, "place-11", s.ExternalPlaceID)

	res = r.ResolveBusiness(ctx, s, BusinessInput{BusinessType: "Marine supply"})
	require.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "place-11", res.Business.ExternalPlaceID)
}

func TestResolveBusiness_StorageErrorOnLookup(t *testing.T) {
	store, _ := seededStore(t)
	store.failFinds = 1
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Acme", Address: "Main"})
	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, models.ErrorKindStorage, res.ErrorKind)
	assert.Equal(t, StateLookupLocal, s.State)

	res = r.ResolveBusiness(ctx, s, BusinessInput{})
	assert.Equal(t, StatusNeedsConfirmation, res.Status)
	assert.Len(t, res.Candidates, 2)
}

func TestResolveBusiness_RetryAfterCreateFailure(t *testing.T) {
	for _, writeThenFail := range []bool{false, true} {
		name := "write lost"
		if writeThenFail {
			name = "write persisted"
		}
		t.Run(name, func(t *testing.T) {
			store := newTestStore()
			store.failCreates = 1
			store.writeThenFail = writeThenFail
			r := NewResolver(store, &fakeDirectory{}, nopLogger())
			s := NewBusinessSession()
			ctx := context.Background()

			input := BusinessInput{Name: "Globex", Address: "1 Industrial Way", BusinessType: "Logistics", Description: "Freight"}
			res := r.ResolveBusiness(ctx, s, input)
			require.Equal(t, StatusFailed, res.Status)
			assert.ErrorIs(t, res.Err, models.ErrStorage)
			assert.Equal(t, StateCreate, s.State)
			assert.True(t, s.CreateAttempted)

			res = r.ResolveBusiness(ctx, s, input)
			require.Equal(t, StatusResolved, res.Status)
			assert.Contains(t, s.Trail[len(s.Trail)-3:], StateLookupLocal)

			found, err := store.FindBusinessesByName(ctx, "Globex")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, found[0].ID, res.ID)

			if writeThenFail {
				assert.Equal(t, 1, store.createBusinessCalls, "the persisted record is reused")
				assert.False(t, res.Created)
			} else {
				assert.Equal(t, 2, store.createBusinessCalls)
				assert.True(t, res.Created)
			}
		})
	}
}

func TestResolveBusiness_ConcurrentSessionWins(t *testing.T) {
	store := newTestStore()
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	ctx := context.Background()

	first := NewBusinessSession()
	second := NewBusinessSession()
	input := BusinessInput{Name: "Globex", Address: "1 Industrial Way", BusinessType: "Logistics", Description: "Freight"}

	// both sessions reach field collection before either creates
	require.Equal(t, StatusNeedsFields, r.ResolveBusiness(ctx, first, BusinessInput{Name: input.Name, Address: input.Address}).Status)
	require.Equal(t, StatusNeedsFields, r.ResolveBusiness(ctx, second, BusinessInput{Name: input.Name, Address: input.Address}).Status)

	a := r.ResolveBusiness(ctx, first, input)
	b := r.ResolveBusiness(ctx, second, BusinessInput{BusinessType: "Logistics", Description: "Freight"})

	require.Equal(t, StatusResolved, a.Status)
	require.Equal(t, StatusResolved, b.Status)
	assert.Equal(t, a.ID, b.ID)
	assert.True(t, a.Created)
	assert.False(t, b.Created)

	found, err := store.FindBusinessesByName(ctx, "globex")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

type recordingLocker struct {
	keys []string
	err  error
}

func (l *recordingLocker) WithLock(_ context.Context, key string, _ time.Duration, fn func() error) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	return fn()
}

func TestResolveBusiness_Locker(t *testing.T) {
	ctx := context.Background()
	input := BusinessInput{Name: "Globex Inc.", Address: "1 Industrial Way", BusinessType: "Logistics", Description: "Freight"}

	t.Run("creates under the natural key lock", func(t *testing.T) {
		locker := &recordingLocker{}
		r := NewResolver(newTestStore(), &fakeDirectory{}, nopLogger(), WithLocker(locker, time.Second))

		res := r.ResolveBusiness(ctx, NewBusinessSession(), input)
		require.Equal(t, StatusResolved, res.Status)
		assert.Equal(t, []string{"business:globex|1 industrial way"}, locker.keys)
	})

	t.Run("lock failure is a storage error", func(t *testing.T) {
		store := newTestStore()
		locker := &recordingLocker{err: errors.New("lock not acquired")}
		r := NewResolver(store, &fakeDirectory{}, nopLogger(), WithLocker(locker, time.Second))
		s := NewBusinessSession()

		res := r.ResolveBusiness(ctx, s, input)
		assert.Equal(t, models.ErrorKindStorage, res.ErrorKind)
		assert.True(t, s.CreateAttempted)
		assert.Zero(t, store.createBusinessCalls)
	})
}

func TestResolveBusiness_AmbiguousNeverAutoSelected(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	_, err := store.Memory.CreateBusiness(ctx, models.BusinessFields{Name: "Twin Cafe", Address: "1 North St", BusinessType: "Cafe"})
	require.NoError(t, err)
	_, err = store.Memory.CreateBusiness(ctx, models.BusinessFields{Name: "Twin Cafe", Address: "2 South St", BusinessType: "Cafe"})
	require.NoError(t, err)

	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	res := r.ResolveBusiness(ctx, NewBusinessSession(), BusinessInput{Name: "Twin Cafe", Address: "1 North St"})
	assert.Equal(t, StatusNeedsConfirmation, res.Status)
	assert.Len(t, res.Candidates, 2)
}

func TestResolveBusiness_StartFieldsAccumulate(t *testing.T) {
	r := NewResolver(newTestStore(), &fakeDirectory{}, nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Fresh Bakery", LocationHint: &models.LatLng{Lat: 29.76, Lng: -95.37}})
	require.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, []string{"address"}, res.Missing)

	res = r.ResolveBusiness(ctx, s, BusinessInput{Name: "   "})
	require.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, []string{"address"}, res.Missing, "blank input keeps the earlier name")

	res = r.ResolveBusiness(ctx, s, BusinessInput{Address: "1 Oak St"})
	require.Equal(t, StatusNeedsFields, res.Status)
	assert.Equal(t, StateCollectMissingFields, res.State)
	assert.Equal(t, []string{"business_type", "description"}, res.Missing)
	assert.Equal(t, "Fresh Bakery", s.Name)
	assert.Equal(t, "1 Oak St", s.Address)
	require.NotNil(t, s.LocationHint)
	assert.Equal(t, 29.76, s.LocationHint.Lat)
}

func TestResolveBusiness_CreateCollidesWithRejectedRecord(t *testing.T) {
	store, ids := seededStore(t)
	r := NewResolver(store, &fakeDirectory{}, nopLogger())
	s := NewBusinessSession()
	ctx := context.Background()

	res := r.ResolveBusiness(ctx, s, BusinessInput{Name: "Acme Corp", Address: "101 Main Street"})
	require.Equal(t, StateMatchedSingle, res.State)
	require.Equal(t, ids[0], res.Candidates[0].BusinessID)

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Confirm: confirm(false)}})
	require.Equal(t, StatusNeedsFields, res.Status)

	res = r.ResolveBusiness(ctx, s, BusinessInput{BusinessType: "Manufacturing", Description: "Industrial supplies"})
	require.Equal(t, StatusNeedsConfirmation, res.Status, "a rejected record is never resolved silently")
	assert.Equal(t, StateDuplicateFound, res.State)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, ids[0], res.Candidates[0].BusinessID)
	assert.Equal(t, models.CandidateSourceLocal, res.Candidates[0].Source)

	res = r.ResolveBusiness(ctx, s, BusinessInput{})
	assert.Equal(t, StatusNeedsConfirmation, res.Status)

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{RejectAll: true}})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, models.ErrorKindInvalidInput, res.ErrorKind)
	assert.Equal(t, StateDuplicateFound, s.State)
	assert.Empty(t, s.BusinessID)

	res = r.ResolveBusiness(ctx, s, BusinessInput{Decision: Decision{Confirm: confirm(true)}})
	require.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, ids[0], res.ID)
	assert.False(t, res.Created)
	assert.Equal(t, 1, store.createBusinessCalls)

	found, err := store.FindBusinessesByName(ctx, "Acme Corp")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
