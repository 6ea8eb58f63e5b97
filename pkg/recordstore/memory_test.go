package recordstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func seeded(t *testing.T) (*Memory, []string) {
	t.Helper()
	store := NewMemory()
	ids, err := Seed(context.Background(), store, DemoBusinesses)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	return store, ids
}

func TestMemory_FindBusinessesByName(t *testing.T) {
	store, ids := seeded(t)
	ctx := context.Background()

	t.Run("case-insensitive substring in insertion order", func(t *testing.T) {
		found, err := store.FindBusinessesByName(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, ids[0], found[0].ID)
		assert.Equal(t, "Acme Corp", found[0].Name)
		assert.Equal(t, ids[1], found[1].ID)
		assert.Equal(t, "Acme Widgets", found[1].Name)
	})

	t.Run("middle of name", func(t *testing.T) {
		found, err := store.FindBusinessesByName(ctx, "WIDG")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, ids[1], found[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		found, err := store.FindBusinessesByName(ctx, "Globex")
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestMemory_CreateBusiness(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh ids", func(t *testing.T) {
		store, ids := seeded(t)
		b, err := store.CreateBusiness(ctx, models.BusinessFields{
			Name: "Globex", Address: "1 Industrial Way", BusinessType: "Logistics",
		})
		require.NoError(t, err)
		assert.NotContains(t, ids, b.ID)
		assert.Contains(t, b.ID, models.BusinessIDPrefix)
	})

	t.Run("duplicate natural key", func(t *testing.T) {
		store, ids := seeded(t)
		_, err := store.CreateBusiness(ctx, models.BusinessFields{
			Name: "ACME corp", Address: "101 Main Street", BusinessType: "Retail",
		})
		var dup *models.DuplicateBusinessError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, ids[0], dup.ExistingID)
		assert.ErrorIs(t, err, models.ErrDuplicateBusiness)
	})

	t.Run("missing business type", func(t *testing.T) {
		store := NewMemory()
		_, err := store.CreateBusiness(ctx, models.BusinessFields{Name: "Globex", Address: "1 Industrial Way"})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("regenerates colliding ids", func(t *testing.T) {
		generated := []string{"biz_aaaaaaaa", "biz_aaaaaaaa", "biz_bbbbbbbb"}
		next := 0
		store := NewMemory(WithIDGenerators(func() string {
			id := generated[next]
			next++
			return id
		}, nil))

		first, err := store.CreateBusiness(ctx, DemoBusinesses[0])
		require.NoError(t, err)
		second, err := store.CreateBusiness(ctx, DemoBusinesses[1])
		require.NoError(t, err)

		assert.Equal(t, "biz_aaaaaaaa", first.ID)
		assert.Equal(t, "biz_bbbbbbbb", second.ID)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		store := NewMemory(WithIDGenerators(func() string { return "biz_aaaaaaaa" }, nil))
		_, err := store.CreateBusiness(ctx, DemoBusinesses[0])
		require.NoError(t, err)

		_, err = store.CreateBusiness(ctx, DemoBusinesses[1])
		assert.ErrorIs(t, err, models.ErrStorage)
	})
}

func TestMemory_BusinessDetails(t *testing.T) {
	store, ids := seeded(t)
	ctx := context.Background()

	contact := "owner@acme.example"
	updated, err := store.UpdateBusinessDetails(ctx, ids[0], models.BusinessDetailsUpdate{OwnerContact: &contact})
	require.NoError(t, err)
	assert.Equal(t, contact, updated.OwnerContact)
	assert.Equal(t, "Industrial supplies", updated.Description)

	got, err := store.GetBusiness(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, contact, got.OwnerContact)
	assert.Equal(t, "Acme Corp", got.Name)

	_, err = store.GetBusiness(ctx, "biz_missing")
	assert.ErrorIs(t, err, models.ErrReference)
	assert.ErrorIs(t, err, models.ErrBusinessNotFound)

	_, err = store.UpdateBusinessDetails(ctx, "biz_missing", models.BusinessDetailsUpdate{OwnerContact: &contact})
	assert.ErrorIs(t, err, models.ErrReference)
}

func TestMemory_Competitors(t *testing.T) {
	store, ids := seeded(t)
	ctx := context.Background()

	first, err := store.CreateCompetitor(ctx, ids[0], models.CompetitorFields{Name: "Globex", WebsiteURL: "https://globex.example"})
	require.NoError(t, err)
	second, err := store.CreateCompetitor(ctx, ids[0], models.CompetitorFields{Name: "Globex", WebsiteURL: "https://globex.example"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "competitors are not deduplicated")

	found, err := store.FindCompetitors(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, first.ID, found[0].ID)
	assert.Equal(t, second.ID, found[1].ID)

	other, err := store.FindCompetitors(ctx, ids[1])
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemory_CreateCompetitor_UnknownBusiness(t *testing.T) {
	store, ids := seeded(t)
	ctx := context.Background()

	_, err := store.CreateCompetitor(ctx, "biz_unknown", models.CompetitorFields{Name: "Globex", WebsiteURL: "https://globex.example"})
	require.ErrorIs(t, err, models.ErrReference)

	for _, id := range append(ids, "biz_unknown") {
		found, err := store.FindCompetitors(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, found, "no competitor may be written for %s", id)
	}
}

func TestMemory_CreateCompetitor_MissingWebsite(t *testing.T) {
	store, ids := seeded(t)

	_, err := store.CreateCompetitor(context.Background(), ids[0], models.CompetitorFields{Name: "Globex"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSeed_Idempotent(t *testing.T) {
	store, ids := seeded(t)

	again, err := Seed(context.Background(), store, DemoBusinesses)
	require.NoError(t, err)
	assert.Equal(t, ids, again)

	found, err := store.FindBusinessesByName(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}
