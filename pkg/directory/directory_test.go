package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStatic_Search(t *testing.T) {
	dir := NewStatic(nil, nopLogger())
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"keyword only", "Nike", []string{"ChIJV4k8v_1Xj4ARjQfT6_jW36k", "ChIJabCdefG7j4ARutYjKLM9012"}},
		{"narrowed by name", "Nike Galleria", []string{"ChIJV4k8v_1Xj4ARjQfT6_jW36k"}},
		{"narrowed by address", "nike 123 Outlet Mall Dr", []string{"ChIJabCdefG7j4ARutYjKLM9012"}},
		{"unmatched extra words keep listing", "Nike Dallas", []string{"ChIJV4k8v_1Xj4ARjQfT6_jW36k", "ChIJabCdefG7j4ARutYjKLM9012"}},
		{"other keyword", "Starbucks downtown", []string{"ChIJ1234567890abcdefghijk"}},
		{"no match", "Globex", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dir.Search(ctx, tt.query, nil)
			var ids []string
			for _, c := range got {
				assert.Equal(t, models.CandidateSourceDirectory, c.Source)
				ids = append(ids, c.ExternalPlaceID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("place ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func placesServer(t *testing.T, searchStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var paths []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/maps/api/place/textsearch/json":
			if searchStatus != http.StatusOK {
				w.WriteHeader(searchStatus)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "OK",
				"results": []map[string]any{
					{"name": "Nike Store Galleria", "formatted_address": "5085 Westheimer Rd, Houston, TX 77056", "place_id": "place-1"},
					{"name": "Nike Clearance Store", "formatted_address": "123 Outlet Mall Dr, Houston, TX 77000", "place_id": "place-2"},
				},
			})
		case "/maps/api/place/details/json":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "OK",
				"result": map[string]any{
					"place_id":                   r.URL.Query().Get("placeid"),
					"website":                    "https://www.nike.com/galleria",
					"international_phone_number": "+1 713-555-1212",
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestPlaces_Search(t *testing.T) {
	srv, paths := placesServer(t, http.StatusOK)

	places, err := NewPlaces(PlacesConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DetailsLimit: 1,
		Timeout:      time.Second,
	}, nopLogger())
	require.NoError(t, err)

	got := places.Search(context.Background(), "Nike Galleria", &models.LatLng{Lat: 29.74, Lng: -95.46})
	require.Len(t, got, 2)

	assert.Equal(t, "Nike Store Galleria", got[0].Name)
	assert.Equal(t, "place-1", got[0].ExternalPlaceID)
	assert.Equal(t, "https://www.nike.com/galleria", got[0].Website)
	assert.Equal(t, "+1 713-555-1212", got[0].Phone)
	assert.Equal(t, models.CandidateSourceDirectory, got[0].Source)

	// only the first result is enriched
	assert.Equal(t, "place-2", got[1].ExternalPlaceID)
	assert.Empty(t, got[1].Website)

	require.NotEmpty(t, *paths)
	assert.Contains(t, (*paths)[0], "radius=5000")
}

func TestPlaces_ProviderFailureIsEmpty(t *testing.T) {
	srv, _ := placesServer(t, http.StatusInternalServerError)

	places, err := NewPlaces(PlacesConfig{APIKey: "test-key", BaseURL: srv.URL}, nopLogger())
	require.NoError(t, err)

	assert.Empty(t, places.Search(context.Background(), "Nike", nil))
}

func TestNewPlaces_RequiresKey(t *testing.T) {
	_, err := NewPlaces(PlacesConfig{}, nopLogger())
	assert.Error(t, err)
}

type memoryCache struct {
	entries map[string][]byte
	failGet bool
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dest any) error {
	if m.failGet {
		return errors.New("connection refused")
	}
	raw, ok := m.entries[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

type countingClient struct {
	calls int
	next  Client
}

func (c *countingClient) Search(ctx context.Context, query string, hint *models.LatLng) []models.Candidate {
	c.calls++
	return c.next.Search(ctx, query, hint)
}

func TestCached_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("serves repeated queries from cache", func(t *testing.T) {
		inner := &countingClient{next: NewStatic(nil, nopLogger())}
		cached := NewCached(inner, &memoryCache{entries: map[string][]byte{}}, time.Hour, "static", nopLogger())

		first := cached.Search(ctx, "Nike Galleria", nil)
		second := cached.Search(ctx, "  nike galleria ", nil)

		assert.Equal(t, 1, inner.calls)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("cached result mismatch (-first +second):\n%s", diff)
		}
	})

	t.Run("does not cache empty results", func(t *testing.T) {
		inner := &countingClient{next: NewStatic(nil, nopLogger())}
		cached := NewCached(inner, &memoryCache{entries: map[string][]byte{}}, time.Hour, "static", nopLogger())

		assert.Empty(t, cached.Search(ctx, "Globex", nil))
		assert.Empty(t, cached.Search(ctx, "Globex", nil))
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("cache failures fall through", func(t *testing.T) {
		inner := &countingClient{next: NewStatic(nil, nopLogger())}
		cached := NewCached(inner, &memoryCache{entries: map[string][]byte{}, failGet: true}, time.Hour, "static", nopLogger())

		assert.Len(t, cached.Search(ctx, "Starbucks", nil), 1)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("hint is part of the key", func(t *testing.T) {
		assert.NotEqual(t, cacheKey("nike", nil), cacheKey("nike", &models.LatLng{Lat: 1, Lng: 2}))
	})
}
