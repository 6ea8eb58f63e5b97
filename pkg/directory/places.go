package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"googlemaps.github.io/maps"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const providerPlaces = "places"

var detailFields = []maps.PlaceDetailsFieldMask{
	maps.PlaceDetailsFieldMaskWebsite,
	maps.PlaceDetailsFieldMaskInternationalPhoneNumber,
	maps.PlaceDetailsFieldMaskFormattedPhoneNumber,
}

type PlacesConfig struct {
	APIKey string
	// BaseURL overrides the Google Maps host, used by tests.
	BaseURL           string
	RadiusMeters      uint
	DetailsLimit      int
	Timeout           time.Duration
	RequestsPerSecond int
}

// Places searches the Google Places text search API.
type Places struct {
	client *maps.Client
	cfg    PlacesConfig
	logger ectologger.Logger
}

func NewPlaces(cfg PlacesConfig, logger ectologger.Logger) (*Places, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("places api key is required")
	}
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, maps.WithRateLimit(cfg.RequestsPerSecond))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.RadiusMeters == 0 {
		cfg.RadiusMeters = 5000
	}
	return &Places{client: client, cfg: cfg, logger: logger}, nil
}

func (p *Places) Search(ctx context.Context, query string, hint *models.LatLng) []models.Candidate {
	ctx, span := tracing.StartSpan(ctx, "directory.Places.Search")
	defer span.End()

	log := p.logger.WithContext(ctx).WithField("query", query)
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	req := &maps.TextSearchRequest{Query: query}
	if hint != nil {
		req.Location = &maps.LatLng{Lat: hint.Lat, Lng: hint.Lng}
		req.Radius = p.cfg.RadiusMeters
	}

	resp, err := p.client.TextSearch(ctx, req)
	if err != nil {
		perr := models.NewProviderError("places_text_search", err)
		tracing.RecordError(ctx, perr)
		log.WithError(perr).Warn("Directory search failed")
		metrics.RecordDirectoryLookup(providerPlaces, "error", time.Since(start).Seconds())
		return nil
	}

	candidates := ectolinq.Map(resp.Results, func(r maps.PlacesSearchResult) models.Candidate {
		return models.Candidate{
			Source:          models.CandidateSourceDirectory,
			Name:            r.Name,
			Address:         r.FormattedAddress,
			ExternalPlaceID: r.PlaceID,
		}
	})

	for i := range candidates {
		if i >= p.cfg.DetailsLimit {
			break
		}
		p.enrich(ctx, &candidates[i])
	}

	outcome := "match"
	if len(candidates) == 0 {
		outcome = "no_match"
	}
	metrics.RecordDirectoryLookup(providerPlaces, outcome, time.Since(start).Seconds())
	log.Debugf("Directory returned %d candidates", len(candidates))

	return candidates
}

// enrich fills website and phone from place details. A failed lookup
// leaves the candidate as returned by the text search.
func (p *Places) enrich(ctx context.Context, c *models.Candidate) {
	details, err := p.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: c.ExternalPlaceID,
		Fields:  detailFields,
	})
	if err != nil {
		p.logger.WithContext(ctx).
			WithField("place_id", c.ExternalPlaceID).
			WithError(models.NewProviderError("places_details", err)).
			Warn("Failed to load place details")
		return
	}
	c.Website = details.Website
	c.Phone = details.InternationalPhoneNumber
	if c.Phone == "" {
		c.Phone = details.FormattedPhoneNumber
	}
}
