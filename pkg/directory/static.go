package directory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

const providerStatic = "static"

// DemoListings is the default fixture set for the static directory, keyed by
// a lowercase keyword that must appear in the query.
var DemoListings = map[string][]models.Candidate{
	"nike": {
		{
			Name:            "Nike Store Galleria",
			Address:         "5085 Westheimer Rd, Houston, TX 77056",
			ExternalPlaceID: "ChIJV4k8v_1Xj4ARjQfT6_jW36k",
			Website:         "https://www.nike.com/galleria",
			Phone:           "+1 713-555-1212",
		},
		{
			Name:            "Nike Clearance Store",
			Address:         "123 Outlet Mall Dr, Houston, TX 77000",
			ExternalPlaceID: "ChIJabCdefG7j4ARutYjKLM9012",
			Website:         "https://www.nike.com/clearance",
			Phone:           "+1 713-555-1213",
		},
	},
	"starbucks": {
		{
			Name:            "Starbucks Houston Downtown",
			Address:         "100 Main St, Houston, TX 77002",
			ExternalPlaceID: "ChIJ1234567890abcdefghijk",
			Website:         "https://www.starbucks.com/downtown",
			Phone:           "+1 713-555-1214",
		},
	},
}

// Static serves candidates from fixed listings. Extra query words narrow a
// listing to the entries whose name or address contains them, so
// "Nike Galleria" returns only the Galleria store.
type Static struct {
	listings map[string][]models.Candidate
	logger   ectologger.Logger
}

func NewStatic(listings map[string][]models.Candidate, logger ectologger.Logger) *Static {
	if listings == nil {
		listings = DemoListings
	}
	return &Static{listings: listings, logger: logger}
}

func (s *Static) Search(ctx context.Context, query string, _ *models.LatLng) []models.Candidate {
	start := time.Now()
	q := strings.ToLower(query)

	keywords := make([]string, 0, len(s.listings))
	for k := range s.listings {
		keywords = append(keywords, k)
	}
	slices.Sort(keywords)

	var found []models.Candidate
	for _, k := range keywords {
		if !strings.Contains(q, k) {
			continue
		}
		rest := strings.Fields(strings.ReplaceAll(q, k, " "))
		listing := s.listings[k]
		narrowed := slices.DeleteFunc(slices.Clone(listing), func(c models.Candidate) bool {
			return !mentions(rest, c)
		})
		// a query whose extra words match nothing still sees the whole listing
		if len(narrowed) > 0 {
			listing = narrowed
		}
		for _, c := range listing {
			c.Source = models.CandidateSourceDirectory
			found = append(found, c)
		}
	}

	outcome := "match"
	if len(found) == 0 {
		outcome = "no_match"
	}
	metrics.RecordDirectoryLookup(providerStatic, outcome, time.Since(start).Seconds())
	s.logger.WithContext(ctx).WithField("query", query).Debugf("Static directory returned %d candidates", len(found))

	return found
}

// mentions reports whether any query word longer than two letters appears in
// the candidate's name or address. An empty word list matches everything.
func mentions(words []string, c models.Candidate) bool {
	if len(words) == 0 {
		return true
	}
	text := strings.ToLower(c.Name + " " + c.Address)
	for _, w := range words {
		w = strings.Trim(w, ",.")
		if len(w) > 2 && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
