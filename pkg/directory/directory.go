// Package directory looks businesses up in an external place directory.
//
// Clients never return errors: provider failures are logged as
// ProviderError, counted, and reported to the caller as an empty result.
package directory

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

type Client interface {
	Search(ctx context.Context, query string, hint *models.LatLng) []models.Candidate
}
