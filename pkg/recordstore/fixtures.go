package recordstore

import (
	"context"
	"errors"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DemoBusinesses seed local development stores.
var DemoBusinesses = []models.BusinessFields{
	{Name: "Acme Corp", Address: "101 Main St", BusinessType: "Manufacturing", Description: "Industrial supplies"},
	{Name: "Acme Widgets", Address: "202 Elm St", BusinessType: "Retail", Description: "Widgets and gadgets"},
}

// Seed creates each business unless a record with the same natural key
// already exists, and returns the ids in input order.
func Seed(ctx context.Context, store Store, fixtures []models.BusinessFields) ([]string, error) {
	ids := make([]string, 0, len(fixtures))
	for _, f := range fixtures {
		b, err := store.CreateBusiness(ctx, f)
		var dup *models.DuplicateBusinessError
		switch {
		case errors.As(err, &dup):
			ids = append(ids, dup.ExistingID)
		case err != nil:
			return nil, err
		default:
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}
