package recordstore

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/business"
	"github.com/Ramsey-B/fern/internal/repositories/competitor"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Postgres is the durable Store. The unique natural-key constraint on
// businesses arbitrates concurrent creates.
type Postgres struct {
	businesses  *business.Repository
	competitors *competitor.Repository
	logger      ectologger.Logger
}

func NewPostgres(db database.DB, logger ectologger.Logger) *Postgres {
	return &Postgres{
		businesses:  business.NewRepository(db, logger),
		competitors: competitor.NewRepository(db, logger),
		logger:      logger,
	}
}

func (p *Postgres) FindBusinessesByName(ctx context.Context, query string) ([]models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "recordstore.Postgres.FindBusinessesByName")
	defer span.End()

	found, err := p.businesses.FindByName(ctx, query)
	if err != nil {
		return nil, models.NewStorageError("find_businesses_by_name", err)
	}
	return found, nil
}

func (p *Postgres) CreateBusiness(ctx context.Context, fields models.BusinessFields) (*models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "recordstore.Postgres.CreateBusiness")
	defer span.End()

	if err := validateBusinessFields(&fields); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		now := time.Now().UTC()
		b := &models.Business{
			ID:              models.NewBusinessID(),
			Name:            fields.Name,
			Address:         fields.Address,
			BusinessType:    fields.BusinessType,
			Description:     fields.Description,
			ExternalPlaceID: fields.ExternalPlaceID,
			OwnerContact:    fields.OwnerContact,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		inserted, err := p.businesses.Insert(ctx, b)
		if err != nil {
			return nil, models.NewStorageError("create_business", err)
		}
		if inserted {
			p.logger.WithContext(ctx).WithFields(map[string]any{
				"business_id": b.ID,
				"name":        b.Name,
			}).Info("created business")
			return b, nil
		}

		// nothing written: either the natural key or the generated id is taken
		existing, err := p.businesses.GetByNaturalKey(ctx, fields.Name, fields.Address)
		if err != nil {
			return nil, models.NewStorageError("create_business", err)
		}
		if existing != nil {
			return nil, &models.DuplicateBusinessError{ExistingID: existing.ID}
		}

		p.logger.WithContext(ctx).WithField("business_id", b.ID).Warn("business id collision, regenerating")
	}

	return nil, models.NewStorageError("create_business", errIDExhausted)
}

func (p *Postgres) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "recordstore.Postgres.GetBusiness")
	defer span.End()

	b, err := p.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, models.NewStorageError("get_business", err)
	}
	if b == nil {
		return nil, businessNotFound("get_business", businessID)
	}
	return b, nil
}

func (p *Postgres) UpdateBusinessDetails(ctx context.Context, businessID string, update models.BusinessDetailsUpdate) (*models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "recordstore.Postgres.UpdateBusinessDetails")
	defer span.End()

	b, err := p.businesses.UpdateDetails(ctx, businessID, update)
	if err != nil {
		return nil, models.NewStorageError("update_business_details", err)
	}
	if b == nil {
		return nil, businessNotFound("update_business_details", businessID)
	}
	return b, nil
}

func (p *Postgres) FindCompetitors(ctx context.Context, businessID string) ([]models.Competitor, error) {
	ctx, span := tracing.StartSpan(ctx, "recordstore.Postgres.FindCompetitors")
	defer span.End()

	found, err := p.competitors.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, models.NewStorageError("find_competitors", err)
	}
	return found, nil
}

func (p *Postgres) CreateCompetitor(ctx context.Context, businessID string, fields models.CompetitorFields) (*models.Competitor, error) {
	ctx, span := tracing.StartSpan(ctx, "recordstore.Postgres.CreateCompetitor")
	defer span.End()

	if err := validateCompetitorFields(&fields); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		c := &models.Competitor{
			ID:              models.NewCompetitorID(),
			BusinessID:      businessID,
			Name:            fields.Name,
			WebsiteURL:      fields.WebsiteURL,
			ExternalPlaceID: fields.ExternalPlaceID,
			CreatedAt:       time.Now().UTC(),
		}

		err := p.competitors.Insert(ctx, c)
		switch {
		case err == nil:
			return c, nil
		case errors.Is(err, models.ErrBusinessNotFound):
			return nil, businessNotFound("create_competitor", businessID)
		case errors.Is(err, competitor.ErrIDConflict):
			continue
		default:
			return nil, models.NewStorageError("create_competitor", err)
		}
	}

	return nil, models.NewStorageError("create_competitor", errIDExhausted)
}
