package competitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/lib/pq"
)

const tableName = "competitors"

// foreign_key_violation
const pqForeignKeyViolation = "23503"

// ErrIDConflict is returned when the generated competitor id is taken.
var ErrIDConflict = errors.New("competitor id already exists")

var columns = []string{"competitor_id", "business_id", "name", "website_url", "external_place_id", "created_at"}

type row struct {
	ID              string         `db:"competitor_id"`
	BusinessID      string         `db:"business_id"`
	Name            string         `db:"name"`
	WebsiteURL      string         `db:"website_url"`
	ExternalPlaceID sql.NullString `db:"external_place_id"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r row) toModel() models.Competitor {
	return models.Competitor{
		ID:              r.ID,
		BusinessID:      r.BusinessID,
		Name:            r.Name,
		WebsiteURL:      r.WebsiteURL,
		ExternalPlaceID: r.ExternalPlaceID.String,
		CreatedAt:       r.CreatedAt,
	}
}

// Repository persists competitors in Postgres.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Insert writes c after checking its business exists. It returns
// models.ErrBusinessNotFound for an unknown business and ErrIDConflict when
// the id is taken.
func (r *Repository) Insert(ctx context.Context, c *models.Competitor) error {
	ctx, span := tracing.StartSpan(ctx, "CompetitorRepository.Insert")
	defer span.End()

	err := database.WithTransaction(ctx, r.db, func(ctx context.Context, tx database.Tx) error {
		sb := database.NewSelectBuilder()
		sb.Select("1")
		sb.From("businesses")
		sb.Where(sb.Equal("business_id", c.BusinessID))
		sb.ForShare()
		query, args := sb.Build()

		var found int
		if err := tx.GetContext(ctx, &found, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrBusinessNotFound
			}
			return fmt.Errorf("failed to check business: %w", err)
		}

		ib := database.NewInsertBuilder().
			InsertInto(tableName).
			Cols(columns...).
			Values(c.ID, c.BusinessID, c.Name, c.WebsiteURL, sql.NullString{String: c.ExternalPlaceID, Valid: c.ExternalPlaceID != ""}, c.CreatedAt).
			OnConflictDoNothing()
		query, args = ib.Build()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
				return models.ErrBusinessNotFound
			}
			return fmt.Errorf("failed to insert competitor: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return ErrIDConflict
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, models.ErrBusinessNotFound) && !errors.Is(err, ErrIDConflict) {
			r.logger.WithContext(ctx).WithError(err).Error("failed to create competitor")
		}
		return err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"competitor_id": c.ID,
		"business_id":   c.BusinessID,
	}).Info("created competitor")

	return nil
}

// ListByBusiness returns the competitors of a business in insertion order.
func (r *Repository) ListByBusiness(ctx context.Context, businessID string) ([]models.Competitor, error) {
	ctx, span := tracing.StartSpan(ctx, "CompetitorRepository.ListByBusiness")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("business_id", businessID))
	sb.OrderBy("seq").Asc()

	query, args := sb.Build()

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list competitors")
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}

	competitors := make([]models.Competitor, 0, len(rows))
	for _, rec := range rows {
		competitors = append(competitors, rec.toModel())
	}
	return competitors, nil
}
