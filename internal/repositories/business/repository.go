package business

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const tableName = "businesses"

var columns = []string{
	"business_id", "name", "address", "business_type", "description",
	"external_place_id", "owner_contact", "created_at", "updated_at",
}

var insertColumns = append(append([]string{}, columns...), "name_key", "address_key")

// OwnerContact is the JSONB shape of businesses.owner_contact.
type OwnerContact struct {
	Primary string `json:"primary,omitempty"`
}

type row struct {
	ID              string                       `db:"business_id"`
	Name            string                       `db:"name"`
	Address         string                       `db:"address"`
	BusinessType    string                       `db:"business_type"`
	Description     string                       `db:"description"`
	ExternalPlaceID sql.NullString               `db:"external_place_id"`
	OwnerContact    database.JSONB[OwnerContact] `db:"owner_contact"`
	CreatedAt       time.Time                    `db:"created_at"`
	UpdatedAt       time.Time                    `db:"updated_at"`
}

func (r row) toModel() models.Business {
	return models.Business{
		ID:              r.ID,
		Name:            r.Name,
		Address:         r.Address,
		BusinessType:    r.BusinessType,
		Description:     r.Description,
		ExternalPlaceID: r.ExternalPlaceID.String,
		OwnerContact:    r.OwnerContact.Data.Primary,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Repository persists businesses in Postgres.
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

// Insert writes b unless its id or natural key already exists. It reports
// whether a row was written; existing rows are never overwritten.
func (r *Repository) Insert(ctx context.Context, b *models.Business) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "BusinessRepository.Insert")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto(tableName).
		Cols(insertColumns...).
		Values(
			b.ID, b.Name, b.Address, b.BusinessType, b.Description,
			nullString(b.ExternalPlaceID),
			database.JSONB[OwnerContact]{Data: OwnerContact{Primary: b.OwnerContact}},
			b.CreatedAt, b.UpdatedAt,
			normalizers.NormalizeBusinessName(b.Name), normalizers.NormalizeAddress(b.Address),
		).
		OnConflictDoNothing()

	query, args := ib.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to insert business")
		return false, fmt.Errorf("failed to insert business: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// FindByName returns businesses whose name contains query, case-insensitively,
// in insertion order.
func (r *Repository) FindByName(ctx context.Context, query string) ([]models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "BusinessRepository.FindByName")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Like("LOWER(name)", database.ContainsPattern(strings.ToLower(query))))
	sb.OrderBy("seq").Asc()

	sqlQuery, args := sb.Build()

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to find businesses by name")
		return nil, fmt.Errorf("failed to find businesses by name: %w", err)
	}

	businesses := make([]models.Business, 0, len(rows))
	for _, rec := range rows {
		businesses = append(businesses, rec.toModel())
	}
	return businesses, nil
}

// GetByID returns nil, nil when the business does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "BusinessRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("business_id", id))

	query, args := sb.Build()
	return r.getOne(ctx, query, args)
}

// GetByNaturalKey returns the business with the same normalized name and
// address, or nil, nil.
func (r *Repository) GetByNaturalKey(ctx context.Context, name, address string) (*models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "BusinessRepository.GetByNaturalKey")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("name_key", normalizers.NormalizeBusinessName(name)),
		sb.Equal("address_key", normalizers.NormalizeAddress(address)),
	)

	query, args := sb.Build()
	return r.getOne(ctx, query, args)
}

// UpdateDetails amends description and/or owner contact. Returns nil, nil
// when the business does not exist.
func (r *Repository) UpdateDetails(ctx context.Context, id string, update models.BusinessDetailsUpdate) (*models.Business, error) {
	ctx, span := tracing.StartSpan(ctx, "BusinessRepository.UpdateDetails")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(tableName)
	assignments := []string{ub.Assign("updated_at", time.Now().UTC())}
	if update.Description != nil {
		assignments = append(assignments, ub.Assign("description", *update.Description))
	}
	if update.OwnerContact != nil {
		assignments = append(assignments, ub.Assign("owner_contact",
			database.JSONB[OwnerContact]{Data: OwnerContact{Primary: *update.OwnerContact}}))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("business_id", id))

	query, args := ub.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update business details")
		return nil, fmt.Errorf("failed to update business details: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, nil
	}

	r.logger.WithContext(ctx).WithField("business_id", id).Info("updated business details")

	return r.GetByID(ctx, id)
}

func (r *Repository) getOne(ctx context.Context, query string, args []any) (*models.Business, error) {
	var rec row
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get business")
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	b := rec.toModel()
	return &b, nil
}
