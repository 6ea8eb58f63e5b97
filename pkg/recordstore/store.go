// Package recordstore holds the canonical business and competitor records.
//
// Every implementation follows the same contract: name search is a
// case-insensitive substring match returning records in insertion order,
// creates never overwrite and always mint a fresh identifier, and a
// business's normalized name and address are unique. Failures are returned
// as *models.ResolutionError so callers can classify them.
package recordstore

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/pkg/models"
)

// maxIDAttempts bounds id regeneration on collision.
const maxIDAttempts = 3

type Store interface {
	FindBusinessesByName(ctx context.Context, query string) ([]models.Business, error)
	CreateBusiness(ctx context.Context, fields models.BusinessFields) (*models.Business, error)
	GetBusiness(ctx context.Context, businessID string) (*models.Business, error)
	UpdateBusinessDetails(ctx context.Context, businessID string, update models.BusinessDetailsUpdate) (*models.Business, error)
	FindCompetitors(ctx context.Context, businessID string) ([]models.Competitor, error)
	CreateCompetitor(ctx context.Context, businessID string, fields models.CompetitorFields) (*models.Competitor, error)
}

var validate = validator.New()

func validateBusinessFields(fields *models.BusinessFields) error {
	fields.Name = strings.TrimSpace(fields.Name)
	fields.Address = strings.TrimSpace(fields.Address)
	fields.BusinessType = strings.TrimSpace(fields.BusinessType)
	if err := validate.Struct(fields); err != nil {
		return models.NewInvalidInputError("create_business", err)
	}
	return nil
}

func validateCompetitorFields(fields *models.CompetitorFields) error {
	fields.Name = strings.TrimSpace(fields.Name)
	fields.WebsiteURL = strings.TrimSpace(fields.WebsiteURL)
	if err := validate.Struct(fields); err != nil {
		return models.NewInvalidInputError("create_competitor", err)
	}
	return nil
}

func businessNotFound(op, businessID string) error {
	return models.NewReferenceError(op, &notFoundError{id: businessID})
}

type notFoundError struct {
	id string
}

func (e *notFoundError) Error() string {
	return models.ErrBusinessNotFound.Error() + ": " + e.id
}

func (e *notFoundError) Unwrap() error {
	return models.ErrBusinessNotFound
}
