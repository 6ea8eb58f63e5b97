package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	BusinessIDPrefix   = "biz_"
	CompetitorIDPrefix = "comp_"
)

// Business is the canonical record for a small business owned by a user.
type Business struct {
	ID              string    `json:"business_id"`
	Name            string    `json:"name"`
	Address         string    `json:"address"`
	BusinessType    string    `json:"business_type"`
	Description     string    `json:"description,omitempty"`
	ExternalPlaceID string    `json:"external_place_id,omitempty"`
	OwnerContact    string    `json:"owner_contact,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BusinessFields are the attributes needed to create a Business.
type BusinessFields struct {
	Name            string `json:"name" validate:"required"`
	Address         string `json:"address" validate:"required"`
	BusinessType    string `json:"business_type" validate:"required"`
	Description     string `json:"description,omitempty"`
	ExternalPlaceID string `json:"external_place_id,omitempty"`
	OwnerContact    string `json:"owner_contact,omitempty"`
}

// BusinessDetailsUpdate amends the mutable attributes of a Business. Nil
// fields are left unchanged.
type BusinessDetailsUpdate struct {
	Description  *string `json:"description,omitempty"`
	OwnerContact *string `json:"owner_contact,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u BusinessDetailsUpdate) IsEmpty() bool {
	return u.Description == nil && u.OwnerContact == nil
}

// NewBusinessID returns a fresh business identifier.
func NewBusinessID() string {
	return BusinessIDPrefix + shortUUID()
}

// NewCompetitorID returns a fresh competitor identifier.
func NewCompetitorID() string {
	return CompetitorIDPrefix + shortUUID()
}

func shortUUID() string {
	id := uuid.New().String()
	return id[:strings.IndexByte(id, '-')]
}
