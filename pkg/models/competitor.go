package models

import "time"

// Competitor is a business the owner competes with. Competitors are
// append-only and belong to exactly one Business.
type Competitor struct {
	ID              string    `json:"competitor_id"`
	BusinessID      string    `json:"business_id"`
	Name            string    `json:"name"`
	WebsiteURL      string    `json:"website_url"`
	ExternalPlaceID string    `json:"external_place_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type CompetitorFields struct {
	Name            string `json:"name" validate:"required"`
	WebsiteURL      string `json:"website_url" validate:"required"`
	ExternalPlaceID string `json:"external_place_id,omitempty"`
}
