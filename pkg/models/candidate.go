package models

type CandidateSource string

const (
	CandidateSourceLocal     CandidateSource = "local"
	CandidateSourceDirectory CandidateSource = "directory"
)

// Candidate is a possible match presented to the user for confirmation.
// Local candidates carry the BusinessID of the stored record.
type Candidate struct {
	Source          CandidateSource `json:"source"`
	BusinessID      string          `json:"business_id,omitempty"`
	Name            string          `json:"name"`
	Address         string          `json:"address"`
	ExternalPlaceID string          `json:"external_place_id,omitempty"`
	Website         string          `json:"website,omitempty"`
	Phone           string          `json:"phone,omitempty"`
}

// LatLng is an optional location bias for directory searches.
type LatLng struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// CandidateFromBusiness presents a stored business as a local candidate.
func CandidateFromBusiness(b Business) Candidate {
	return Candidate{
		Source:          CandidateSourceLocal,
		BusinessID:      b.ID,
		Name:            b.Name,
		Address:         b.Address,
		ExternalPlaceID: b.ExternalPlaceID,
	}
}
