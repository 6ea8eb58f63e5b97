package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const flowCompetitor = "competitor"

// CompetitorSession is the state of one competitor resolution. A session
// produces at most one competitor; adding N competitors takes N sessions.
type CompetitorSession struct {
	State           State              `json:"state"`
	BusinessID      string             `json:"business_id"`
	Name            string             `json:"name,omitempty"`
	WebsiteURL      string             `json:"website_url,omitempty"`
	ExternalPlaceID string             `json:"external_place_id,omitempty"`
	Address         string             `json:"address,omitempty"`
	LookupDirectory bool               `json:"lookup_directory,omitempty"`
	LocationHint    *models.LatLng     `json:"location_hint,omitempty"`
	Candidates      []models.Candidate `json:"candidates,omitempty"`
	// Existing is the business's competitor list as of CHECK_EXISTING.
	Existing []models.Competitor `json:"existing_competitors,omitempty"`

	CompetitorID string           `json:"competitor_id,omitempty"`
	ErrorKind    models.ErrorKind `json:"error_kind,omitempty"`
	Error        string           `json:"error,omitempty"`
	Trail        []State          `json:"trail,omitempty"`
}

func NewCompetitorSession(businessID string) *CompetitorSession {
	return &CompetitorSession{State: StateStart, BusinessID: businessID}
}

func (s *CompetitorSession) transition(to State) {
	s.State = to
	s.Trail = append(s.Trail, to)
}

// CompetitorInput is what the caller supplies on each call. LookupDirectory
// asks for a directory search on Name and Address before creating; it is
// skipped when ExternalPlaceID is already known.
type CompetitorInput struct {
	BusinessID      string         `json:"business_id,omitempty"`
	Name            string         `json:"name,omitempty"`
	WebsiteURL      string         `json:"website_url,omitempty"`
	ExternalPlaceID string         `json:"external_place_id,omitempty"`
	Address         string         `json:"address,omitempty"`
	LookupDirectory bool           `json:"lookup_directory,omitempty"`
	LocationHint    *models.LatLng `json:"location,omitempty"`

	Decision
}

func (s *CompetitorSession) merge(in CompetitorInput) {
	switch s.State {
	case StateResolved, StateFailed:
		return
	case StateStart:
		if v := strings.TrimSpace(in.BusinessID); v != "" {
			s.BusinessID = v
		}
		s.LookupDirectory = s.LookupDirectory || in.LookupDirectory
		if in.LocationHint != nil {
			s.LocationHint = in.LocationHint
		}
	}
	if v := strings.TrimSpace(in.Name); v != "" {
		s.Name = v
	}
	if v := strings.TrimSpace(in.WebsiteURL); v != "" {
		s.WebsiteURL = v
	}
	if v := strings.TrimSpace(in.ExternalPlaceID); v != "" {
		s.ExternalPlaceID = v
	}
	if v := strings.TrimSpace(in.Address); v != "" {
		s.Address = v
	}
}

func (s *CompetitorSession) missingFields() []string {
	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if s.WebsiteURL == "" {
		missing = append(missing, "website_url")
	}
	return missing
}

// ResolveCompetitor advances s with in and reports what the caller must do next.
func (r *Resolver) ResolveCompetitor(ctx context.Context, s *CompetitorSession, in CompetitorInput) Result {
	ctx, span := tracing.StartSpan(ctx, "Resolver.ResolveCompetitor")
	defer span.End()

	if s.State == "" {
		s.State = StateStart
	}
	s.merge(in)

	res := r.stepCompetitor(ctx, s, in.Decision)
	tracing.SetAttributes(ctx, map[string]string{
		"resolver.flow":   flowCompetitor,
		"resolver.state":  string(res.State),
		"resolver.status": string(res.Status),
	})
	if res.Err != nil {
		tracing.RecordError(ctx, res.Err)
	}
	r.record(ctx, flowCompetitor, res)
	return res
}

func (r *Resolver) stepCompetitor(ctx context.Context, s *CompetitorSession, decision Decision) Result {
	withExisting := func(res Result) Result {
		res.Existing = s.Existing
		return res
	}

	for {
		switch s.State {
		case StateStart:
			if s.BusinessID == "" {
				return needsFields(s.State, []string{"business_id"})
			}
			s.transition(StateCheckExisting)

		case StateCheckExisting:
			found, err := r.store.FindCompetitors(ctx, s.BusinessID)
			if err != nil {
				return failed(s.State, "find_competitors", err)
			}
			s.Existing = found
			if len(found) > 0 {
				s.transition(StateHasCompetitors)
			} else {
				s.transition(StateNone)
			}

		case StateHasCompetitors, StateNone:
			if s.LookupDirectory && s.Address != "" && s.ExternalPlaceID == "" {
				s.transition(StateDirectoryLookup)
			} else {
				s.transition(StateCollectMissingFields)
			}

		case StateDirectoryLookup:
			s.Candidates = r.directory.Search(ctx, strings.TrimSpace(s.Name+" "+s.Address), s.LocationHint)
			switch len(s.Candidates) {
			case 0:
				s.transition(StateDirectoryNoMatch)
			case 1:
				s.transition(StateDirectoryMatchedSingle)
				return withExisting(needsConfirmation(s.State, s.Candidates))
			default:
				s.transition(StateDirectoryMatchedMultiple)
				return withExisting(needsConfirmation(s.State, s.Candidates))
			}

		case StateDirectoryMatchedSingle, StateDirectoryMatchedMultiple:
			if decision.empty() {
				return withExisting(needsConfirmation(s.State, s.Candidates))
			}
			if decision.rejects() {
				decision = Decision{}
				s.transition(StateDirectoryNoMatch)
				continue
			}
			idx, err := decision.choose(s.Candidates)
			if err != nil {
				return failed(s.State, "select_candidate", err)
			}
			decision = Decision{}
			chosen := s.Candidates[idx]
			s.Name = chosen.Name
			s.ExternalPlaceID = chosen.ExternalPlaceID
			if s.WebsiteURL == "" {
				s.WebsiteURL = chosen.Website
			}
			s.Candidates = nil
			s.transition(StateCollectMissingFields)

		case StateDirectoryNoMatch:
			s.Candidates = nil
			s.transition(StateCollectMissingFields)

		case StateCollectMissingFields:
			if missing := s.missingFields(); len(missing) > 0 {
				return withExisting(needsFields(s.State, missing))
			}
			s.transition(StateCreate)

		case StateCreate:
			return withExisting(r.createCompetitor(ctx, s))

		case StateResolved:
			return resolved(s.State, s.CompetitorID)

		case StateFailed:
			err := &models.ResolutionError{Kind: s.ErrorKind, Op: "create_competitor", Err: errors.New(s.Error)}
			return failed(s.State, "create_competitor", err)

		default:
			return failed(s.State, "resolve_competitor", models.NewInvalidInputError("resolve_competitor", errors.New("unknown state "+string(s.State))))
		}
	}
}

func (r *Resolver) createCompetitor(ctx context.Context, s *CompetitorSession) Result {
	created, err := r.store.CreateCompetitor(ctx, s.BusinessID, models.CompetitorFields{
		Name:            s.Name,
		WebsiteURL:      s.WebsiteURL,
		ExternalPlaceID: s.ExternalPlaceID,
	})
	if err != nil {
		res := failed(s.State, "create_competitor", err)
		// an unknown business is terminal for this session
		if errors.Is(err, models.ErrReference) {
			s.ErrorKind = res.ErrorKind
			s.Error = res.Error
			s.transition(StateFailed)
			res.State = s.State
		}
		return res
	}

	metrics.RecordCreated(flowCompetitor)
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"business_id":   s.BusinessID,
		"competitor_id": created.ID,
	}).Info("Created competitor")

	s.CompetitorID = created.ID
	s.transition(StateResolved)
	res := resolved(s.State, s.CompetitorID)
	res.Created = true
	res.Competitor = created
	return res
}
