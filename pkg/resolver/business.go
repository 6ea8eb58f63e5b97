package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const flowBusiness = "business"

// BusinessSession is the state of one business resolution.
type BusinessSession struct {
	State           State              `json:"state"`
	Name            string             `json:"name"`
	Address         string             `json:"address"`
	Description     string             `json:"description,omitempty"`
	LocationHint    *models.LatLng     `json:"location_hint,omitempty"`
	BusinessType    string             `json:"business_type,omitempty"`
	ExternalPlaceID string             `json:"external_place_id,omitempty"`
	OwnerContact    string             `json:"owner_contact,omitempty"`
	Candidates      []models.Candidate `json:"candidates,omitempty"`

	// DirectoryConfirmed is set once the caller accepts a directory candidate.
	DirectoryConfirmed bool `json:"directory_confirmed,omitempty"`
	// CreateAttempted is set when a create failed; the next CREATE re-runs
	// the local lookup first.
	CreateAttempted bool `json:"create_attempted,omitempty"`
	// Rejected holds the local records the caller turned down. A create that
	// collides with one of them is put back to the caller instead of resolving.
	Rejected []models.Candidate `json:"rejected,omitempty"`

	BusinessID string  `json:"business_id,omitempty"`
	Trail      []State `json:"trail,omitempty"`
}

func NewBusinessSession() *BusinessSession {
	return &BusinessSession{State: StateStart}
}

func (s *BusinessSession) transition(to State) {
	s.State = to
	s.Trail = append(s.Trail, to)
}

// BusinessInput is what the caller supplies on each call. Name, Address and
// LocationHint are only read while the session is at START; the remaining
// fields are merged whenever they are non-empty.
type BusinessInput struct {
	Name         string         `json:"name,omitempty"`
	Address      string         `json:"address,omitempty"`
	Description  string         `json:"description,omitempty"`
	LocationHint *models.LatLng `json:"location,omitempty"`

	BusinessType    string `json:"business_type,omitempty"`
	ExternalPlaceID string `json:"external_place_id,omitempty"`
	OwnerContact    string `json:"owner_contact,omitempty"`

	Decision
}

func (s *BusinessSession) merge(in BusinessInput) {
	if s.State == StateResolved {
		return
	}
	if s.State == StateStart {
		if v := strings.TrimSpace(in.Name); v != "" {
			s.Name = v
		}
		if v := strings.TrimSpace(in.Address); v != "" {
			s.Address = v
		}
		if in.LocationHint != nil {
			s.LocationHint = in.LocationHint
		}
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		s.Description = v
	}
	if v := strings.TrimSpace(in.BusinessType); v != "" {
		s.BusinessType = v
	}
	if v := strings.TrimSpace(in.ExternalPlaceID); v != "" && !s.DirectoryConfirmed {
		s.ExternalPlaceID = v
	}
	if v := strings.TrimSpace(in.OwnerContact); v != "" {
		s.OwnerContact = v
	}
}

func (s *BusinessSession) missingFields() []string {
	var missing []string
	if s.BusinessType == "" {
		missing = append(missing, "business_type")
	}
	if s.Description == "" && !s.DirectoryConfirmed {
		missing = append(missing, "description")
	}
	return missing
}

func (s *BusinessSession) naturalKey() string {
	return normalizers.BusinessKey(s.Name, s.Address)
}

// ResolveBusiness advances s with in and reports what the caller must do next.
func (r *Resolver) ResolveBusiness(ctx context.Context, s *BusinessSession, in BusinessInput) Result {
	ctx, span := tracing.StartSpan(ctx, "Resolver.ResolveBusiness")
	defer span.End()

	if s.State == "" {
		s.State = StateStart
	}
	s.merge(in)

	res := r.stepBusiness(ctx, s, in.Decision)
	tracing.SetAttributes(ctx, map[string]string{
		"resolver.flow":   flowBusiness,
		"resolver.state":  string(res.State),
		"resolver.status": string(res.Status),
	})
	if res.Err != nil {
		tracing.RecordError(ctx, res.Err)
	}
	r.record(ctx, flowBusiness, res)
	return res
}

func (r *Resolver) stepBusiness(ctx context.Context, s *BusinessSession, decision Decision) Result {
	for {
		switch s.State {
		case StateStart:
			var missing []string
			if s.Name == "" {
				missing = append(missing, "name")
			}
			if s.Address == "" {
				missing = append(missing, "address")
			}
			if len(missing) > 0 {
				return needsFields(s.State, missing)
			}
			s.transition(StateLookupLocal)

		case StateLookupLocal:
			found, err := r.store.FindBusinessesByName(ctx, s.Name)
			if err != nil {
				return failed(s.State, "find_businesses_by_name", err)
			}
			if s.CreateAttempted {
				return r.recheckAndCreate(ctx, s, found)
			}
			s.Candidates = ectolinq.Map(found, models.CandidateFromBusiness)
			switch len(found) {
			case 0:
				s.transition(StateNoMatch)
			case 1:
				s.transition(StateMatchedSingle)
				return needsConfirmation(s.State, s.Candidates)
			default:
				s.transition(StateMatchedMultiple)
				return needsConfirmation(s.State, s.Candidates)
			}

		case StateNoMatch, StateDirectoryNoMatch:
			s.Candidates = nil
			if s.State == StateNoMatch {
				s.transition(StateDirectoryLookup)
			} else {
				s.transition(StateCollectMissingFields)
			}

		case StateMatchedSingle, StateMatchedMultiple, StateDirectoryMatchedSingle, StateDirectoryMatchedMultiple:
			if decision.empty() {
				return needsConfirmation(s.State, s.Candidates)
			}
			local := s.State == StateMatchedSingle || s.State == StateMatchedMultiple
			if decision.rejects() {
				decision = Decision{}
				if local {
					s.Rejected = append(s.Rejected, s.Candidates...)
					s.transition(StateDirectoryLookup)
				} else {
					s.transition(StateDirectoryNoMatch)
				}
				continue
			}
			idx, err := decision.choose(s.Candidates)
			if err != nil {
				return failed(s.State, "select_candidate", err)
			}
			decision = Decision{}
			chosen := s.Candidates[idx]
			if local {
				s.BusinessID = chosen.BusinessID
				s.Candidates = nil
				s.transition(StateResolved)
				return resolved(s.State, s.BusinessID)
			}
			s.Name = chosen.Name
			s.Address = chosen.Address
			s.ExternalPlaceID = chosen.ExternalPlaceID
			s.DirectoryConfirmed = true
			s.Candidates = nil
			s.transition(StateCollectMissingFields)

		case StateDirectoryLookup:
			s.Candidates = r.directory.Search(ctx, s.Name+" "+s.Address, s.LocationHint)
			switch len(s.Candidates) {
			case 0:
				s.transition(StateDirectoryNoMatch)
			case 1:
				s.transition(StateDirectoryMatchedSingle)
				return needsConfirmation(s.State, s.Candidates)
			default:
				s.transition(StateDirectoryMatchedMultiple)
				return needsConfirmation(s.State, s.Candidates)
			}

		case StateCollectMissingFields:
			if missing := s.missingFields(); len(missing) > 0 {
				return needsFields(s.State, missing)
			}
			s.transition(StateCreate)

		case StateCreate:
			if s.CreateAttempted {
				s.transition(StateLookupLocal)
				continue
			}
			return r.createBusiness(ctx, s)

		case StateDuplicateFound:
			if decision.empty() {
				return needsConfirmation(s.State, s.Candidates)
			}
			if decision.rejects() {
				return failed(s.State, "confirm_duplicate", models.NewInvalidInputError("confirm_duplicate",
					errors.New("a business with this name and address already exists")))
			}
			idx, err := decision.choose(s.Candidates)
			if err != nil {
				return failed(s.State, "confirm_duplicate", err)
			}
			s.BusinessID = s.Candidates[idx].BusinessID
			s.Candidates = nil
			s.transition(StateResolved)
			return resolved(s.State, s.BusinessID)

		case StateResolved:
			return resolved(s.State, s.BusinessID)

		default:
			return failed(s.State, "resolve_business", models.NewInvalidInputError("resolve_business", errors.New("unknown state "+string(s.State))))
		}
	}
}

// rejectedDuplicate moves the session to DUPLICATE_FOUND when businessID is
// a record the caller already turned down.
func (s *BusinessSession) rejectedDuplicate(businessID string) (Result, bool) {
	c := ectolinq.Find(s.Rejected, func(c models.Candidate) bool { return c.BusinessID == businessID })
	if c.BusinessID == "" {
		return Result{}, false
	}
	s.CreateAttempted = false
	s.Candidates = []models.Candidate{c}
	s.transition(StateDuplicateFound)
	return needsConfirmation(s.State, s.Candidates), true
}

// recheckAndCreate runs after a failed create: a record already holding the
// session's natural key resolves the session, otherwise the create is retried.
func (r *Resolver) recheckAndCreate(ctx context.Context, s *BusinessSession, found []models.Business) Result {
	key := s.naturalKey()
	existing := ectolinq.Find(found, func(b models.Business) bool {
		return normalizers.BusinessKey(b.Name, b.Address) == key
	})
	if existing.ID != "" {
		if res, ok := s.rejectedDuplicate(existing.ID); ok {
			return res
		}
		r.logger.WithContext(ctx).WithField("business_id", existing.ID).Info("Retry found business written by an earlier attempt")
		s.CreateAttempted = false
		s.BusinessID = existing.ID
		s.transition(StateResolved)
		return resolved(s.State, s.BusinessID)
	}
	s.transition(StateCreate)
	s.CreateAttempted = false
	return r.createBusiness(ctx, s)
}

func (r *Resolver) createBusiness(ctx context.Context, s *BusinessSession) Result {
	fields := models.BusinessFields{
		Name:            s.Name,
		Address:         s.Address,
		BusinessType:    s.BusinessType,
		Description:     s.Description,
		ExternalPlaceID: s.ExternalPlaceID,
		OwnerContact:    s.OwnerContact,
	}

	var created *models.Business
	write := func() error {
		var err error
		created, err = r.store.CreateBusiness(ctx, fields)
		return err
	}

	var err error
	if r.locker != nil {
		err = r.locker.WithLock(ctx, "business:"+s.naturalKey(), r.lockTTL, write)
	} else {
		err = write()
	}

	var dup *models.DuplicateBusinessError
	switch {
	case errors.As(err, &dup):
		if res, ok := s.rejectedDuplicate(dup.ExistingID); ok {
			return res
		}
		r.logger.WithContext(ctx).WithField("business_id", dup.ExistingID).Info("Business already exists, reusing record")
		s.BusinessID = dup.ExistingID
		s.transition(StateResolved)
		return resolved(s.State, s.BusinessID)
	case err != nil:
		res := failed(s.State, "create_business", err)
		if res.ErrorKind == models.ErrorKindStorage {
			s.CreateAttempted = true
		}
		return res
	}

	metrics.RecordCreated(flowBusiness)
	r.logger.WithContext(ctx).WithField("business_id", created.ID).Info("Created business")

	s.BusinessID = created.ID
	s.transition(StateResolved)
	res := resolved(s.State, s.BusinessID)
	res.Created = true
	res.Business = created
	return res
}
