// Package resolver turns caller-supplied business and competitor attributes
// into canonical record identifiers.
//
// Resolution is a state machine driven by the caller: each call advances the
// session as far as it can without more input and returns a Result telling
// the caller what is needed next. Sessions are plain values owned by the
// caller and are safe to serialise between calls.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

type RecordStore interface {
	FindBusinessesByName(ctx context.Context, query string) ([]models.Business, error)
	CreateBusiness(ctx context.Context, fields models.BusinessFields) (*models.Business, error)
	FindCompetitors(ctx context.Context, businessID string) ([]models.Competitor, error)
	CreateCompetitor(ctx context.Context, businessID string, fields models.CompetitorFields) (*models.Competitor, error)
}

type Directory interface {
	Search(ctx context.Context, query string, hint *models.LatLng) []models.Candidate
}

// Locker guards business creation across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

type State string

const (
	StateStart                    State = "START"
	StateLookupLocal              State = "LOOKUP_LOCAL"
	StateMatchedSingle            State = "MATCHED_SINGLE"
	StateMatchedMultiple          State = "MATCHED_MULTIPLE"
	StateNoMatch                  State = "NO_MATCH"
	StateDirectoryLookup          State = "DIRECTORY_LOOKUP"
	StateDirectoryMatchedSingle   State = "DIRECTORY_MATCHED_SINGLE"
	StateDirectoryMatchedMultiple State = "DIRECTORY_MATCHED_MULTIPLE"
	StateDirectoryNoMatch         State = "DIRECTORY_NO_MATCH"
	StateCollectMissingFields     State = "COLLECT_MISSING_FIELDS"
	StateCreate                   State = "CREATE"
	StateDuplicateFound           State = "DUPLICATE_FOUND"
	StateResolved                 State = "RESOLVED"

	StateCheckExisting  State = "CHECK_EXISTING"
	StateHasCompetitors State = "HAS_COMPETITORS"
	StateNone           State = "NONE"
	StateFailed         State = "FAILED"
)

type Status string

const (
	StatusResolved          Status = "resolved"
	StatusNeedsConfirmation Status = "needs_confirmation"
	StatusNeedsFields       Status = "needs_fields"
	StatusFailed            Status = "failed"
)

// Result is the outcome of one resolver call.
type Result struct {
	Status     Status              `json:"status"`
	State      State               `json:"state"`
	ID         string              `json:"id,omitempty"`
	Created    bool                `json:"created,omitempty"`
	Candidates []models.Candidate  `json:"candidates,omitempty"`
	Missing    []string            `json:"missing,omitempty"`
	ErrorKind  models.ErrorKind    `json:"error_kind,omitempty"`
	Error      string              `json:"error,omitempty"`
	Existing   []models.Competitor `json:"existing_competitors,omitempty"`

	// Set when this call created the record.
	Business   *models.Business   `json:"business,omitempty"`
	Competitor *models.Competitor `json:"competitor,omitempty"`

	Err error `json:"-"`
}

// Decision is the caller's answer to a NeedsConfirmation result. Selection
// is a 1-based ordinal into the presented candidates.
type Decision struct {
	Confirm   *bool `json:"confirm,omitempty"`
	Selection int   `json:"selection,omitempty"`
	RejectAll bool  `json:"reject_all,omitempty"`
}

func (d Decision) empty() bool {
	return d.Confirm == nil && d.Selection == 0 && !d.RejectAll
}

func (d Decision) rejects() bool {
	return d.RejectAll || (d.Confirm != nil && !*d.Confirm)
}

// choose returns the index of the selected candidate, or -1 when the
// decision selects nothing.
func (d Decision) choose(candidates []models.Candidate) (int, error) {
	switch {
	case d.Selection != 0:
		if d.Selection < 1 || d.Selection > len(candidates) {
			return -1, models.NewInvalidInputError("select_candidate", errInvalidSelection)
		}
		return d.Selection - 1, nil
	case d.Confirm != nil && *d.Confirm:
		if len(candidates) != 1 {
			return -1, models.NewInvalidInputError("select_candidate", errSelectionRequired)
		}
		return 0, nil
	}
	return -1, nil
}

var (
	errInvalidSelection  = errors.New("selection is out of range")
	errSelectionRequired = errors.New("several candidates are presented, a selection is required")
)

type Option func(*Resolver)

// WithLocker serialises business creation per natural key.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.locker = locker
		r.lockTTL = ttl
	}
}

type Resolver struct {
	store     RecordStore
	directory Directory
	locker    Locker
	lockTTL   time.Duration
	logger    ectologger.Logger
}

func NewResolver(store RecordStore, directory Directory, logger ectologger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		directory: directory,
		lockTTL:   10 * time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func resolved(state State, id string) Result {
	return Result{Status: StatusResolved, State: state, ID: id}
}

func needsConfirmation(state State, candidates []models.Candidate) Result {
	return Result{Status: StatusNeedsConfirmation, State: state, Candidates: candidates}
}

func needsFields(state State, missing []string) Result {
	return Result{Status: StatusNeedsFields, State: state, Missing: missing}
}

// failed classifies err. Errors without a kind are storage failures.
func failed(state State, op string, err error) Result {
	kind := models.KindOf(err)
	if kind == "" {
		err = models.NewStorageError(op, err)
		kind = models.ErrorKindStorage
	}
	return Result{Status: StatusFailed, State: state, ErrorKind: kind, Error: err.Error(), Err: err}
}

func (r *Resolver) record(ctx context.Context, flow string, res Result) {
	metrics.RecordResolution(flow, string(res.Status), string(res.ErrorKind))

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"flow":   flow,
		"state":  res.State,
		"status": res.Status,
	})
	if res.Err != nil {
		log.WithError(res.Err).Warn("Resolution failed")
		return
	}
	log.Debug("Resolution step complete")
}
