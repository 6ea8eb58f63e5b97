// Package onboarding sequences business and competitor resolution for one
// onboarding session: the business is resolved first, then each competitor
// the caller supplies.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolver"
	"github.com/Ramsey-B/fern/pkg/session"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrBusinessNotResolved is returned when competitors are added before the
	// session has a business id.
	ErrBusinessNotResolved = errors.New("business must be resolved before competitors are added")
	ErrSessionNotFound     = session.ErrNotFound
)

// Records is the read side of the record store used by the workflow.
type Records interface {
	GetBusiness(ctx context.Context, businessID string) (*models.Business, error)
	FindCompetitors(ctx context.Context, businessID string) ([]models.Competitor, error)
}

// Emitter publishes onboarding events.
type Emitter interface {
	EmitBusinessCreated(ctx context.Context, b models.Business) error
	EmitCompetitorCreated(ctx context.Context, c models.Competitor) error
}

// Projector mirrors created records into the competitor graph.
type Projector interface {
	ProjectBusiness(ctx context.Context, b models.Business) error
	ProjectCompetitor(ctx context.Context, c models.Competitor) error
}

// Locker serialises calls on one session.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

type Session struct {
	ID          string                       `json:"session_id"`
	BusinessID  string                       `json:"business_id,omitempty"`
	Business    resolver.BusinessSession     `json:"business"`
	Competitors []resolver.CompetitorSession `json:"competitors,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

type StartInput struct {
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	Description string         `json:"description,omitempty"`
	Location    *models.LatLng `json:"location,omitempty"`
	// BusinessID starts the session with a known business and skips the
	// business phase.
	BusinessID string `json:"business_id,omitempty"`
}

type CompetitorResult struct {
	Index int `json:"index"`
	resolver.Result
}

// Response is returned by every workflow call. BusinessID is set as soon as
// the business is resolved.
type Response struct {
	SessionID   string             `json:"session_id"`
	BusinessID  string             `json:"business_id,omitempty"`
	Business    *resolver.Result   `json:"business,omitempty"`
	Competitors []CompetitorResult `json:"competitors,omitempty"`
	Complete    bool               `json:"complete"`
}

type Option func(*Workflow)

func WithEmitter(e Emitter) Option {
	return func(w *Workflow) { w.emitter = e }
}

func WithProjector(p Projector) Option {
	return func(w *Workflow) { w.projector = p }
}

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(w *Workflow) {
		w.locker = l
		w.lockTTL = ttl
	}
}

type Workflow struct {
	resolver  *resolver.Resolver
	records   Records
	sessions  session.Store[Session]
	emitter   Emitter
	projector Projector
	locker    Locker
	lockTTL   time.Duration
	// mu serialises updates when no distributed locker is configured
	mu        sync.Mutex
	logger    ectologger.Logger
	now       func() time.Time
}

func NewWorkflow(res *resolver.Resolver, records Records, sessions session.Store[Session], logger ectologger.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		resolver: res,
		records:  records,
		sessions: sessions,
		lockTTL:  10 * time.Second,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start opens a session and runs the first business resolution step.
func (w *Workflow) Start(ctx context.Context, in StartInput) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "Workflow.Start")
	defer span.End()

	now := w.now()
	s := &Session{
		ID:        uuid.NewString(),
		Business:  *resolver.NewBusinessSession(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	log := w.logger.WithContext(ctx).WithField("session_id", s.ID)

	var result resolver.Result
	if in.BusinessID != "" {
		b, err := w.records.GetBusiness(ctx, in.BusinessID)
		if err != nil {
			return nil, err
		}
		s.Business.Name = b.Name
		s.Business.Address = b.Address
		s.Business.BusinessID = b.ID
		s.Business.State = resolver.StateResolved
		result = resolver.Result{Status: resolver.StatusResolved, State: resolver.StateResolved, ID: b.ID}
	} else {
		result = w.resolver.ResolveBusiness(ctx, &s.Business, resolver.BusinessInput{
			Name:         in.Name,
			Address:      in.Address,
			Description:  in.Description,
			LocationHint: in.Location,
		})
		w.afterBusiness(ctx, result)
	}
	s.BusinessID = s.Business.BusinessID

	if err := w.sessions.Save(ctx, s.ID, s); err != nil {
		return nil, models.NewStorageError("save_session", err)
	}
	log.WithField("state", s.Business.State).Info("Started onboarding session")

	resp := w.response(ctx, s)
	resp.Business = &result
	return resp, nil
}

// Get returns the stored session.
func (w *Workflow) Get(ctx context.Context, sessionID string) (*Session, error) {
	return w.sessions.Get(ctx, sessionID)
}

// Status reports the session's business id and completion.
func (w *Workflow) Status(ctx context.Context, sessionID string) (*Response, error) {
	s, err := w.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return w.response(ctx, s), nil
}

// RespondBusiness feeds a confirmation, selection or missing fields into the
// business resolution.
func (w *Workflow) RespondBusiness(ctx context.Context, sessionID string, in resolver.BusinessInput) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "Workflow.RespondBusiness")
	defer span.End()

	var resp *Response
	err := w.update(ctx, sessionID, func(s *Session) {
		result := w.resolver.ResolveBusiness(ctx, &s.Business, in)
		w.afterBusiness(ctx, result)
		s.BusinessID = s.Business.BusinessID

		resp = w.response(ctx, s)
		resp.Business = &result
	})
	return resp, err
}

// AddCompetitors starts one competitor resolution per input.
func (w *Workflow) AddCompetitors(ctx context.Context, sessionID string, inputs []resolver.CompetitorInput) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "Workflow.AddCompetitors")
	defer span.End()

	var resp *Response
	var notResolved bool
	err := w.update(ctx, sessionID, func(s *Session) {
		if s.BusinessID == "" {
			notResolved = true
			return
		}
		results := make([]CompetitorResult, 0, len(inputs))
		for _, in := range inputs {
			cs := resolver.NewCompetitorSession(s.BusinessID)
			in.BusinessID = ""
			result := w.resolver.ResolveCompetitor(ctx, cs, in)
			w.afterCompetitor(ctx, result)

			s.Competitors = append(s.Competitors, *cs)
			results = append(results, CompetitorResult{Index: len(s.Competitors) - 1, Result: result})
		}
		resp = w.response(ctx, s)
		resp.Competitors = results
	})
	if err != nil {
		return nil, err
	}
	if notResolved {
		return nil, ErrBusinessNotResolved
	}
	return resp, nil
}

// RespondCompetitor feeds input into the competitor resolution at index.
func (w *Workflow) RespondCompetitor(ctx context.Context, sessionID string, index int, in resolver.CompetitorInput) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "Workflow.RespondCompetitor")
	defer span.End()

	var resp *Response
	var badIndex bool
	err := w.update(ctx, sessionID, func(s *Session) {
		if index < 0 || index >= len(s.Competitors) {
			badIndex = true
			return
		}
		in.BusinessID = ""
		result := w.resolver.ResolveCompetitor(ctx, &s.Competitors[index], in)
		w.afterCompetitor(ctx, result)

		resp = w.response(ctx, s)
		resp.Competitors = []CompetitorResult{{Index: index, Result: result}}
	})
	if err != nil {
		return nil, err
	}
	if badIndex {
		return nil, models.NewInvalidInputError("respond_competitor", fmt.Errorf("no competitor at index %d", index))
	}
	return resp, nil
}

// Abort discards the session. Records already created are kept.
func (w *Workflow) Abort(ctx context.Context, sessionID string) error {
	if _, err := w.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	if err := w.sessions.Delete(ctx, sessionID); err != nil {
		return models.NewStorageError("delete_session", err)
	}
	w.logger.WithContext(ctx).WithField("session_id", sessionID).Info("Aborted onboarding session")
	return nil
}

// update loads the session, applies fn and saves the result, holding the
// session lock when one is configured.
func (w *Workflow) update(ctx context.Context, sessionID string, fn func(s *Session)) error {
	run := func() error {
		s, err := w.sessions.Get(ctx, sessionID)
		if errors.Is(err, session.ErrNotFound) {
			return err
		}
		if err != nil {
			return models.NewStorageError("load_session", err)
		}
		fn(s)
		s.UpdatedAt = w.now()
		if err := w.sessions.Save(ctx, sessionID, s); err != nil {
			return models.NewStorageError("save_session", err)
		}
		return nil
	}
	if w.locker == nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		return run()
	}
	err := w.locker.WithLock(ctx, "session:"+sessionID, w.lockTTL, run)
	if err != nil && models.KindOf(err) == "" && !errors.Is(err, session.ErrNotFound) {
		return models.NewStorageError("lock_session", err)
	}
	return err
}

func (w *Workflow) response(ctx context.Context, s *Session) *Response {
	return &Response{
		SessionID:  s.ID,
		BusinessID: s.BusinessID,
		Complete:   w.complete(ctx, s.BusinessID),
	}
}

// complete reports whether the business exists and has at least one competitor.
func (w *Workflow) complete(ctx context.Context, businessID string) bool {
	if businessID == "" {
		return false
	}
	found, err := w.records.FindCompetitors(ctx, businessID)
	if err != nil {
		w.logger.WithContext(ctx).WithError(err).Warn("Failed to check onboarding completion")
		return false
	}
	return len(found) > 0
}

func (w *Workflow) afterBusiness(ctx context.Context, result resolver.Result) {
	if !result.Created || result.Business == nil {
		return
	}
	log := w.logger.WithContext(ctx).WithField("business_id", result.Business.ID)
	if w.emitter != nil {
		if err := w.emitter.EmitBusinessCreated(ctx, *result.Business); err != nil {
			log.WithError(err).Warn("Failed to emit business created event")
		}
	}
	if w.projector != nil {
		if err := w.projector.ProjectBusiness(ctx, *result.Business); err != nil {
			log.WithError(err).Warn("Failed to project business")
		}
	}
}

func (w *Workflow) afterCompetitor(ctx context.Context, result resolver.Result) {
	if !result.Created || result.Competitor == nil {
		return
	}
	log := w.logger.WithContext(ctx).WithField("competitor_id", result.Competitor.ID)
	if w.emitter != nil {
		if err := w.emitter.EmitCompetitorCreated(ctx, *result.Competitor); err != nil {
			log.WithError(err).Warn("Failed to emit competitor created event")
		}
	}
	if w.projector != nil {
		if err := w.projector.ProjectCompetitor(ctx, *result.Competitor); err != nil {
			log.WithError(err).Warn("Failed to project competitor")
		}
	}
}
