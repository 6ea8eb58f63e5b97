package recordstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Memory is an in-process Store. Writes are serialised by a mutex.
type Memory struct {
	mu          sync.RWMutex
	businesses  []models.Business
	byID        map[string]int
	byKey       map[string]string
	competitors map[string][]models.Competitor
	compIDs     map[string]struct{}

	now             func() time.Time
	newBusinessID   func() string
	newCompetitorID func() string
}

type MemoryOption func(*Memory)

// WithIDGenerators overrides identifier generation.
func WithIDGenerators(business, competitor func() string) MemoryOption {
	return func(m *Memory) {
		if business != nil {
			m.newBusinessID = business
		}
		if competitor != nil {
			m.newCompetitorID = competitor
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		byID:            make(map[string]int),
		byKey:           make(map[string]string),
		competitors:     make(map[string][]models.Competitor),
		compIDs:         make(map[string]struct{}),
		now:             func() time.Time { return time.Now().UTC() },
		newBusinessID:   models.NewBusinessID,
		newCompetitorID: models.NewCompetitorID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) FindBusinessesByName(ctx context.Context, query string) ([]models.Business, error) {
	needle := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	return ectolinq.Filter(m.businesses, func(b models.Business) bool {
		return strings.Contains(strings.ToLower(b.Name), needle)
	}), nil
}

func (m *Memory) CreateBusiness(ctx context.Context, fields models.BusinessFields) (*models.Business, error) {
	if err := validateBusinessFields(&fields); err != nil {
		return nil, err
	}

	key := normalizers.BusinessKey(fields.Name, fields.Address)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byKey[key]; ok {
		return nil, &models.DuplicateBusinessError{ExistingID: existing}
	}

	id, err := m.freshID(m.newBusinessID, func(id string) bool {
		_, taken := m.byID[id]
		return taken
	})
	if err != nil {
		return nil, models.NewStorageError("create_business", err)
	}

	now := m.now()
	b := models.Business{
		ID:              id,
		Name:            fields.Name,
		Address:         fields.Address,
		BusinessType:    fields.BusinessType,
		Description:     fields.Description,
		ExternalPlaceID: fields.ExternalPlaceID,
		OwnerContact:    fields.OwnerContact,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.byID[id] = len(m.businesses)
	m.byKey[key] = id
	m.businesses = append(m.businesses, b)

	return &b, nil
}

func (m *Memory) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[businessID]
	if !ok {
		return nil, businessNotFound("get_business", businessID)
	}
	b := m.businesses[idx]
	return &b, nil
}

func (m *Memory) UpdateBusinessDetails(ctx context.Context, businessID string, update models.BusinessDetailsUpdate) (*models.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.byID[businessID]
	if !ok {
		return nil, businessNotFound("update_business_details", businessID)
	}

	b := &m.businesses[idx]
	if update.Description != nil {
		b.Description = *update.Description
	}
	if update.OwnerContact != nil {
		b.OwnerContact = *update.OwnerContact
	}
	b.UpdatedAt = m.now()

	out := *b
	return &out, nil
}

func (m *Memory) FindCompetitors(ctx context.Context, businessID string) ([]models.Competitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.Competitor{}, m.competitors[businessID]...), nil
}

func (m *Memory) CreateCompetitor(ctx context.Context, businessID string, fields models.CompetitorFields) (*models.Competitor, error) {
	if err := validateCompetitorFields(&fields); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[businessID]; !ok {
		return nil, businessNotFound("create_competitor", businessID)
	}

	id, err := m.freshID(m.newCompetitorID, func(id string) bool {
		_, taken := m.compIDs[id]
		return taken
	})
	if err != nil {
		return nil, models.NewStorageError("create_competitor", err)
	}

	c := models.Competitor{
		ID:              id,
		BusinessID:      businessID,
		Name:            fields.Name,
		WebsiteURL:      fields.WebsiteURL,
		ExternalPlaceID: fields.ExternalPlaceID,
		CreatedAt:       m.now(),
	}
	m.compIDs[id] = struct{}{}
	m.competitors[businessID] = append(m.competitors[businessID], c)

	return &c, nil
}

var errIDExhausted = errors.New("could not generate an unused identifier")

func (m *Memory) freshID(next func() string, taken func(string) bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		if id := next(); !taken(id) {
			return id, nil
		}
	}
	return "", errIDExhausted
}
