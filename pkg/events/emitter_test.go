package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

type capture struct {
	events []*kafka.Event
	err    error
}

func (c *capture) Publish(_ context.Context, event *kafka.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestEmitter_BusinessCreated(t *testing.T) {
	pub := &capture{}
	e := NewEmitter(pub, nopLogger())

	require.NoError(t, e.EmitBusinessCreated(context.Background(), models.Business{ID: "biz_1", Name: "Acme Corp"}))
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventBusinessCreated, pub.events[0].EventType)
	assert.Equal(t, "biz_1", pub.events[0].BusinessID)

	var b models.Business
	require.NoError(t, json.Unmarshal(pub.events[0].Data, &b))
	assert.Equal(t, "Acme Corp", b.Name)
}

func TestEmitter_CompetitorCreated(t *testing.T) {
	pub := &capture{}
	e := NewEmitter(pub, nopLogger())

	require.NoError(t, e.EmitCompetitorCreated(context.Background(), models.Competitor{ID: "comp_1", BusinessID: "biz_1"}))
	assert.Equal(t, "biz_1", pub.events[0].BusinessID)
	assert.Equal(t, "comp_1", pub.events[0].EntityID)
	assert.Equal(t, "competitor", pub.events[0].EntityType)
}

func TestEmitter_PublishFailure(t *testing.T) {
	e := NewEmitter(&capture{err: errors.New("broker down")}, nopLogger())
	assert.Error(t, e.EmitBusinessCreated(context.Background(), models.Business{ID: "biz_1"}))
}
