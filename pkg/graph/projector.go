package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	upsertBusinessCypher = `
MERGE (b:Business {id: $id})
SET b.name = $name,
    b.address = $address,
    b.business_type = $business_type,
    b.external_place_id = $external_place_id,
    b.created_at = $created_at`

	upsertCompetitorCypher = `
MERGE (b:Business {id: $business_id})
MERGE (c:Competitor {id: $id})
SET c.name = $name,
    c.website_url = $website_url,
    c.external_place_id = $external_place_id,
    c.created_at = $created_at
MERGE (b)-[:COMPETES_WITH]->(c)`
)

// Writer runs a single write statement.
type Writer interface {
	Write(ctx context.Context, cypher string, params map[string]any) error
}

// Projector mirrors businesses and competitors as
// (:Business)-[:COMPETES_WITH]->(:Competitor).
type Projector struct {
	db     Writer
	logger ectologger.Logger
}

func NewProjector(db Writer, logger ectologger.Logger) *Projector {
	return &Projector{db: db, logger: logger}
}

func (p *Projector) ProjectBusiness(ctx context.Context, b models.Business) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectBusiness")
	defer span.End()

	return p.write(ctx, "business", upsertBusinessCypher, map[string]any{
		"id":                b.ID,
		"name":              b.Name,
		"address":           b.Address,
		"business_type":     b.BusinessType,
		"external_place_id": b.ExternalPlaceID,
		"created_at":        b.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (p *Projector) ProjectCompetitor(ctx context.Context, c models.Competitor) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectCompetitor")
	defer span.End()

	return p.write(ctx, "competitor", upsertCompetitorCypher, map[string]any{
		"id":                c.ID,
		"business_id":       c.BusinessID,
		"name":              c.Name,
		"website_url":       c.WebsiteURL,
		"external_place_id": c.ExternalPlaceID,
		"created_at":        c.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (p *Projector) write(ctx context.Context, kind, cypher string, params map[string]any) error {
	if err := p.db.Write(ctx, cypher, params); err != nil {
		metrics.RecordGraphProjection(kind, "error")
		p.logger.WithContext(ctx).WithError(err).WithField("id", params["id"]).Errorf("Failed to project %s", kind)
		return err
	}
	metrics.RecordGraphProjection(kind, "ok")
	return nil
}
