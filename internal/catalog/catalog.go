// Package catalog introspects PostGIS-enabled schemas and publishes a
// lock-free, point-in-time snapshot of the collections they expose
// (spec §4.5, C5).
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogserve/cogserve/internal/telemetry"
)

// Column describes one geometry-typed column discovered via PostGIS's
// geometry_columns view.
type Column struct {
	Name       string
	GeomType   string
	SRID       int
	Dimensions int
}

// Collection is one queryable table exposed by the catalog, named
// "schema.table" per spec §3.
type Collection struct {
	Schema  string
	Table   string
	Columns []Column
}

// ID returns the collection's "schema.table" identifier.
func (c Collection) ID() string { return c.Schema + "." + c.Table }

// Catalog is an immutable, point-in-time view of all discovered
// collections across the configured schemas, sorted alphabetically by
// ID for deterministic listing.
type Catalog struct {
	Collections []Collection
}

// ByID looks up a collection by its "schema.table" identifier.
func (c *Catalog) ByID(id string) (Collection, bool) {
	for _, coll := range c.Collections {
		if coll.ID() == id {
			return coll, true
		}
	}
	return Collection{}, false
}

// Service owns the currently published Catalog and knows how to rebuild
// one from the database. Publication uses an atomic.Pointer so readers
// never block on, or observe a partially built, catalog (P4).
type Service struct {
	current atomic.Pointer[Catalog]
	schemas []string
	logger  *slog.Logger
}

// NewService creates a catalog Service scoped to the given PostGIS
// schemas. An empty schemas list is valid and yields an empty catalog,
// not an error (B3).
func NewService(schemas []string, logger *slog.Logger) *Service {
	s := &Service{schemas: schemas, logger: logger}
	s.current.Store(&Catalog{})
	return s
}

// Current returns the most recently published catalog. It never blocks
// and never returns nil.
func (s *Service) Current() *Catalog {
	return s.current.Load()
}

// Refresh re-introspects all configured schemas over pool and publishes
// the result, replacing whatever catalog was previously current. A
// refresh failure leaves the previously published catalog untouched.
func (s *Service) Refresh(ctx context.Context, pool *pgxpool.Pool) error {
	next, err := Load(ctx, pool, s.schemas)
	if err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}
	s.current.Store(next)
	telemetry.CatalogCollections.Set(float64(len(next.Collections)))
	if s.logger != nil {
		s.logger.Info("catalog refreshed", "collections", len(next.Collections), "schemas", s.schemas)
	}
	return nil
}

// Load introspects the given PostGIS schemas and returns a freshly built
// Catalog. An empty schemas slice returns an empty, non-nil Catalog
// (B3): the VectorAPI being enabled with nothing configured is a valid,
// quiet state rather than a 5xx.
func Load(ctx context.Context, pool *pgxpool.Pool, schemas []string) (*Catalog, error) {
	if len(schemas) == 0 {
		return &Catalog{}, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT f_table_schema, f_table_name, f_geometry_column, type, srid, coord_dimension
		FROM geometry_columns
		WHERE f_table_schema = ANY($1)
		ORDER BY f_table_schema, f_table_name, f_geometry_column
	`, schemas)
	if err != nil {
		return nil, fmt.Errorf("querying geometry_columns: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Collection)
	var order []string

	for rows.Next() {
		var schema, table, column, geomType string
		var srid, dims int
		if err := rows.Scan(&schema, &table, &column, &geomType, &srid, &dims); err != nil {
			return nil, fmt.Errorf("scanning geometry_columns row: %w", err)
		}

		id := schema + "." + table
		coll, ok := byID[id]
		if !ok {
			coll = &Collection{Schema: schema, Table: table}
			byID[id] = coll
			order = append(order, id)
		}
		coll.Columns = append(coll.Columns, Column{
			Name:       column,
			GeomType:   geomType,
			SRID:       srid,
			Dimensions: dims,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating geometry_columns: %w", err)
	}

	sort.Strings(order)
	collections := make([]Collection, 0, len(order))
	for _, id := range order {
		collections = append(collections, *byID[id])
	}
	return &Catalog{Collections: collections}, nil
}
