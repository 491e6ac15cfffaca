// Package reader defines the black-box contract between the control
// plane and the external format readers that actually decode tiles and
// metadata — Cloud-Optimized GeoTIFF, Zarr/NetCDF, STAC mosaics, and
// PostGIS vector tiles. None of these readers are implemented here
// (spec §1 Non-goals: raster decoding, reprojection, mosaicking,
// vector-tile encoding); this package only shapes the credential
// hand-off and the minimal query types route handlers would pass
// through to a real implementation.
package reader

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Credential is the backend-facing shape of a storage credential: a
// storage-account identifier plus a bearer token, the two keys the
// supported reader backends require (spec §6 Reader binding contract).
type Credential struct {
	StorageAccount string
	BearerToken    string
}

// COGReader opens Cloud-Optimized GeoTIFFs over HTTP byte-range reads,
// authenticating with the credential supplied per call rather than
// through process environment variables.
type COGReader interface {
	Info(ctx context.Context, uri string, cred Credential) (map[string]any, error)
	Tile(ctx context.Context, uri string, z, x, y int, cred Credential) ([]byte, error)
}

// ZarrReader opens chunked multidimensional array stores.
type ZarrReader interface {
	Info(ctx context.Context, uri string, cred Credential) (map[string]any, error)
	Tile(ctx context.Context, uri string, z, x, y int, variable string, cred Credential) ([]byte, error)
}

// MosaicReader renders tiles from a STAC-cataloged mosaic, querying the
// catalog through the control plane's synchronous database pool — the
// mosaic reader this models is itself synchronous, which is why C4
// maintains a database/sql pool alongside the cooperative pgxpool one.
type MosaicReader interface {
	Tile(ctx context.Context, db *sql.DB, collectionID string, z, x, y int, cred Credential) ([]byte, error)
}

// VectorTileReader renders Mapbox Vector Tiles from a PostGIS table
// exposed by the catalog (C5), querying through the cooperative pool.
type VectorTileReader interface {
	Tile(ctx context.Context, pool *pgxpool.Pool, collectionID string, z, x, y int) ([]byte, error)
}
