package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/models"

	"github.com/lib/pq"
)

// Schema creates the listings table. Materials are kept as a JSONB document
// since they are only ever read back whole.
const Schema = `
CREATE TABLE IF NOT EXISTS listings (
    seq           BIGSERIAL,
    id            TEXT PRIMARY KEY,
    role          TEXT NOT NULL CHECK (role IN ('supply', 'demand')),
    company_id    TEXT NOT NULL DEFAULT '',
    company_name  TEXT NOT NULL DEFAULT '',
    industry      TEXT NOT NULL DEFAULT '',
    address       TEXT NOT NULL DEFAULT '',
    city          TEXT NOT NULL DEFAULT '',
    state         TEXT NOT NULL DEFAULT '',
    zip           TEXT NOT NULL DEFAULT '',
    lat           DOUBLE PRECISION,
    lng           DOUBLE PRECISION,
    materials     JSONB NOT NULL DEFAULT '[]',
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS listings_role_idx ON listings (role);
`

const listingColumns = `id, role, company_id, company_name, industry, address, city, state, zip, lat, lng, materials`

const (
	queryListAll    = `SELECT ` + listingColumns + ` FROM listings ORDER BY seq`
	queryListByRole = `SELECT ` + listingColumns + ` FROM listings WHERE role = $1 ORDER BY seq`
	queryGet        = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	queryGetMany    = `SELECT ` + listingColumns + ` FROM listings WHERE id = ANY($1) ORDER BY seq`
	queryDelete     = `DELETE FROM listings WHERE id = $1`
	queryUpsert     = `
INSERT INTO listings (` + listingColumns + `, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
ON CONFLICT (id) DO UPDATE SET
    role = EXCLUDED.role,
    company_id = EXCLUDED.company_id,
    company_name = EXCLUDED.company_name,
    industry = EXCLUDED.industry,
    address = EXCLUDED.address,
    city = EXCLUDED.city,
    state = EXCLUDED.state,
    zip = EXCLUDED.zip,
    lat = EXCLUDED.lat,
    lng = EXCLUDED.lng,
    materials = EXCLUDED.materials,
    updated_at = NOW()`
)

// ListingRepository is the Postgres system of record for listings.
type ListingRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewListingRepository(db *sql.DB, log logger.Logger) *ListingRepository {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ListingRepository{db: db, logger: log}
}

// EnsureSchema creates the listings table if it does not exist.
func (r *ListingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return apperrors.NewQueryExecutionFailedError("ensure_schema", err)
	}
	return nil
}

// Pool returns every listing in insertion order.
func (r *ListingRepository) Pool(ctx context.Context) ([]models.Listing, error) {
	return r.query(ctx, "list", queryListAll)
}

func (r *ListingRepository) ListByRole(ctx context.Context, role models.Role) ([]models.Listing, error) {
	if !role.Valid() {
		return nil, apperrors.NewInvalidFilterFormatError(fmt.Sprintf("unknown listing role %q", role))
	}
	return r.query(ctx, "list_by_role", queryListByRole, string(role))
}

// GetMany returns the listings whose ids are given. Missing ids are skipped.
func (r *ListingRepository) GetMany(ctx context.Context, ids []string) ([]models.Listing, error) {
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}
	return r.query(ctx, "get_many", queryGetMany, pq.Array(ids))
}

func (r *ListingRepository) Get(ctx context.Context, id string) (*models.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, queryGet, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewListingNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get", err)
	}
	return &l, nil
}

// Upsert validates and writes the listings in one transaction. Nothing is
// written if any listing is invalid or any statement fails.
func (r *ListingRepository) Upsert(ctx context.Context, listings ...models.Listing) error {
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("upsert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, queryUpsert)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("upsert", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		args, err := listingArgs(l)
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("upsert", err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return apperrors.NewQueryExecutionFailedError("upsert", fmt.Errorf("listing %s: %w", l.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewQueryExecutionFailedError("upsert", err)
	}

	r.logger.Debug("listings upserted", map[string]interface{}{"count": len(listings)})
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, queryDelete, id)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("delete", err)
	}
	if n == 0 {
		return apperrors.NewListingNotFoundError(id)
	}
	return nil
}

func (r *ListingRepository) query(ctx context.Context, queryType, q string, args ...interface{}) ([]models.Listing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(queryType, err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError(queryType, err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(queryType, err)
	}
	return listings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (models.Listing, error) {
	var (
		l         models.Listing
		role      string
		lat, lng  sql.NullFloat64
		materials []byte
	)
	err := row.Scan(
		&l.ID, &role,
		&l.Company.ID, &l.Company.Name, &l.Company.Industry,
		&l.Location.Address, &l.Location.City, &l.Location.State, &l.Location.Zip,
		&lat, &lng, &materials,
	)
	if err != nil {
		return models.Listing{}, err
	}
	l.Role = models.Role(role)
	if lat.Valid && lng.Valid {
		l.Location.Coordinates = &models.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	if len(materials) > 0 {
		if err := json.Unmarshal(materials, &l.Materials); err != nil {
			return models.Listing{}, fmt.Errorf("decode materials of %s: %w", l.ID, err)
		}
	}
	if l.Materials == nil {
		l.Materials = []models.MaterialLine{}
	}
	return l, nil
}

func listingArgs(l models.Listing) ([]interface{}, error) {
	materials := l.Materials
	if materials == nil {
		materials = []models.MaterialLine{}
	}
	raw, err := json.Marshal(materials)
	if err != nil {
		return nil, fmt.Errorf("encode materials of %s: %w", l.ID, err)
	}

	var lat, lng sql.NullFloat64
	if c, ok := l.Coordinate(); ok {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: c.Lng, Valid: true}
	}

	return []interface{}{
		l.ID, string(l.Role),
		l.Company.ID, l.Company.Name, l.Company.Industry,
		l.Location.Address, l.Location.City, l.Location.State, l.Location.Zip,
		lat, lng, raw,
	}, nil
}
