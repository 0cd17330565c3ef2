package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadwatch/console/internal/domain"
)

// Schema creates the tables used by the repository
const Schema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query        TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	display_name TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS query_log (
	id            BIGSERIAL PRIMARY KEY,
	view_id       TEXT NOT NULL,
	latitude      DOUBLE PRECISION NOT NULL,
	longitude     DOUBLE PRECISION NOT NULL,
	radius        INTEGER NOT NULL,
	incident_type TEXT,
	source        TEXT NOT NULL,
	timestamp     TIMESTAMPTZ NOT NULL
);
`

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates missing tables
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: failed to migrate: %w", err)
	}
	return nil
}

// GetGeocode looks up a cached address search
func (r *PostgresRepository) GetGeocode(ctx context.Context, query string) (domain.GeocodeResult, bool, error) {
	var g domain.GeocodeResult
	err := r.pool.QueryRow(ctx,
		`SELECT latitude, longitude, display_name FROM geocode_cache WHERE query = $1`,
		query,
	).Scan(&g.Latitude, &g.Longitude, &g.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GeocodeResult{}, false, nil
	}
	if err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("postgres: failed to query geocode cache: %w", err)
	}
	return g, true, nil
}

// SaveGeocode caches an address search result
func (r *PostgresRepository) SaveGeocode(ctx context.Context, query string, result domain.GeocodeResult) error {
	sql := `
		INSERT INTO geocode_cache (query, latitude, longitude, display_name, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (query) DO UPDATE
		SET latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			display_name = EXCLUDED.display_name,
			updated_at = now()
	`

	_, err := r.pool.Exec(ctx, sql, query, result.Latitude, result.Longitude, result.DisplayName)
	if err != nil {
		return fmt.Errorf("postgres: failed to save geocode: %w", err)
	}

	return nil
}

// SaveQueryLog persists a location change of a view
func (r *PostgresRepository) SaveQueryLog(ctx context.Context, entry domain.QueryLogEntry) error {
	sql := `
		INSERT INTO query_log (
			view_id, latitude, longitude, radius, incident_type, source, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// NULL instead of an empty string for "any type"
	var typ interface{}
	if entry.Query.IncidentType != "" {
		typ = string(entry.Query.IncidentType)
	}

	_, err := r.pool.Exec(ctx, sql,
		entry.ViewID, entry.Query.Latitude, entry.Query.Longitude, entry.Query.Radius,
		typ, entry.Source, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save query log: %w", err)
	}

	return nil
}

// RecentQueries returns the latest location changes, newest first
func (r *PostgresRepository) RecentQueries(ctx context.Context, limit int) ([]domain.QueryLogEntry, error) {
	sql := `
		SELECT view_id, latitude, longitude, radius, COALESCE(incident_type, ''), source, timestamp
		FROM query_log
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query query log: %w", err)
	}
	defer rows.Close()

	results := []domain.QueryLogEntry{}
	for rows.Next() {
		var (
			e   domain.QueryLogEntry
			typ string
		)
		err := rows.Scan(
			&e.ViewID, &e.Query.Latitude, &e.Query.Longitude, &e.Query.Radius,
			&typ, &e.Source, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan query log row: %w", err)
		}
		e.Query.IncidentType = domain.IncidentType(typ)
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read query log: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
