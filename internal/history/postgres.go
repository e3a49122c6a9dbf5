// Package history implements optional Postgres-backed storage of
// completed cycle records, for trend analysis beyond what the flat CSV
// log supports.
//
// Example usage:
//
//	repo, err := history.NewPostgresRepo(connStr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	err = repo.InsertCycle(ctx, record)
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/hydrohome/sumpctl/internal/models"
)

// CycleRepository defines the interface for cycle history storage.
//
// The controller treats the repository as strictly optional: a nil
// repository means history is disabled, and insert failures degrade to a
// logged warning rather than a failed cycle.
type CycleRepository interface {
	// InsertCycle stores one completed cycle record.
	InsertCycle(ctx context.Context, rec models.CycleRecord) error

	// RecentCycles returns up to limit records with Time >= since,
	// newest first.
	RecentCycles(ctx context.Context, since time.Time, limit int) ([]models.CycleRecord, error)

	// Close releases any resources held by the repository.
	Close() error
}

// PostgresRepo implements CycleRepository on a plain Postgres table.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo opens the connection, verifies it with a ping, and
// ensures the cycle table exists.
func NewPostgresRepo(connStr string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS pump_cycles (
            id              UUID PRIMARY KEY,
            time            TIMESTAMPTZ NOT NULL,
            working_time_s  DOUBLE PRECISION NOT NULL,
            total_time_s    DOUBLE PRECISION NOT NULL,
            avg_power_w     DOUBLE PRECISION NOT NULL,
            max_power_w     DOUBLE PRECISION NOT NULL,
            min_power_w     DOUBLE PRECISION NOT NULL,
            next_off_time_s INTEGER NOT NULL,
            weather         TEXT NOT NULL,
            cycle_count     INTEGER NOT NULL
        )
    `); err != nil {
		return nil, fmt.Errorf("failed to ensure pump_cycles table: %w", err)
	}

	return &PostgresRepo{db: db}, nil
}

func (r *PostgresRepo) InsertCycle(ctx context.Context, rec models.CycleRecord) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO pump_cycles
            (id, time, working_time_s, total_time_s, avg_power_w, max_power_w,
             min_power_w, next_off_time_s, weather, cycle_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `,
		rec.ID, rec.Time, rec.WorkingTimeS, rec.TotalTimeS, rec.AvgPowerW,
		rec.MaxPowerW, rec.MinPowerW, rec.NextOffTimeS, rec.Weather, rec.CycleCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle record: %w", err)
	}
	return nil
}

func (r *PostgresRepo) RecentCycles(ctx context.Context, since time.Time, limit int) ([]models.CycleRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, time, working_time_s, total_time_s, avg_power_w, max_power_w,
               min_power_w, next_off_time_s, weather, cycle_count
        FROM pump_cycles
        WHERE time >= $1
        ORDER BY time DESC
        LIMIT $2
    `, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.CycleRecord
	for rows.Next() {
		var rec models.CycleRecord
		if err := rows.Scan(
			&rec.ID, &rec.Time, &rec.WorkingTimeS, &rec.TotalTimeS, &rec.AvgPowerW,
			&rec.MaxPowerW, &rec.MinPowerW, &rec.NextOffTimeS, &rec.Weather, &rec.CycleCount,
		); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Close releases all database resources.
func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

// Compile-time interface implementation check
var _ CycleRepository = (*PostgresRepo)(nil)
