package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PositionRecord is one notified position.
type PositionRecord struct {
	ID             int64
	RunID          uuid.UUID
	Callsign       string
	Latitude       float64
	Longitude      float64
	Altitude       sql.NullFloat64
	Speed          float64
	Course         float64
	FixTime        time.Time
	LastTime       time.Time
	DistanceMeters float64
	Title          string
	Message        string
	NotifiedAt     time.Time
}

// PositionRepository stores and reads position history.
type PositionRepository struct {
	db *DB
}

// NewPositionRepository creates a new position repository.
func NewPositionRepository(db *DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Insert stores a record and returns its id.
func (r *PositionRepository) Insert(ctx context.Context, rec PositionRecord) (int64, error) {
	notifiedAt := rec.NotifiedAt
	if notifiedAt.IsZero() {
		notifiedAt = time.Now()
	}

	var id int64
	err := r.db.QueryRowContext(ctx,
		r.db.rebind(`INSERT INTO positions (
			run_id, callsign, latitude, longitude, altitude_m,
			speed_kmh, course_deg, fix_time, last_time, distance_m,
			title, message, notified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		rec.RunID.String(), rec.Callsign, rec.Latitude, rec.Longitude, rec.Altitude,
		rec.Speed, rec.Course, rec.FixTime.UTC(), rec.LastTime.UTC(), rec.DistanceMeters,
		rec.Title, rec.Message, notifiedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position: %w", err)
	}

	return id, nil
}

// Recent returns up to limit records for callsign, newest first.
func (r *PositionRepository) Recent(ctx context.Context, callsign string, limit int) ([]PositionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		r.db.rebind(`SELECT id, run_id, callsign, latitude, longitude, altitude_m,
		        speed_kmh, course_deg, fix_time, last_time, distance_m,
		        title, message, notified_at
		 FROM positions
		 WHERE callsign = ?
		 ORDER BY notified_at DESC, id DESC
		 LIMIT ?`),
		callsign, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var records []PositionRecord
	for rows.Next() {
		var rec PositionRecord
		var runID string
		if err := rows.Scan(
			&rec.ID, &runID, &rec.Callsign, &rec.Latitude, &rec.Longitude, &rec.Altitude,
			&rec.Speed, &rec.Course, &rec.FixTime, &rec.LastTime, &rec.DistanceMeters,
			&rec.Title, &rec.Message, &rec.NotifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		if rec.RunID, err = uuid.Parse(runID); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
