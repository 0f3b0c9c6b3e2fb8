package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"streamcharts/internal/activity"
)

// Activity is a recorded activity
type Activity struct {
	ID        string
	Name      string
	Type      string
	StartTime time.Time
	Recording bool      // still being recorded, new samples may arrive
	Gradient  []float64 // per-distance gradient curve, may be empty
}

// UpsertActivity inserts or updates an activity. An activity without an ID
// is given a new random one.
func (db *DB) UpsertActivity(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if _, err := uuid.Parse(a.ID); err != nil {
		return fmt.Errorf("invalid activity id %q: %w", a.ID, err)
	}

	var gradient sql.NullString
	if len(a.Gradient) > 0 {
		data, err := json.Marshal(a.Gradient)
		if err != nil {
			return fmt.Errorf("encoding gradient: %w", err)
		}
		gradient = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (id, name, type, start_time, recording, gradient, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			start_time = excluded.start_time,
			recording = excluded.recording,
			gradient = excluded.gradient,
			updated_at = CURRENT_TIMESTAMP
	`, a.ID, a.Name, a.Type, a.StartTime.UnixMilli(), boolToInt(a.Recording), gradient)
	if err != nil {
		return fmt.Errorf("upserting activity: %w", err)
	}
	return nil
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(ctx context.Context, id string) (*Activity, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, type, start_time, recording, gradient
		FROM activities WHERE id = ?
	`, id)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting activity: %w", err)
	}
	return a, nil
}

// ListActivities returns activities, most recent first
func (db *DB) ListActivities(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, type, start_time, recording, gradient
		FROM activities
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

// SetRecording marks an activity as live or finished
func (db *DB) SetRecording(ctx context.Context, id string, recording bool) error {
	res, err := db.ExecContext(ctx, `
		UPDATE activities SET recording = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, boolToInt(recording), id)
	if err != nil {
		return fmt.Errorf("updating activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// DeleteActivity removes an activity and all of its sensor data
func (db *DB) DeleteActivity(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM activities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrActivityNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(s scanner) (*Activity, error) {
	var (
		a         Activity
		startMs   int64
		recording int
		gradient  sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Name, &a.Type, &startMs, &recording, &gradient); err != nil {
		return nil, err
	}
	a.StartTime = time.UnixMilli(startMs).UTC()
	a.Recording = recording != 0
	if gradient.Valid && gradient.String != "" {
		if err := json.Unmarshal([]byte(gradient.String), &a.Gradient); err != nil {
			return nil, fmt.Errorf("decoding gradient: %w", err)
		}
	}
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Meta returns the activity description used to open its charts
func (db *DB) Meta(ctx context.Context, id string) (activity.Meta, error) {
	a, err := db.GetActivity(ctx, id)
	if err != nil {
		return activity.Meta{}, err
	}
	return activity.Meta{
		ID:        a.ID,
		Name:      a.Name,
		Type:      a.Type,
		Start:     a.StartTime,
		Recording: a.Recording,
		Gradient:  a.Gradient,
	}, nil
}
