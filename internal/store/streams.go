package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"streamcharts/internal/stream"
)

// structured reports whether a sensor's records are kept whole as JSON
func structured(sensor string) bool {
	return sensor == stream.Events || sensor == stream.Accelerometer
}

// SaveStreams appends the sensor data of a stream map to an activity.
// Records that carry no usable timestamp are skipped. It returns the number
// of stored rows.
func (db *DB) SaveStreams(ctx context.Context, activityID string, m stream.Map) (int, error) {
	if err := db.requireActivity(ctx, activityID); err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	sampleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (activity_id, sensor, ts_ms, value, text_value) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer sampleStmt.Close()

	recordStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (activity_id, sensor, ts_ms, payload) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer recordStmt.Close()

	stored := 0
	for sensor, records := range m {
		if structured(sensor) {
			for _, rec := range records {
				ts, ok := stream.RecordTime(sensor, rec)
				if !ok {
					continue
				}
				payload, err := json.Marshal(rec)
				if err != nil {
					return 0, fmt.Errorf("encoding %s record: %w", sensor, err)
				}
				if _, err := recordStmt.ExecContext(ctx, activityID, sensor, ts, string(payload)); err != nil {
					return 0, fmt.Errorf("inserting %s record: %w", sensor, err)
				}
				stored++
			}
			continue
		}

		s, _ := stream.Samples(sensor, records)
		for _, sample := range s.Samples {
			var value sql.NullFloat64
			var text sql.NullString
			if v, ok := sample.Float(); ok {
				value = sql.NullFloat64{Float64: v, Valid: true}
			} else if sample.Value != nil {
				text = sql.NullString{String: fmt.Sprint(sample.Value), Valid: true}
			}
			if _, err := sampleStmt.ExecContext(ctx, activityID, sensor, sample.Time, value, text); err != nil {
				return 0, fmt.Errorf("inserting %s sample: %w", sensor, err)
			}
			stored++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return stored, nil
}

// FetchStreams returns every stream of an activity as a stream map
func (db *DB) FetchStreams(ctx context.Context, activityID string) (stream.Map, error) {
	if err := db.requireActivity(ctx, activityID); err != nil {
		return nil, err
	}

	m := make(stream.Map)
	if err := db.collectSamples(ctx, m, `
		SELECT sensor, ts_ms, value, text_value FROM samples
		WHERE activity_id = ?
		ORDER BY sensor, ts_ms, rowid
	`, activityID); err != nil {
		return nil, err
	}
	if err := db.collectRecords(ctx, m, `
		SELECT sensor, payload FROM records
		WHERE activity_id = ?
		ORDER BY sensor, ts_ms, rowid
	`, activityID); err != nil {
		return nil, err
	}
	return m, nil
}

// FetchSince returns the records of one stream recorded at or after sinceMs
func (db *DB) FetchSince(ctx context.Context, activityID, sensor string, sinceMs int64) ([]stream.Record, error) {
	if err := db.requireActivity(ctx, activityID); err != nil {
		return nil, err
	}

	m := make(stream.Map)
	var err error
	if structured(sensor) {
		err = db.collectRecords(ctx, m, `
			SELECT sensor, payload FROM records
			WHERE activity_id = ? AND sensor = ? AND ts_ms >= ?
			ORDER BY ts_ms, rowid
		`, activityID, sensor, sinceMs)
	} else {
		err = db.collectSamples(ctx, m, `
			SELECT sensor, ts_ms, value, text_value FROM samples
			WHERE activity_id = ? AND sensor = ? AND ts_ms >= ?
			ORDER BY ts_ms, rowid
		`, activityID, sensor, sinceMs)
	}
	if err != nil {
		return nil, err
	}
	return m[sensor], nil
}

// DeleteSensorData removes all data of one sensor from an activity
func (db *DB) DeleteSensorData(ctx context.Context, activityID, sensor string) error {
	if err := db.requireActivity(ctx, activityID); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"samples", "records"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE activity_id = ? AND sensor = ?", activityID, sensor); err != nil {
			return fmt.Errorf("deleting %s %s: %w", sensor, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Sensors returns the names of sensors with data for an activity
func (db *DB) Sensors(ctx context.Context, activityID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sensor FROM samples WHERE activity_id = ?
		UNION
		SELECT sensor FROM records WHERE activity_id = ?
		ORDER BY sensor
	`, activityID, activityID)
	if err != nil {
		return nil, fmt.Errorf("listing sensors: %w", err)
	}
	defer rows.Close()

	var sensors []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sensors = append(sensors, s)
	}
	return sensors, rows.Err()
}

func (db *DB) requireActivity(ctx context.Context, activityID string) error {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM activities WHERE id = ?", activityID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrActivityNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up activity: %w", err)
	}
	return nil
}

func (db *DB) collectSamples(ctx context.Context, m stream.Map, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sensor string
			ts     int64
			value  sql.NullFloat64
			text   sql.NullString
		)
		if err := rows.Scan(&sensor, &ts, &value, &text); err != nil {
			return err
		}

		var v any
		switch {
		case value.Valid:
			v = value.Float64
		case text.Valid:
			v = text.String
		}
		m[sensor] = append(m[sensor], stream.Record{strconv.FormatInt(ts, 10): v})
	}
	return rows.Err()
}

func (db *DB) collectRecords(ctx context.Context, m stream.Map, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sensor, payload string
		if err := rows.Scan(&sensor, &payload); err != nil {
			return err
		}
		var rec stream.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return fmt.Errorf("decoding %s record: %w", sensor, err)
		}
		m[sensor] = append(m[sensor], rec)
	}
	return rows.Err()
}
