package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamcharts/internal/stream"

	"golang.org/x/oauth2"
)

// setupTestDB creates an in-memory database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func insertTestActivity(t *testing.T, db *DB) *Activity {
	t.Helper()

	a := &Activity{
		Name:      "Morning Run",
		Type:      "Running",
		StartTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Recording: true,
		Gradient:  []float64{0, 0.01, -0.02},
	}
	if err := db.UpsertActivity(context.Background(), a); err != nil {
		t.Fatalf("UpsertActivity() error = %v", err)
	}
	return a
}

func TestUpsertAndGetActivity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := insertTestActivity(t, db)

	if a.ID == "" {
		t.Fatal("UpsertActivity() should assign an ID")
	}

	got, err := db.GetActivity(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if got.Name != "Morning Run" || got.Type != "Running" || !got.Recording {
		t.Errorf("GetActivity() = %+v", got)
	}
	if !got.StartTime.Equal(a.StartTime) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, a.StartTime)
	}
	if len(got.Gradient) != 3 || got.Gradient[2] != -0.02 {
		t.Errorf("Gradient = %v", got.Gradient)
	}

	a.Name = "Renamed"
	if err := db.UpsertActivity(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := db.SetRecording(ctx, a.ID, false); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetActivity(ctx, a.ID)
	if got.Name != "Renamed" || got.Recording {
		t.Errorf("after update = %+v", got)
	}
}

func TestGetActivityNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetActivity(context.Background(), "3f2c8a52-8a77-4a4e-9d7e-2b1c1f0e6a11")
	if !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("GetActivity() error = %v, want ErrActivityNotFound", err)
	}
}

func TestUpsertActivityRejectsInvalidID(t *testing.T) {
	db := setupTestDB(t)

	err := db.UpsertActivity(context.Background(), &Activity{ID: "not-a-uuid", Name: "x", Type: "Running"})
	if err == nil {
		t.Error("expected error for non-uuid activity id")
	}
}

func TestSaveAndFetchStreams(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := insertTestActivity(t, db)

	n, err := db.SaveStreams(ctx, a.ID, stream.Map{
		stream.HeartRate: {
			{"3000": 130.0},
			{"1000": 120.0},
			{"bad": 1.0},
		},
		"Note": {{"1000": "start"}},
		stream.Events: {
			{"event": "lap", "timestamp": 1700000010.0, "start_time": 1700000000.0},
			{"event": "lap"},
		},
		stream.Accelerometer: {
			{"time": 1000.0, "x": 0.1, "y": 0.2, "z": 0.9},
		},
	})
	if err != nil {
		t.Fatalf("SaveStreams() error = %v", err)
	}
	if n != 5 {
		t.Errorf("SaveStreams() stored %d rows, want 5", n)
	}

	m, err := db.FetchStreams(ctx, a.ID)
	if err != nil {
		t.Fatalf("FetchStreams() error = %v", err)
	}

	hr := m[stream.HeartRate]
	if len(hr) != 2 || hr[0]["1000"] != 120.0 || hr[1]["3000"] != 130.0 {
		t.Errorf("heart rate = %v", hr)
	}
	if m["Note"][0]["1000"] != "start" {
		t.Errorf("text sample = %v", m["Note"])
	}
	if len(m[stream.Events]) != 1 || m[stream.Events][0]["event"] != "lap" {
		t.Errorf("events = %v", m[stream.Events])
	}
	if m[stream.Accelerometer][0]["z"] != 0.9 {
		t.Errorf("accelerometer = %v", m[stream.Accelerometer])
	}

	sensors, err := db.Sensors(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sensors) != 4 {
		t.Errorf("Sensors() = %v", sensors)
	}
}

func TestFetchSince(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := insertTestActivity(t, db)

	if _, err := db.SaveStreams(ctx, a.ID, stream.Map{
		stream.Power: {{"1000": 200.0}, {"2000": 210.0}, {"3000": 220.0}},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := db.FetchSince(ctx, a.ID, stream.Power, 1000)
	if err != nil {
		t.Fatalf("FetchSince() error = %v", err)
	}
	if len(got) != 3 || got[0]["1000"] != 200.0 || got[1]["2000"] != 210.0 {
		t.Errorf("FetchSince() = %v", got)
	}

	got, err = db.FetchSince(ctx, a.ID, stream.Power, 3000)
	if err != nil || len(got) != 1 || got[0]["3000"] != 220.0 {
		t.Errorf("FetchSince(latest) = %v, %v", got, err)
	}

	// A sample stored later with the latest timestamp is still returned
	if _, err := db.SaveStreams(ctx, a.ID, stream.Map{
		stream.Power: {{"3000": 225.0}},
	}); err != nil {
		t.Fatal(err)
	}
	got, err = db.FetchSince(ctx, a.ID, stream.Power, 3000)
	if err != nil || len(got) != 2 || got[1]["3000"] != 225.0 {
		t.Errorf("FetchSince(latest) after late sample = %v, %v", got, err)
	}

	got, err = db.FetchSince(ctx, a.ID, stream.Power, 3001)
	if err != nil || len(got) != 0 {
		t.Errorf("FetchSince(after latest) = %v, %v", got, err)
	}
}

func TestDeleteSensorData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := insertTestActivity(t, db)

	if _, err := db.SaveStreams(ctx, a.ID, stream.Map{
		stream.HeartRate: {{"1000": 120.0}},
		stream.Cadence:   {{"1000": 80.0}},
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteSensorData(ctx, a.ID, stream.HeartRate); err != nil {
		t.Fatalf("DeleteSensorData() error = %v", err)
	}
	// Deleting again is not an error
	if err := db.DeleteSensorData(ctx, a.ID, stream.HeartRate); err != nil {
		t.Fatalf("second DeleteSensorData() error = %v", err)
	}

	m, _ := db.FetchStreams(ctx, a.ID)
	if _, ok := m[stream.HeartRate]; ok {
		t.Error("heart rate data still present")
	}
	if len(m[stream.Cadence]) != 1 {
		t.Error("cadence data should be untouched")
	}

	if err := db.DeleteSensorData(ctx, "3f2c8a52-8a77-4a4e-9d7e-2b1c1f0e6a11", stream.Cadence); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("DeleteSensorData(unknown) error = %v", err)
	}
}

func TestDeleteActivityCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := insertTestActivity(t, db)

	if _, err := db.SaveStreams(ctx, a.ID, stream.Map{stream.Power: {{"1000": 200.0}}}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteActivity(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("samples left after delete: %d", count)
	}
}

func TestListActivities(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	older := &Activity{Name: "Older", Type: "Cycling", StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &Activity{Name: "Newer", Type: "Running", StartTime: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	for _, a := range []*Activity{older, newer} {
		if err := db.UpsertActivity(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListActivities(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Newer" {
		t.Errorf("ListActivities() = %+v", got)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.LoadToken(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("LoadToken() error = %v, want ErrNoToken", err)
	}

	expiry := time.Unix(1900000000, 0)
	if err := db.SaveToken(ctx, &oauth2.Token{AccessToken: "a", TokenType: "Bearer", Expiry: expiry}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveToken(ctx, &oauth2.Token{AccessToken: "b", TokenType: "Bearer", Expiry: expiry}); err != nil {
		t.Fatal(err)
	}

	tok, err := db.LoadToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "b" || !tok.Expiry.Equal(expiry) {
		t.Errorf("token = %+v", tok)
	}
}
