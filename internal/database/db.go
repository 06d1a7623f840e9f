package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// InsertReading inserts a sensor reading
func (db *DB) InsertReading(reading *Reading) error {
	query := `
		INSERT INTO readings (device_id, temperature, humidity, smoke, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return db.QueryRow(
		query,
		reading.DeviceID,
		reading.Temperature,
		reading.Humidity,
		reading.Smoke,
		reading.Timestamp,
	).Scan(&reading.ID)
}

// InsertAlert inserts an alert record
func (db *DB) InsertAlert(alert *Alert) error {
	query := `
		INSERT INTO alerts (message, severity, timestamp)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	return db.QueryRow(query, alert.Message, alert.Severity, alert.Timestamp).Scan(&alert.ID)
}

// InsertControlLog inserts a device control record
func (db *DB) InsertControlLog(entry *ControlLog) error {
	query := `
		INSERT INTO control_log (device, action, source, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	return db.QueryRow(query, entry.Device, entry.Action, entry.Source, entry.Timestamp).Scan(&entry.ID)
}

// GetLatestReading returns the most recent reading, or nil if none exists
func (db *DB) GetLatestReading() (*Reading, error) {
	query := `
		SELECT id, device_id, temperature, humidity, smoke, timestamp
		FROM readings
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var r Reading
	err := db.QueryRow(query).Scan(
		&r.ID,
		&r.DeviceID,
		&r.Temperature,
		&r.Humidity,
		&r.Smoke,
		&r.Timestamp,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// GetReadingHistory returns the most recent readings in chronological order
func (db *DB) GetReadingHistory(limit int) ([]*Reading, error) {
	query := `
		SELECT id, device_id, temperature, humidity, smoke, timestamp
		FROM (
			SELECT id, device_id, temperature, humidity, smoke, timestamp
			FROM readings
			ORDER BY timestamp DESC
			LIMIT $1
		) recent
		ORDER BY timestamp ASC
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(
			&r.ID,
			&r.DeviceID,
			&r.Temperature,
			&r.Humidity,
			&r.Smoke,
			&r.Timestamp,
		); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}

	return readings, rows.Err()
}

// GetStats returns aggregate statistics over the last N hours, or nil if no
// readings fall inside the window
func (db *DB) GetStats(hours int) (*Stats, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(temperature), 0), COALESCE(MIN(temperature), 0), COALESCE(MAX(temperature), 0),
			COALESCE(AVG(humidity), 0), COALESCE(MIN(humidity), 0), COALESCE(MAX(humidity), 0),
			COALESCE(AVG(smoke), 0), COALESCE(MIN(smoke), 0), COALESCE(MAX(smoke), 0)
		FROM readings
		WHERE timestamp >= $1
	`

	var s Stats
	err := db.QueryRow(query, cutoff).Scan(
		&s.Count,
		&s.Temperature.Avg, &s.Temperature.Min, &s.Temperature.Max,
		&s.Humidity.Avg, &s.Humidity.Min, &s.Humidity.Max,
		&s.Smoke.Avg, &s.Smoke.Min, &s.Smoke.Max,
	)
	if err != nil {
		return nil, err
	}

	if s.Count == 0 {
		return nil, nil
	}

	return &s, nil
}

// GetRecentAlerts returns the most recent alert records
func (db *DB) GetRecentAlerts(limit int) ([]*Alert, error) {
	query := `
		SELECT id, message, severity, timestamp
		FROM alerts
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.Message, &a.Severity, &a.Timestamp); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// GetControlLog returns the most recent device control records
func (db *DB) GetControlLog(limit int) ([]*ControlLog, error) {
	query := `
		SELECT id, device, action, source, timestamp
		FROM control_log
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ControlLog
	for rows.Next() {
		var e ControlLog
		if err := rows.Scan(&e.ID, &e.Device, &e.Action, &e.Source, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
