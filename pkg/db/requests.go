package db

import (
	"database/sql"
	"fmt"
	"time"
)

// RequestEntry is one row of the request log.
type RequestEntry struct {
	LogID     int64
	RequestID string
	Method    string
	Path      string
	Route     string
	Status    int
	// MetadataOK is nil for routes that never fetch metadata.
	MetadataOK *bool
	Duration   time.Duration
	CreatedAt  time.Time
}

// RouteCount is the number of logged requests for one route.
type RouteCount struct {
	Route          string
	Requests       int64
	MetadataMisses int64
}

// RecordRequest inserts a request log row.
func (db *DB) RecordRequest(e RequestEntry) error {
	var metadataOK sql.NullBool
	if e.MetadataOK != nil {
		metadataOK = sql.NullBool{Bool: *e.MetadataOK, Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO request_log (request_id, method, path, route, status, metadata_ok, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RequestID, e.Method, e.Path, e.Route, e.Status, metadataOK, e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// ListRequests returns the most recent requests, newest first.
func (db *DB) ListRequests(limit int) ([]RequestEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT log_id, request_id, method, path, route, status, metadata_ok, duration_ms, created_at
		FROM request_log
		ORDER BY log_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var entries []RequestEntry
	for rows.Next() {
		var e RequestEntry
		var metadataOK sql.NullBool
		var durationMS int64
		if err := rows.Scan(&e.LogID, &e.RequestID, &e.Method, &e.Path, &e.Route, &e.Status, &metadataOK, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		if metadataOK.Valid {
			ok := metadataOK.Bool
			e.MetadataOK = &ok
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return entries, nil
}

// RouteCounts summarizes the log per route.
func (db *DB) RouteCounts() ([]RouteCount, error) {
	rows, err := db.Query(`
		SELECT route, COUNT(*), SUM(CASE WHEN metadata_ok = 0 THEN 1 ELSE 0 END)
		FROM request_log
		GROUP BY route
		ORDER BY route
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query route counts: %w", err)
	}
	defer rows.Close()

	var counts []RouteCount
	for rows.Next() {
		var c RouteCount
		if err := rows.Scan(&c.Route, &c.Requests, &c.MetadataMisses); err != nil {
			return nil, fmt.Errorf("failed to scan route count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
