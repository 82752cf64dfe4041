/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package statistics

import (
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"
)

// ErrBackendNotConfigured is returned when a durable sink is constructed
// without a DSN, mirroring internal/memory/backend.go's named-wiring-point
// convention for optional external backends.
var ErrBackendNotConfigured = errors.New("statistics: backend not configured")

// MySQLEventStore persists tracker events to a `skill_events` table over
// the go-sql-driver/mysql driver. Schema provisioning (DDL) is a deployment
// concern out of scope here (spec §1); this only dials and forwards writes.
type MySQLEventStore struct {
	db *sql.DB
}

// NewMySQLEventStore opens a connection pool against dsn.
func NewMySQLEventStore(dsn string) (*MySQLEventStore, error) {
	if dsn == "" {
		return nil, ErrBackendNotConfigured
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &MySQLEventStore{db: db}, nil
}

// Record inserts one event row.
func (m *MySQLEventStore) Record(e Event) error {
	_, err := m.db.Exec(
		"INSERT INTO skill_events (publisher, name, user_id, kind, occurred_at) VALUES (?, ?, ?, ?, ?)",
		e.Publisher, e.Name, e.UserID, e.Kind, e.At,
	)
	return err
}

// Close releases the underlying connection pool.
func (m *MySQLEventStore) Close() error {
	return m.db.Close()
}
