// Package storage provides PostgreSQL-backed document storage for the
// tracker core.
//
// This file implements the connection pool and schema initialization
// shared by every index.
//
// Implementation Details:
// - Uses database/sql with the lib/pq PostgreSQL driver
// - Every index is one table: id PRIMARY KEY, document JSONB, timestamps
// - Connection pool configured for steady request-path latency
//
// Dependencies:
// - PostgreSQL 12+ (JSONB support)
// - github.com/lib/pq driver for database/sql
package storage

import (
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Index names one of the ten logical document collections the tracker
// core persists to. Each is modeled as one Postgres table.
type Index string

const (
	IndexSession    Index = "session"
	IndexProfile    Index = "profile"
	IndexEvent      Index = "event"
	IndexConsoleLog Index = "console_log"
	IndexDebugInfo  Index = "debug_info"
	IndexRule       Index = "rule"
	IndexSegment    Index = "segment"
	IndexFlow       Index = "flow"
	IndexSource     Index = "source"
	IndexEventTag   Index = "event_tag"
)

var allIndices = []Index{
	IndexSession, IndexProfile, IndexEvent, IndexConsoleLog, IndexDebugInfo,
	IndexRule, IndexSegment, IndexFlow, IndexSource, IndexEventTag,
}

// Config holds the Postgres connection configuration.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Store represents the document-store connection.
type Store struct {
	db *sql.DB
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-\.]{0,253}[a-zA-Z0-9])?$`)
var identRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateConfig(config Config) error {
	if config.Host == "" {
		return fmt.Errorf("storage host cannot be empty")
	}
	if net.ParseIP(config.Host) == nil && !hostnameRegex.MatchString(config.Host) {
		return fmt.Errorf("invalid storage host: %s", config.Host)
	}

	if config.Port == "" {
		return fmt.Errorf("storage port cannot be empty")
	}
	if port, err := strconv.Atoi(config.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid storage port: %s (must be 1-65535)", config.Port)
	}

	if config.User == "" || !identRegex.MatchString(config.User) {
		return fmt.Errorf("invalid storage user: %s", config.User)
	}
	if config.DBName == "" || !identRegex.MatchString(config.DBName) {
		return fmt.Errorf("invalid storage database name: %s", config.DBName)
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if config.SSLMode != "" {
		valid := false
		for _, mode := range validSSLModes {
			if config.SSLMode == mode {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid SSL mode: %s (must be one of: %s)", config.SSLMode, strings.Join(validSSLModes, ", "))
		}
	}

	return nil
}

// New opens a connection pool to Postgres and verifies it is reachable.
func New(config Config) (*Store, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping storage: %w", err)
	}

	return &Store{db: db}, nil
}

// NewForTesting wraps an existing *sql.DB (e.g. from go-sqlmock) for
// unit tests. Do not use in production.
func NewForTesting(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates every index's table if it does not already exist.
func (s *Store) Migrate() error {
	for _, idx := range allIndices {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			document JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, tableName(idx))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate index %s: %w", idx, err)
		}
	}
	return nil
}

func tableName(idx Index) string {
	return string(idx) + "_documents"
}
