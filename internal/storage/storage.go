// Package storage provides SQLite-backed persistence for scheduler settings
// and the triggered alert history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/cryptobarzin/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "cryptobarzin", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scheduler_settings (
			id                      INTEGER PRIMARY KEY CHECK (id = 1),
			active_hours_start      INTEGER NOT NULL,
			active_hours_end        INTEGER NOT NULL,
			message_sending_enabled INTEGER NOT NULL,
			interval_ns             INTEGER NOT NULL,
			auto_start              INTEGER NOT NULL,
			updated_at              INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alert_events (
			id            TEXT PRIMARY KEY,
			symbol        TEXT NOT NULL,
			direction     TEXT NOT NULL,
			target_price  REAL NOT NULL,
			current_price REAL NOT NULL,
			source        TEXT,
			triggered_at  INTEGER NOT NULL,
			delivered     INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_events_triggered_at ON alert_events(triggered_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_events_symbol ON alert_events(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSettings replaces the stored scheduler settings.
func (s *Storage) SaveSettings(ctx context.Context, settings models.SchedulerSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	updatedAt := settings.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scheduler_settings
			(id, active_hours_start, active_hours_end, message_sending_enabled,
			 interval_ns, auto_start, updated_at)
		VALUES (1,?,?,?,?,?,?)`,
		settings.ActiveHoursStart, settings.ActiveHoursEnd,
		boolToInt(settings.MessageSendingEnabled), int64(settings.Interval),
		boolToInt(settings.AutoStart), updatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// LoadSettings returns the stored settings, or nil when none were saved.
func (s *Storage) LoadSettings(ctx context.Context) (*models.SchedulerSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT active_hours_start, active_hours_end, message_sending_enabled,
		       interval_ns, auto_start, updated_at
		FROM scheduler_settings WHERE id = 1`)

	var st models.SchedulerSettings
	var enabled, autoStart int
	var intervalNano, updatedAtNano int64

	err := row.Scan(&st.ActiveHoursStart, &st.ActiveHoursEnd, &enabled,
		&intervalNano, &autoStart, &updatedAtNano)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	st.MessageSendingEnabled = enabled != 0
	st.AutoStart = autoStart != 0
	st.Interval = time.Duration(intervalNano)
	st.UpdatedAt = time.Unix(0, updatedAtNano)
	return &st, nil
}

// RecordEvent appends a triggered alert to the history.
func (s *Storage) RecordEvent(ctx context.Context, e models.TriggeredEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_events
			(id, symbol, direction, target_price, current_price, source, triggered_at, delivered)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.Symbol, string(e.Direction), e.TargetPrice, e.CurrentPrice, e.Source,
		e.TriggeredAt.UnixNano(), boolToInt(e.Delivered),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first. An empty symbol
// matches every symbol.
func (s *Storage) RecentEvents(ctx context.Context, symbol string, limit int) ([]models.TriggeredEvent, error) {
	query := `SELECT ` + eventCols + ` FROM alert_events`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY triggered_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.TriggeredEvent{}
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// PruneEvents deletes events triggered before cutoff and returns how many
// were removed.
func (s *Storage) PruneEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_events WHERE triggered_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

const eventCols = `id, symbol, direction, target_price, current_price, source, triggered_at, delivered`

func scanEvent(scan func(...any) error) (*models.TriggeredEvent, error) {
	var e models.TriggeredEvent
	var direction string
	var source sql.NullString
	var triggeredAtNano int64
	var delivered int
	err := scan(
		&e.ID, &e.Symbol, &direction, &e.TargetPrice, &e.CurrentPrice,
		&source, &triggeredAtNano, &delivered,
	)
	if err != nil {
		return nil, err
	}
	e.Direction = models.Direction(direction)
	e.Source = source.String
	e.TriggeredAt = time.Unix(0, triggeredAtNano)
	e.Delivered = delivered != 0
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
