// Package store keeps the persisted device configuration and an archive of
// every session's records in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/twobottle/fedcore/fed"
)

const schema = `
CREATE TABLE IF NOT EXISTS device_config (
	key        TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	device_id    INTEGER NOT NULL,
	mode         INTEGER NOT NULL,
	session_type TEXT NOT NULL,
	log_path     TEXT,
	columns      TEXT NOT NULL,
	started_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	fields_json TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// startedLayout is fixed width so started_at sorts chronologically as text.
const startedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Persisted configuration keys.
const (
	KeyMode       = "mode"
	KeyDeviceID   = "device_id"
	KeyTimedStart = "timed_start"
	KeyTimedEnd   = "timed_end"
)

// Store is a SQLite-backed fed.ConfigStore and record archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas below are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the persisted configuration. Keys never saved keep their
// fed.DefaultPersisted values.
func (s *Store) Load() (fed.Persisted, error) {
	p := fed.DefaultPersisted()
	rows, err := s.db.Query(`SELECT key, value FROM device_config`)
	if err != nil {
		return p, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return p, fmt.Errorf("scan config: %w", err)
		}
		switch key {
		case KeyMode:
			p.Mode = value
		case KeyDeviceID:
			p.DeviceID = value
		case KeyTimedStart:
			p.TimedStart = value
		case KeyTimedEnd:
			p.TimedEnd = value
		}
	}
	if err := rows.Err(); err != nil {
		return p, fmt.Errorf("iterate config: %w", err)
	}
	return p, nil
}

// Save writes all four keys in one transaction.
func (s *Store) Save(p fed.Persisted) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	values := []struct {
		key   string
		value int
	}{
		{KeyMode, p.Mode},
		{KeyDeviceID, p.DeviceID},
		{KeyTimedStart, p.TimedStart},
		{KeyTimedEnd, p.TimedEnd},
	}
	for _, v := range values {
		_, err := tx.Exec(
			`INSERT INTO device_config (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			v.key, v.value, now,
		)
		if err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return tx.Commit()
}

// SetKey updates one persisted key. Unknown keys are rejected.
func (s *Store) SetKey(key string, value int) error {
	p, err := s.Load()
	if err != nil {
		return err
	}
	switch key {
	case KeyMode:
		p.Mode = value
	case KeyDeviceID:
		p.DeviceID = value
	case KeyTimedStart:
		p.TimedStart = value
	case KeyTimedEnd:
		p.TimedEnd = value
	default:
		return fmt.Errorf("unknown config key %q; valid: %s, %s, %s, %s", key, KeyMode, KeyDeviceID, KeyTimedStart, KeyTimedEnd)
	}
	return s.Save(p)
}

// Session describes one boot-to-restart run.
type Session struct {
	ID          string
	DeviceID    int
	Mode        int
	SessionType string
	LogPath     string
	Columns     []string
	StartedAt   time.Time
}

// BeginSession registers a session so its records can be archived.
func (s *Store) BeginSession(sess Session) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, device_id, mode, session_type, log_path, columns, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.DeviceID, sess.Mode, sess.SessionType, sess.LogPath,
		strings.Join(sess.Columns, ","), sess.StartedAt.UTC().Format(startedLayout),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Sessions lists registered sessions, oldest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT session_id, device_id, mode, session_type, log_path, columns, started_at
		FROM sessions ORDER BY started_at ASC, rowid ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var logPath sql.NullString
		var cols, started string
		if err := rows.Scan(&sess.ID, &sess.DeviceID, &sess.Mode, &sess.SessionType, &logPath, &cols, &started); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.LogPath = logPath.String
		sess.Columns = strings.Split(cols, ",")
		sess.StartedAt, err = time.Parse(startedLayout, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Archive appends records of one session. It implements fed.RecordSink.
type Archive struct {
	db        *sql.DB
	sessionID string
	seq       int
}

// Sink returns the archive for a registered session.
func (s *Store) Sink(sessionID string) *Archive {
	return &Archive{db: s.db, sessionID: sessionID}
}

// Append stores one record.
func (a *Archive) Append(fields []string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	a.seq++
	_, err = a.db.Exec(
		`INSERT INTO event_records (session_id, seq, fields_json) VALUES (?, ?, ?)`,
		a.sessionID, a.seq, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// ErrUnknownSession is returned by Records for a session never registered.
var ErrUnknownSession = errors.New("unknown session")

// Records returns the archived records of a session in append order.
func (s *Store) Records(sessionID string) ([][]string, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	rows, err := s.db.Query(
		`SELECT fields_json FROM event_records WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var fields []string
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, fields)
	}
	return out, rows.Err()
}
