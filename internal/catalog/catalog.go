// Package catalog keeps a history of scanned images in SQLite.
package catalog

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"diskinspect/internal/common"
	"diskinspect/internal/image/partition"
)

// DB wraps the SQLite connection
type DB struct {
	conn *sql.DB
	path string
}

// Scan is one recorded inspection.
type Scan struct {
	ID          string
	Image       string
	Size        int64
	Fingerprint string
	Scheme      string
	DiskGUID    string
	Partitions  int
	Errors      int
	ScannedAt   time.Time
}

// Partition is a decoded entry stored with its scan.
type Partition struct {
	Slot     int
	Type     string
	TypeName string
	FirstLBA int64
	LastLBA  int64
	Name     string
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// one connection keeps ":memory:" databases alive across queries
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure catalog: %w", err)
	}
	d := &DB{conn: conn, path: path}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) Path() string { return d.path }

func (d *DB) migrate() error {
	if _, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}
	var version int
	if err := d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return err
	}

	migrations := []string{migrationV1}
	for i, m := range migrations {
		v := i + 1
		if v <= version {
			continue
		}
		tx, err := d.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const migrationV1 = `
CREATE TABLE IF NOT EXISTS scans (
    id TEXT PRIMARY KEY,
    image TEXT NOT NULL,
    size_bytes INTEGER,
    fingerprint TEXT NOT NULL,
    scheme TEXT NOT NULL,
    disk_guid TEXT,
    partitions INTEGER DEFAULT 0,
    errors INTEGER DEFAULT 0,
    scanned_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_time ON scans(scanned_at);
CREATE INDEX IF NOT EXISTS idx_scans_fingerprint ON scans(fingerprint);

CREATE TABLE IF NOT EXISTS scan_partitions (
    scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
    slot INTEGER NOT NULL,
    type TEXT NOT NULL,
    type_name TEXT,
    first_lba INTEGER,
    last_lba INTEGER,
    name TEXT,
    PRIMARY KEY (scan_id, slot)
);
`

// Fingerprint hashes the raw metadata blocks a scan decoded from.
func Fingerprint(l *partition.Layout) string {
	h := sha256.New()
	h.Write(l.MBRSector)
	h.Write(l.HeaderBlock)
	return hex.EncodeToString(h.Sum(nil))
}

// FromLayout flattens a layout into a scan record and its partitions.
func FromLayout(image string, l *partition.Layout) (*Scan, []Partition) {
	s := &Scan{
		Image:       image,
		Size:        l.Size,
		Fingerprint: Fingerprint(l),
		Scheme:      l.Scheme.String(),
		Errors:      len(l.EntryErrors),
	}
	if l.HeaderErr != nil {
		s.Errors++
	}
	var parts []Partition
	switch {
	case l.GPT != nil:
		s.DiskGUID = l.GPT.DiskGUID.String()
		for _, e := range l.Entries {
			parts = append(parts, Partition{
				Slot: e.Index, Type: e.TypeGUID.String(), TypeName: e.TypeName(),
				FirstLBA: e.FirstLBA, LastLBA: e.LastLBA, Name: e.Name,
			})
		}
	case l.MBR != nil:
		all := append(l.MBR.Entries[:], l.Logical...)
		for _, e := range all {
			if e.IsEmpty() {
				continue
			}
			parts = append(parts, Partition{
				Slot: e.Slot, Type: fmt.Sprintf("0x%02x", e.Type), TypeName: e.TypeName(),
				FirstLBA: int64(e.StartLBA), LastLBA: int64(e.EndLBA()),
			})
		}
	}
	s.Partitions = len(parts)
	return s, parts
}

// Record stores s and its partitions, assigning ID and ScannedAt when unset.
func (d *DB) Record(s *Scan, parts []Partition) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.ScannedAt.IsZero() {
		s.ScannedAt = time.Now()
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO scans (id, image, size_bytes, fingerprint, scheme, disk_guid, partitions, errors, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Image, s.Size, s.Fingerprint, s.Scheme, s.DiskGUID, s.Partitions, s.Errors, s.ScannedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	for _, p := range parts {
		if _, err := tx.Exec(`
			INSERT INTO scan_partitions (scan_id, slot, type, type_name, first_lba, last_lba, name)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, s.ID, p.Slot, p.Type, p.TypeName, p.FirstLBA, p.LastLBA, p.Name); err != nil {
			return fmt.Errorf("failed to record partition %d: %w", p.Slot, err)
		}
	}
	return tx.Commit()
}

// List returns the most recent scans first.
func (d *DB) List(limit int) ([]*Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(`
		SELECT id, image, size_bytes, fingerprint, scheme, disk_guid, partitions, errors, scanned_at
		FROM scans
		ORDER BY scanned_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var out []*Scan
	for rows.Next() {
		var s Scan
		var guid sql.NullString
		var ts int64
		if err := rows.Scan(&s.ID, &s.Image, &s.Size, &s.Fingerprint, &s.Scheme, &guid, &s.Partitions, &s.Errors, &ts); err != nil {
			return nil, err
		}
		s.DiskGUID = guid.String
		s.ScannedAt = time.Unix(0, ts)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Partitions returns the stored entries of one scan in slot order.
func (d *DB) Partitions(scanID string) ([]Partition, error) {
	rows, err := d.conn.Query(`
		SELECT slot, type, type_name, first_lba, last_lba, name
		FROM scan_partitions
		WHERE scan_id = ?
		ORDER BY slot
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query partitions: %w", err)
	}
	defer rows.Close()

	var out []Partition
	for rows.Next() {
		var p Partition
		var typeName, name sql.NullString
		if err := rows.Scan(&p.Slot, &p.Type, &typeName, &p.FirstLBA, &p.LastLBA, &name); err != nil {
			return nil, err
		}
		p.TypeName, p.Name = typeName.String, name.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		var n int
		if err := d.conn.QueryRow("SELECT COUNT(*) FROM scans WHERE id = ?", scanID).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("scan %s: %w", scanID, common.ErrNotFound)
		}
	}
	return out, nil
}

// Seen counts recorded scans with the given fingerprint.
func (d *DB) Seen(fingerprint string) (int, error) {
	var n int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM scans WHERE fingerprint = ?", fingerprint).Scan(&n)
	return n, err
}
