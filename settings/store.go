// Package settings is the storage collaborator the engine core talks to:
// per-site mode and capability switches in SQLite, read once at page start,
// written through a debounced buffer so user actions never stall on disk.
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mugenyume/mugenblock/dbopen"
)

// Store is the settings database handle.
type Store struct {
	DB     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (or creates) the settings database at path, applies the
// production pragmas and schema, and migrates older shapes forward.
func Open(path string, logger *slog.Logger, opts ...dbopen.Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	allOpts := append([]dbopen.Option{dbopen.WithMkdirAll()}, opts...)
	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// openWith wraps an already-open database, applying schema and migration.
// Tests use it with dbopen.OpenMemory.
func openWith(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{DB: db, path: ":memory:", logger: logger}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// migrate brings the schema to SchemaVersion. Upgrades are strictly
// additive (missing fields are filled with defaults) and are preceded by
// a full file backup.
func (s *Store) migrate() error {
	if _, err := s.DB.Exec(Schema); err != nil {
		return fmt.Errorf("settings: apply schema: %w", err)
	}

	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version == 0 {
		// Fresh database: already current by construction.
		return s.setSchemaVersion(SchemaVersion)
	}
	if version >= SchemaVersion {
		return nil
	}

	if err := s.backup(version); err != nil {
		return err
	}

	if version < 2 {
		// v1 predates relax windows and notes.
		for _, stmt := range []string{
			`ALTER TABLE site_settings ADD COLUMN relax_until INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE site_settings ADD COLUMN note TEXT NOT NULL DEFAULT ''`,
		} {
			if _, err := s.DB.Exec(stmt); err != nil && !isDuplicateColumn(err) {
				return fmt.Errorf("settings: migrate to v2: %w", err)
			}
		}
	}

	s.logger.Info("settings: schema migrated",
		"from", version, "to", SchemaVersion)
	return s.setSchemaVersion(SchemaVersion)
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column")
}

func (s *Store) schemaVersion() (int, error) {
	var raw string
	err := s.DB.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("settings: read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("settings: bad schema version %q: %w", raw, err)
	}
	return v, nil
}

func (s *Store) setSchemaVersion(v int) error {
	_, err := s.DB.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(v))
	if err != nil {
		return fmt.Errorf("settings: set schema version: %w", err)
	}
	return nil
}

// backup copies the database file aside before a migration touches it.
func (s *Store) backup(fromVersion int) error {
	if s.path == ":memory:" {
		return nil
	}
	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("settings: backup open: %w", err)
	}
	defer src.Close()

	backupPath := fmt.Sprintf("%s.v%d.%s.bak", s.path, fromVersion,
		time.Now().UTC().Format("20060102T150405Z"))
	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("settings: backup create: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("settings: backup copy: %w", err)
	}
	s.logger.Info("settings: pre-migration backup written", "path", backupPath)
	return nil
}

// getSite reads one site's stored row, or sql.ErrNoRows.
func (s *Store) getSite(ctx context.Context, site string) (SiteSettings, error) {
	var out SiteSettings
	var classOff, interOff int
	var relaxUnix int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT site, mode, classification_off, interception_off,
		       breakage_count, relax_until, note
		FROM site_settings WHERE site = ?`, site).
		Scan(&out.Site, &out.Mode, &classOff, &interOff,
			&out.BreakageCount, &relaxUnix, &out.Note)
	if err != nil {
		return out, err
	}
	out.ClassificationOff = classOff != 0
	out.InterceptionOff = interOff != 0
	if relaxUnix > 0 {
		out.RelaxUntil = time.Unix(relaxUnix, 0).UTC()
	}
	return out, nil
}

// upsertSite writes one site's row.
func (s *Store) upsertSite(ctx context.Context, set SiteSettings) error {
	var relaxUnix int64
	if !set.RelaxUntil.IsZero() {
		relaxUnix = set.RelaxUntil.Unix()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO site_settings
			(site, mode, classification_off, interception_off,
			 breakage_count, relax_until, note, updated_at)
		VALUES (?,?,?,?,?,?,?, strftime('%s','now'))
		ON CONFLICT(site) DO UPDATE SET
			mode = excluded.mode,
			classification_off = excluded.classification_off,
			interception_off = excluded.interception_off,
			breakage_count = excluded.breakage_count,
			relax_until = excluded.relax_until,
			note = excluded.note,
			updated_at = excluded.updated_at`,
		set.Site, set.Mode, boolInt(set.ClassificationOff), boolInt(set.InterceptionOff),
		set.BreakageCount, relaxUnix, set.Note)
	if err != nil {
		return fmt.Errorf("settings: upsert %s: %w", set.Site, err)
	}
	return nil
}

// listSites reads every stored override.
func (s *Store) listSites(ctx context.Context) ([]SiteSettings, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT site, mode, classification_off, interception_off,
		       breakage_count, relax_until, note
		FROM site_settings ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("settings: list: %w", err)
	}
	defer rows.Close()

	var out []SiteSettings
	for rows.Next() {
		var set SiteSettings
		var classOff, interOff int
		var relaxUnix int64
		if err := rows.Scan(&set.Site, &set.Mode, &classOff, &interOff,
			&set.BreakageCount, &relaxUnix, &set.Note); err != nil {
			return nil, fmt.Errorf("settings: scan: %w", err)
		}
		set.ClassificationOff = classOff != 0
		set.InterceptionOff = interOff != 0
		if relaxUnix > 0 {
			set.RelaxUntil = time.Unix(relaxUnix, 0).UTC()
		}
		out = append(out, set)
	}
	return out, rows.Err()
}

// clearSites deletes every stored override.
func (s *Store) clearSites(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM site_settings`)
	if err != nil {
		return fmt.Errorf("settings: clear: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
