package counterstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// SQLiteStore is a Store backed by a sqlite database, schema-migrated on
// open the same way the runtime-data/schema_version table in the original
// Postgres-backed implementation is: a single-row runtime table records the
// current schema_version, and migration_step_N is applied in order until
// the version catches up to the number of known steps.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) the sqlite database at path
// and brings its schema up to date.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, workerr.NewStoreError("open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, workerr.NewStoreError("ping", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const migrationStepCount = 2

// migrate brings the schema up to migrationStepCount, one step at a time,
// recording progress in snmp_runtime_data.schema_version after each step so
// a crash mid-migration resumes cleanly.
func (s *SQLiteStore) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	for version < migrationStepCount {
		version++
		if err := s.migrationStep(version); err != nil {
			return workerr.NewStoreError(fmt.Sprintf("migration step %d", version), err)
		}
		if _, err := s.db.Exec(`UPDATE snmp_runtime_data SET schema_version = ?`, version); err != nil {
			return workerr.NewStoreError(fmt.Sprintf("record migration step %d", version), err)
		}
	}
	return nil
}

func (s *SQLiteStore) schemaVersion() (int, error) {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS snmp_runtime_data (schema_version INTEGER NOT NULL)`); err != nil {
		return 0, workerr.NewStoreError("create runtime table", err)
	}
	var version int
	err := s.db.QueryRow(`SELECT schema_version FROM snmp_runtime_data LIMIT 1`).Scan(&version)
	switch err {
	case nil:
		return version, nil
	case sql.ErrNoRows:
		if _, err := s.db.Exec(`INSERT INTO snmp_runtime_data (schema_version) VALUES (0)`); err != nil {
			return 0, workerr.NewStoreError("seed runtime row", err)
		}
		return 0, nil
	default:
		return 0, workerr.NewStoreError("read schema version", err)
	}
}

func (s *SQLiteStore) migrationStep(n int) error {
	switch n {
	case 1:
		return s.migrationStep1()
	case 2:
		return s.migrationStep2()
	default:
		return fmt.Errorf("no migration step %d", n)
	}
}

// migrationStep1 is a no-op placeholder matching the original schema's
// reserved first step (runtime_data table itself), already created in
// schemaVersion.
func (s *SQLiteStore) migrationStep1() error {
	return nil
}

// migrationStep2 creates the counters table: one row per counter identity,
// holding its last observed raw value and the timestamp it was read at.
func (s *SQLiteStore) migrationStep2() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snmp_bot_counters (
			id TEXT PRIMARY KEY,
			value INTEGER NOT NULL,
			ts REAL NOT NULL
		)
	`)
	return err
}

func (s *SQLiteStore) Get(ident string) (models.CounterRecord, bool, error) {
	var rec models.CounterRecord
	err := s.db.QueryRow(`SELECT value, ts FROM snmp_bot_counters WHERE id = ?`, ident).Scan(&rec.Value, &rec.TS)
	switch err {
	case nil:
		return rec, true, nil
	case sql.ErrNoRows:
		return models.CounterRecord{}, false, nil
	default:
		return models.CounterRecord{}, false, workerr.NewStoreError("get "+ident, err)
	}
}

func (s *SQLiteStore) Put(ident string, value int64, ts float64) error {
	_, err := s.db.Exec(`
		INSERT INTO snmp_bot_counters (id, value, ts) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, ts = excluded.ts
	`, ident, value, ts)
	if err != nil {
		return workerr.NewStoreError("put "+ident, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
