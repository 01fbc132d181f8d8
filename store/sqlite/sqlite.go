/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists everything the points service keeps between requests. Derived
  state (points, tier, DA stage) is NOT authoritative here; it is always
  recomputed by replaying the violations table. The snapshot table is a
  cache for the dashboard.

INTERFACES IMPLEMENTED:
  generic.Store:    Violation record persistence
  generic.DayIndex: Same-day duplicate lookups

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the violations table
  - No DELETE statements on the violations table (Reset aside)

KEY TABLES:
  violations:      Immutable history, one row per violation
  employees:       Entity records
  policies:        Versioned policy documents, one active
  state_snapshots: Last computed state per employee

INDEXES:
  - idx_violations_employee_day: replay load (hot path)
  - idx_unique_violation_day: no duplicate type per employee per day
  - idempotency_key UNIQUE: retry safety

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is pinned to
  one connection, otherwise each pooled connection would see its own
  empty database.

USAGE:
  store, err := sqlite.New("./data/points.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := discipline.NewViolationLedger(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - discipline/ledger.go: Duplicate checks on top of this store
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/points-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.Store    = (*Store)(nil)
	_ generic.DayIndex = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection for health probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Violations (append-only history)
	CREATE TABLE IF NOT EXISTS violations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		raw_date TEXT NOT NULL,
		day TEXT,
		kind TEXT NOT NULL,
		flags_json TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_violations_employee_day
		ON violations(employee_id, day);

	-- One violation type per employee per calendar day.
	-- Rows whose date did not parse have a NULL day and are not constrained.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_violation_day
		ON violations(employee_id, day, kind)
		WHERE day IS NOT NULL;

	-- Employees (entities)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department TEXT,
		hire_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Policies (every save is a new version)
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT NOT NULL,
		version INTEGER NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		PRIMARY KEY (id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_policies_active
		ON policies(active) WHERE active;

	-- Last computed state per employee (cache, never authoritative)
	CREATE TABLE IF NOT EXISTS state_snapshots (
		employee_id TEXT PRIMARY KEY,
		policy_id TEXT NOT NULL,
		policy_version INTEGER NOT NULL,
		as_of TEXT NOT NULL,
		points TEXT NOT NULL,
		tier TEXT NOT NULL,
		da_stage_index INTEGER NOT NULL,
		result_json TEXT NOT NULL,
		computed_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// VIOLATION STORE (generic.Store interface)
// =============================================================================

// Append adds a record to the history.
func (s *Store) Append(ctx context.Context, rec generic.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendRecord(ctx, s.db, rec)
}

func (s *Store) appendRecord(ctx context.Context, q querier, rec generic.Record) error {
	if rec.ID == "" {
		rec.ID = generic.RecordID(uuid.NewString())
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var day sql.NullString
	parsed, dateErr := rec.Date()
	if dateErr == nil {
		day = sql.NullString{String: parsed.String(), Valid: true}
	}

	flagsJSON, _ := json.Marshal(rec.Flags)
	metadataJSON, _ := json.Marshal(rec.Metadata)

	query := `
		INSERT INTO violations
		(id, employee_id, raw_date, day, kind, flags_json, reason,
		 idempotency_key, metadata_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		rec.ID,
		rec.EntityID,
		rec.RawDate,
		day,
		rec.Kind,
		string(flagsJSON),
		nullString(rec.Reason),
		nullString(rec.IdempotencyKey),
		string(metadataJSON),
		nullString(rec.CreatedBy),
		createdAt.Format(time.RFC3339Nano),
	)
	if err == nil {
		return nil
	}

	if !isUniqueConstraintError(err) {
		return fmt.Errorf("failed to append violation: %w", err)
	}
	switch {
	case strings.Contains(err.Error(), "violations.idempotency_key"):
		return generic.ErrDuplicateIdempotencyKey
	case strings.Contains(err.Error(), "violations.kind"):
		dup := &generic.DuplicateRecordError{EntityID: rec.EntityID, Date: parsed, Kind: rec.Kind}
		var existing string
		if q.QueryRowContext(ctx,
			"SELECT id FROM violations WHERE employee_id = ? AND day = ? AND kind = ?",
			rec.EntityID, day, rec.Kind,
		).Scan(&existing) == nil {
			dup.ExistingID = generic.RecordID(existing)
		}
		return dup
	default:
		return fmt.Errorf("%w: %v", generic.ErrRecordFailed, err)
	}
}

// AppendBatch adds multiple records atomically.
func (s *Store) AppendBatch(ctx context.Context, recs []generic.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, rec := range recs {
		if rec.IdempotencyKey != "" {
			if keys[rec.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[rec.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, rec := range recs {
		if err := s.appendRecord(ctx, sqlTx, rec); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Load returns all records for an employee in insertion order.
func (s *Store) Load(ctx context.Context, entityID generic.EntityID) ([]generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, raw_date, kind, flags_json, reason,
		       idempotency_key, metadata_json, created_by, created_at
		FROM violations
		WHERE employee_id = ?
		ORDER BY seq ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var recs []generic.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM violations WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// FindOnDay implements generic.DayIndex.
func (s *Store) FindOnDay(ctx context.Context, entityID generic.EntityID, kind string, day generic.TimePoint) (generic.RecordID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM violations WHERE employee_id = ? AND day = ? AND kind = ? LIMIT 1",
		entityID, day.String(), kind,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up violation day: %w", err)
	}
	return generic.RecordID(id), true, nil
}

// CountViolations returns the number of stored records per employee.
func (s *Store) CountViolations(ctx context.Context) (map[generic.EntityID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT employee_id, COUNT(*) FROM violations GROUP BY employee_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[generic.EntityID]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[generic.EntityID(id)] = n
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (generic.Record, error) {
	var (
		rec            generic.Record
		flagsJSON      sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&rec.ID, &rec.EntityID, &rec.RawDate, &rec.Kind, &flagsJSON, &reason,
		&idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan violation: %w", err)
	}

	rec.Reason = reason.String
	rec.IdempotencyKey = idempotencyKey.String
	rec.CreatedBy = createdBy.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	if flagsJSON.Valid && flagsJSON.String != "" && flagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(flagsJSON.String), &rec.Flags); err != nil {
			return rec, fmt.Errorf("violation %s: bad flags: %w", rec.ID, err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("violation %s: bad metadata: %w", rec.ID, err)
		}
	}

	return rec, nil
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// Employee represents an employee record.
type Employee struct {
	ID         string
	Name       string
	Email      string
	Department string
	HireDate   generic.TimePoint
	CreatedAt  time.Time
}

// SaveEmployee inserts or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, department, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			hire_date = excluded.hire_date
	`

	var hireDate sql.NullString
	if !emp.HireDate.IsZero() {
		hireDate = sql.NullString{String: emp.HireDate.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, nullString(emp.Email), nullString(emp.Department), hireDate,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", emp.ID, err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, department, hire_date, created_at FROM employees WHERE id = ?",
		id,
	)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee %s: %w", id, generic.ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, department, hire_date, created_at FROM employees ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (Employee, error) {
	var emp Employee
	var email, department, hireDate sql.NullString
	var createdAt string
	if err := row.Scan(&emp.ID, &emp.Name, &email, &department, &hireDate, &createdAt); err != nil {
		return emp, err
	}
	emp.Email = email.String
	emp.Department = department.String
	if hireDate.Valid {
		emp.HireDate, _ = generic.ParseCalendarDate(hireDate.String)
	}
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return emp, nil
}

// =============================================================================
// POLICY STORE
// =============================================================================

// PolicyRecord is one stored version of a policy document.
type PolicyRecord struct {
	ID         string
	Version    int
	Name       string
	ConfigJSON string
	Active     bool
	CreatedAt  time.Time
}

// SavePolicy stores a new version of the policy and returns it.
func (s *Store) SavePolicy(ctx context.Context, p PolicyRecord) (PolicyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM policies WHERE id = ?", p.ID,
	).Scan(&current); err != nil {
		return p, fmt.Errorf("failed to read policy version: %w", err)
	}

	p.Version = current + 1
	p.Active = false
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO policies (id, version, name, config_json, active, created_at) VALUES (?, ?, ?, ?, FALSE, ?)",
		p.ID, p.Version, p.Name, p.ConfigJSON, p.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return p, fmt.Errorf("failed to save policy %s: %w", p.ID, err)
	}
	return p, nil
}

// GetPolicy returns the latest version of a policy.
func (s *Store) GetPolicy(ctx context.Context, id string) (*PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getPolicy(ctx, s.db, id)
}

func (s *Store) getPolicy(ctx context.Context, q querier, id string) (*PolicyRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, version, name, config_json, active, created_at
		FROM policies WHERE id = ?
		ORDER BY version DESC LIMIT 1
	`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s: %w", id, generic.ErrPolicyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPolicies returns the latest version of every policy.
func (s *Store) ListPolicies(ctx context.Context) ([]PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.version, p.name, p.config_json,
		       EXISTS (SELECT 1 FROM policies a WHERE a.id = p.id AND a.active),
		       p.created_at
		FROM policies p
		WHERE p.version = (SELECT MAX(version) FROM policies WHERE id = p.id)
		ORDER BY p.name, p.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []PolicyRecord
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// ActivatePolicy makes the latest version of id the only active policy.
func (s *Store) ActivatePolicy(ctx context.Context, id string) (*PolicyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := s.getPolicy(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE policies SET active = FALSE WHERE active"); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE policies SET active = TRUE WHERE id = ? AND version = ?", p.ID, p.Version,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	p.Active = true
	return p, nil
}

// ActivePolicy returns the active policy version.
func (s *Store) ActivePolicy(ctx context.Context) (*PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, version, name, config_json, active, created_at
		FROM policies WHERE active LIMIT 1
	`)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active policy: %w", generic.ErrPolicyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPolicy(row scanner) (PolicyRecord, error) {
	var p PolicyRecord
	var createdAt string
	if err := row.Scan(&p.ID, &p.Version, &p.Name, &p.ConfigJSON, &p.Active, &createdAt); err != nil {
		return p, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return p, nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

// SnapshotRecord is the last computed state of one employee.
type SnapshotRecord struct {
	EmployeeID    string
	PolicyID      string
	PolicyVersion int
	AsOf          generic.TimePoint
	Points        decimal.Decimal
	Tier          string
	DAStageIndex  int
	ResultJSON    string
	ComputedAt    time.Time
}

// SaveSnapshot replaces the employee's snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO state_snapshots
		(employee_id, policy_id, policy_version, as_of, points, tier, da_stage_index, result_json, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			policy_id = excluded.policy_id,
			policy_version = excluded.policy_version,
			as_of = excluded.as_of,
			points = excluded.points,
			tier = excluded.tier,
			da_stage_index = excluded.da_stage_index,
			result_json = excluded.result_json,
			computed_at = excluded.computed_at
	`

	computedAt := snap.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		snap.EmployeeID, snap.PolicyID, snap.PolicyVersion,
		snap.AsOf.String(), snap.Points.String(), snap.Tier, snap.DAStageIndex,
		snap.ResultJSON, computedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snap.EmployeeID, err)
	}
	return nil
}

// GetSnapshot returns nil when the employee has no snapshot yet.
func (s *Store) GetSnapshot(ctx context.Context, employeeID string) (*SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT employee_id, policy_id, policy_version, as_of, points, tier, da_stage_index, result_json, computed_at
		FROM state_snapshots WHERE employee_id = ?
	`, employeeID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots returns every stored snapshot.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, policy_id, policy_version, as_of, points, tier, da_stage_index, result_json, computed_at
		FROM state_snapshots ORDER BY employee_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func scanSnapshot(row scanner) (SnapshotRecord, error) {
	var snap SnapshotRecord
	var asOf, points, computedAt string
	err := row.Scan(&snap.EmployeeID, &snap.PolicyID, &snap.PolicyVersion, &asOf, &points,
		&snap.Tier, &snap.DAStageIndex, &snap.ResultJSON, &computedAt)
	if err != nil {
		return snap, err
	}
	if snap.AsOf, err = generic.ParseCalendarDate(asOf); err != nil {
		return snap, fmt.Errorf("snapshot %s: %w", snap.EmployeeID, err)
	}
	if snap.Points, err = decimal.NewFromString(points); err != nil {
		return snap, fmt.Errorf("snapshot %s: bad points %q: %w", snap.EmployeeID, points, err)
	}
	snap.ComputedAt, _ = time.Parse(time.RFC3339Nano, computedAt)
	return snap, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"violations", "state_snapshots", "employees", "policies"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
