package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"couponflow/internal/domain"
)

var ErrNotFound = errors.New("store: tenant not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS tenants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  token TEXT NOT NULL,
  auto_enabled INTEGER NOT NULL DEFAULT 1,
  report_enabled INTEGER NOT NULL DEFAULT 1,
  last_run_date DATETIME,
  last_run_success INTEGER,
  total_success INTEGER NOT NULL DEFAULT 0,
  total_failed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tenants_enabled ON tenants(auto_enabled);
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}

// Summary is the admin-level aggregate over all tenants.
type Summary struct {
	Tenants      int
	AutoEnabled  int
	TotalSuccess int
	TotalFailed  int
}

type Repository interface {
	Get(ctx context.Context, id string) (domain.Tenant, error)
	GetByName(ctx context.Context, name string) (domain.Tenant, error)
	Upsert(ctx context.Context, t domain.Tenant) (string, error)
	ListEnabled(ctx context.Context) ([]domain.Tenant, error)
	RecordRun(ctx context.Context, id string, at time.Time, success bool) error
	SetAutoEnabled(ctx context.Context, id string, enabled bool) error
	SetReportEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
	Summarize(ctx context.Context) (Summary, error)

	// Small kv side table, used by the publisher to cache its access token.
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

type sqliteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

const tenantCols = `id,name,token,auto_enabled,report_enabled,last_run_date,last_run_success,total_success,total_failed,created_at,updated_at`

func scanTenant(row interface{ Scan(...any) error }) (domain.Tenant, error) {
	var t domain.Tenant
	var lastDate sql.NullTime
	var lastOK sql.NullBool
	err := row.Scan(&t.ID, &t.Name, &t.Token, &t.AutoEnabled, &t.ReportEnabled,
		&lastDate, &lastOK, &t.TotalSuccess, &t.TotalFailed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tenant{}, err
	}
	if lastDate.Valid {
		d := lastDate.Time
		t.LastRunDate = &d
	}
	if lastOK.Valid {
		b := lastOK.Bool
		t.LastRunSuccess = &b
	}
	return t, nil
}

func (r *sqliteRepo) Get(ctx context.Context, id string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id=?`, id)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return domain.Tenant{}, ErrNotFound
	}
	return t, err
}

func (r *sqliteRepo) GetByName(ctx context.Context, name string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE name=?`, name)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return domain.Tenant{}, ErrNotFound
	}
	return t, err
}

// Upsert inserts a tenant, or refreshes the token and enable flags of an
// existing one matched by name. Returns the tenant id.
func (r *sqliteRepo) Upsert(ctx context.Context, t domain.Tenant) (string, error) {
	id := t.ID
	if id == "" {
		id = "tnt_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tenants (id,name,token,auto_enabled,report_enabled,created_at,updated_at)
VALUES (?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
ON CONFLICT(name) DO UPDATE SET
  token=excluded.token,
  auto_enabled=excluded.auto_enabled,
  report_enabled=excluded.report_enabled,
  updated_at=CURRENT_TIMESTAMP
`, id, t.Name, t.Token, t.AutoEnabled, t.ReportEnabled)
	if err != nil {
		return "", err
	}
	// The conflict path keeps the original id; read it back by name.
	existing, err := r.GetByName(ctx, t.Name)
	if err != nil {
		return "", err
	}
	return existing.ID, nil
}

func (r *sqliteRepo) ListEnabled(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE auto_enabled=1 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *sqliteRepo) RecordRun(ctx context.Context, id string, at time.Time, success bool) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE tenants
SET last_run_date=?, last_run_success=?,
    total_success=total_success + ?,
    total_failed=total_failed + ?,
    updated_at=CURRENT_TIMESTAMP
WHERE id=?`, at, success, boolToInt(success), boolToInt(!success), id)
	return err
}

func (r *sqliteRepo) SetAutoEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET auto_enabled=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, enabled, id)
	return err
}

func (r *sqliteRepo) SetReportEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET report_enabled=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, enabled, id)
	return err
}

func (r *sqliteRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id=?`, id)
	return err
}

func (r *sqliteRepo) Summarize(ctx context.Context) (Summary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(auto_enabled),0),
       COALESCE(SUM(total_success),0),
       COALESCE(SUM(total_failed),0)
FROM tenants`)
	var s Summary
	if err := row.Scan(&s.Tenants, &s.AutoEnabled, &s.TotalSuccess, &s.TotalFailed); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (r *sqliteRepo) GetValue(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (r *sqliteRepo) SetValue(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO kv (key,value,updated_at) VALUES (?,?,CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
