package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"safety-planner/internal/planner/snapshot"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ============================================================
// SQLite Store
// ============================================================

// SQLiteStore хранит снимок по таблицам: планы, замечания, коммиты и
// head. Записи лежат CBOR-полезной нагрузкой, position сохраняет порядок
// снимка.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Init применяет встроенные миграции по порядку имен.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if err := s.runMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// Save заменяет сохраненный снимок целиком в одной транзакции.
func (s *SQLiteStore) Save(ctx context.Context, f *snapshot.Flat) error {
	if f == nil {
		return fmt.Errorf("save: nil snapshot")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"plans", "findings", "commits", "heads", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('version', ?)`,
		strconv.Itoa(f.Version)); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	for i, rec := range f.Plans {
		payload, err := snapshot.MarshalCBOR(rec)
		if err != nil {
			return fmt.Errorf("plan %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO plans (id, position, payload) VALUES (?, ?, ?)`,
			rec.ID, i, payload); err != nil {
			return fmt.Errorf("insert plan %s: %w", rec.ID, err)
		}
	}

	for i, rec := range f.Findings {
		payload, err := snapshot.MarshalCBOR(rec)
		if err != nil {
			return fmt.Errorf("finding %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO findings (id, plan_id, position, payload) VALUES (?, ?, ?, ?)`,
			rec.ID, rec.PlanID, i, payload); err != nil {
			return fmt.Errorf("insert finding %s: %w", rec.ID, err)
		}
	}

	for i, rec := range f.Commits {
		payload, err := snapshot.MarshalCBOR(rec)
		if err != nil {
			return fmt.Errorf("commit %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO commits (id, plan_id, seq, position, payload) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.PlanID, rec.Seq, i, payload); err != nil {
			return fmt.Errorf("insert commit %s: %w", rec.ID, err)
		}
	}

	for _, h := range f.Heads {
		if _, err := tx.ExecContext(ctx, `INSERT INTO heads (plan_id, commit_id) VALUES (?, ?)`,
			h.PlanID, h.CommitID); err != nil {
			return fmt.Errorf("insert head %s: %w", h.PlanID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Load читает снимок. Пустая база (нет записи версии) дает false.
func (s *SQLiteStore) Load(ctx context.Context) (*snapshot.Flat, bool, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read meta: %w", err)
	}

	f := &snapshot.Flat{}
	if f.Version, err = strconv.Atoi(version); err != nil {
		return nil, false, fmt.Errorf("read meta: bad version %q", version)
	}

	if err := loadPayloads(ctx, s.db, `SELECT payload FROM plans ORDER BY position`, &f.Plans); err != nil {
		return nil, false, fmt.Errorf("load plans: %w", err)
	}
	if err := loadPayloads(ctx, s.db, `SELECT payload FROM findings ORDER BY position`, &f.Findings); err != nil {
		return nil, false, fmt.Errorf("load findings: %w", err)
	}
	if err := loadPayloads(ctx, s.db, `SELECT payload FROM commits ORDER BY position`, &f.Commits); err != nil {
		return nil, false, fmt.Errorf("load commits: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT plan_id, commit_id FROM heads ORDER BY plan_id`)
	if err != nil {
		return nil, false, fmt.Errorf("load heads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h snapshot.HeadRecord
		if err := rows.Scan(&h.PlanID, &h.CommitID); err != nil {
			return nil, false, fmt.Errorf("scan head: %w", err)
		}
		f.Heads = append(f.Heads, h)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("load heads: %w", err)
	}

	return f, true, nil
}

func loadPayloads[T any](ctx context.Context, db *sql.DB, query string, out *[]T) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		var rec T
		if err := snapshot.UnmarshalCBOR(payload, &rec); err != nil {
			return err
		}
		*out = append(*out, rec)
	}
	return rows.Err()
}

// Ping проверяет доступность базы.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================
// Migrations
// ============================================================

func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

var _ Adapter = (*SQLiteStore)(nil)

