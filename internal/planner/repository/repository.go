package repository

import (
	"context"
	"strings"

	"safety-planner/internal/planner/snapshot"
)

// ============================================================
// Adapter
// ============================================================

// Adapter сохраняет и загружает плоский снимок рабочего пространства.
// Load возвращает false, если сохраненного снимка еще нет.
type Adapter interface {
	Save(ctx context.Context, f *snapshot.Flat) error
	Load(ctx context.Context) (*snapshot.Flat, bool, error)
}

// Open выбирает адаптер по пути: *.db, *.sqlite и *.sqlite3 открываются
// как SQLite, остальное как файл снимка.
func Open(ctx context.Context, path string) (Adapter, func() error, error) {
	switch {
	case strings.HasSuffix(path, ".db"), strings.HasSuffix(path, ".sqlite"), strings.HasSuffix(path, ".sqlite3"):
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		store := NewSQLiteStore(db)
		if err := store.Init(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		store, err := NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}
