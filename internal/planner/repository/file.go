package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"safety-planner/internal/planner/snapshot"
)

// ============================================================
// File Store
// ============================================================

// FileStore хранит снимок одним файлом. Формат выбирается по
// расширению: .cbor дает CBOR, остальное JSON.
type FileStore struct {
	path string
	cbor bool
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file store: empty path")
	}
	return &FileStore{
		path: path,
		cbor: strings.EqualFold(filepath.Ext(path), ".cbor"),
	}, nil
}

// Save пишет снимок во временный файл рядом и переименовывает его,
// так что читатель видит либо старый, либо новый снимок целиком.
func (s *FileStore) Save(ctx context.Context, f *snapshot.Flat) error {
	if f == nil {
		return fmt.Errorf("save: nil snapshot")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var data []byte
	if s.cbor {
		var err error
		if data, err = snapshot.EncodeCBOR(f); err != nil {
			return err
		}
	} else {
		var buf bytes.Buffer
		if err := snapshot.EncodeJSON(&buf, f); err != nil {
			return err
		}
		data = buf.Bytes()
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load читает снимок; отсутствующий файл дает false без ошибки.
func (s *FileStore) Load(ctx context.Context) (*snapshot.Flat, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}

	var f *snapshot.Flat
	if s.cbor {
		f, err = snapshot.DecodeCBOR(data)
	} else {
		f, err = snapshot.DecodeJSON(bytes.NewReader(data))
	}
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

var _ Adapter = (*FileStore)(nil)
