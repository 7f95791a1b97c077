package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// GetState returns the value stored under key. ok is false when the key is unset.
func (db *DB) GetState(key string) (value string, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

// SetState stores value under key.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// GetInt64 reads an integer state value. Returns 0 when unset.
func (db *DB) GetInt64(key string) (int64, error) {
	v, ok, err := db.GetState(key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse state %q: %w", key, err)
	}
	return n, nil
}

// SetInt64 stores an integer state value.
func (db *DB) SetInt64(key string, n int64) error {
	return db.SetState(key, strconv.FormatInt(n, 10))
}
