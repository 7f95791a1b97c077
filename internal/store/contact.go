package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/msgview/internal/model"
)

// SaveContact inserts or replaces a cached contact lookup.
func (db *DB) SaveContact(c CachedContact) error {
	payload, name, err := encodeContact(c.Contact)
	if err != nil {
		return fmt.Errorf("encode contact %q: %w", c.Handle, err)
	}
	_, err = db.Exec(`
		INSERT INTO contacts (handle, name, payload, found, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			name = excluded.name,
			payload = excluded.payload,
			found = excluded.found,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		c.Handle, name, payload, c.Found(), c.ExpiresAt.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save contact %q: %w", c.Handle, err)
	}
	return nil
}

// LoadContacts returns unexpired cached contacts, oldest write first.
func (db *DB) LoadContacts(now time.Time) ([]CachedContact, error) {
	rows, err := db.Query(`
		SELECT handle, payload, found, expires_at FROM contacts
		WHERE expires_at > ?
		ORDER BY updated_at ASC, handle ASC`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CachedContact
	for rows.Next() {
		var (
			c         CachedContact
			payload   string
			found     bool
			expiresAt int64
		)
		if err := rows.Scan(&c.Handle, &payload, &found, &expiresAt); err != nil {
			return nil, err
		}
		c.ExpiresAt = time.UnixMilli(expiresAt)
		if found {
			var contact model.Contact
			if err := json.Unmarshal([]byte(payload), &contact); err != nil {
				// Unreadable rows are skipped; the next lookup overwrites them.
				continue
			}
			c.Contact = &contact
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneContacts deletes expired entries and returns how many were removed.
func (db *DB) PruneContacts(now time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM contacts WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune contacts: %w", err)
	}
	return res.RowsAffected()
}

func encodeContact(c *model.Contact) (payload, name string, err error) {
	if c == nil {
		return "", "", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", "", err
	}
	return string(data), c.DisplayName(), nil
}
