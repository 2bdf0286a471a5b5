// store.go is the SQLite persistence layer.
package profile

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	handle         TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	wallet_address TEXT NOT NULL DEFAULT '',
	wallet_secret  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	handle    TEXT NOT NULL,
	body      TEXT NOT NULL,
	from_user INTEGER NOT NULL,
	ts        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_handle_ts ON messages(handle, ts);

CREATE TABLE IF NOT EXISTS transfers (
	id               TEXT PRIMARY KEY,
	sender_handle    TEXT NOT NULL,
	recipient_handle TEXT NOT NULL,
	amount_units     TEXT NOT NULL,
	state            TEXT NOT NULL,
	tx_hash          TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender_handle);
`

// Store is the SQLite-backed persistence layer for profiles, message
// history, and the transfer ledger.
type Store struct {
	db     *sql.DB
	cipher *Cipher
}

// OpenStore opens (creating if needed) the database at path. When
// secretPassphrase is non-empty, wallet secrets are encrypted at rest
// with a key derived from it and a salt persisted in the meta table.
func OpenStore(path, secretPassphrase string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &Store{db: db}
	if secretPassphrase != "" {
		salt, err := s.loadOrCreateSalt()
		if err != nil {
			db.Close()
			return nil, err
		}
		cipher, err := NewCipher(secretPassphrase, salt)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.cipher = cipher
	}
	return s, nil
}

// Close releases the database handle and wipes the encryption key.
func (s *Store) Close() error {
	if s.cipher != nil {
		s.cipher.Zero()
	}
	return s.db.Close()
}

// DB exposes the underlying handle for callers that share the database
// (the treasury monitor stores observations in its own table).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) loadOrCreateSalt() ([]byte, error) {
	var encoded string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'secret_salt'`).Scan(&encoded)
	if err == nil {
		return base64.StdEncoding.DecodeString(encoded)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("loading salt: %w", err)
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	encoded = base64.StdEncoding.EncodeToString(salt)
	if _, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES ('secret_salt', ?)`, encoded); err != nil {
		return nil, fmt.Errorf("storing salt: %w", err)
	}
	return salt, nil
}

// ---------- Profiles ----------

// FindProfile returns the profile for a handle, or nil when none exists.
func (s *Store) FindProfile(ctx context.Context, handle string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT handle, display_name, email, wallet_address, wallet_secret, created_at, updated_at
		FROM profiles WHERE handle = ?`, handle)

	var p Profile
	var address, secret string
	err := row.Scan(&p.Handle, &p.DisplayName, &p.Email, &address, &secret, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	if address != "" {
		if secret != "" && s.cipher != nil {
			secret, err = s.cipher.Open(secret)
			if err != nil {
				return nil, fmt.Errorf("decrypting wallet secret for %s: %w", handle, err)
			}
		}
		p.Wallet = &Wallet{Address: address, Secret: secret}
	}
	return &p, nil
}

// CreateProfile inserts a new profile row.
func (s *Store) CreateProfile(ctx context.Context, p *Profile) error {
	address, secret, err := s.walletColumns(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (handle, display_name, email, wallet_address, wallet_secret)
		VALUES (?, ?, ?, ?, ?)`,
		p.Handle, p.DisplayName, p.Email, address, secret)
	if err != nil {
		return fmt.Errorf("creating profile %s: %w", p.Handle, err)
	}
	return nil
}

// UpdateProfile persists the mutable fields of a profile.
func (s *Store) UpdateProfile(ctx context.Context, p *Profile) error {
	address, secret, err := s.walletColumns(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET display_name = ?, email = ?, wallet_address = ?, wallet_secret = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE handle = ?`,
		p.DisplayName, p.Email, address, secret, p.Handle)
	if err != nil {
		return fmt.Errorf("updating profile %s: %w", p.Handle, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile %s not found", p.Handle)
	}
	return nil
}

func (s *Store) walletColumns(p *Profile) (address, secret string, err error) {
	if p.Wallet == nil {
		return "", "", nil
	}
	address = p.Wallet.Address
	secret = p.Wallet.Secret
	if secret != "" && s.cipher != nil {
		secret, err = s.cipher.Seal(secret)
		if err != nil {
			return "", "", fmt.Errorf("encrypting wallet secret: %w", err)
		}
	}
	return address, secret, nil
}

// ---------- Messages ----------

// RecordMessage appends a message to a user's history.
func (s *Store) RecordMessage(ctx context.Context, handle, body string, fromUser bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (handle, body, from_user, ts) VALUES (?, ?, ?, ?)`,
		handle, body, fromUser, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording message: %w", err)
	}
	return nil
}

// History returns the most recent messages for a handle in ascending
// timestamp order.
func (s *Store) History(ctx context.Context, handle string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, handle, body, from_user, ts FROM messages
		WHERE handle = ? ORDER BY ts DESC, id DESC LIMIT ?`, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Handle, &m.Body, &m.FromUser, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into ascending order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ---------- Transfer Ledger ----------

// CreateTransfer inserts a pending ledger row keyed by the idempotency ID.
func (s *Store) CreateTransfer(ctx context.Context, t *Transfer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (id, sender_handle, recipient_handle, amount_units, state)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.SenderHandle, t.RecipientHandle, t.AmountUnits, TransferPending)
	if err != nil {
		return fmt.Errorf("creating transfer %s: %w", t.ID, err)
	}
	return nil
}

// SettleTransfer marks a transfer settled with its transaction hash.
func (s *Store) SettleTransfer(ctx context.Context, id, txHash string) error {
	return s.setTransferState(ctx, id, TransferSettled, txHash)
}

// FailTransfer marks a transfer failed.
func (s *Store) FailTransfer(ctx context.Context, id string) error {
	return s.setTransferState(ctx, id, TransferFailed, "")
}

func (s *Store) setTransferState(ctx context.Context, id string, state TransferState, txHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfers SET state = ?, tx_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, state, txHash, id)
	if err != nil {
		return fmt.Errorf("updating transfer %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transfer %s not found", id)
	}
	return nil
}

// Transfers returns a user's ledger entries, newest first.
func (s *Store) Transfers(ctx context.Context, handle string, limit int) ([]Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_handle, recipient_handle, amount_units, state, tx_hash, created_at, updated_at
		FROM transfers
		WHERE sender_handle = ? OR recipient_handle = ?
		ORDER BY created_at DESC LIMIT ?`, handle, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.SenderHandle, &t.RecipientHandle, &t.AmountUnits,
			&t.State, &t.TxHash, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
