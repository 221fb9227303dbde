package e2ee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/family-messenger/securecore/internal/secerr"
)

// PostgresKeyring implements Keyring against a message_keys table.
type PostgresKeyring struct {
	db *pgxpool.Pool
}

// NewPostgresKeyring builds a Postgres-backed keyring.
func NewPostgresKeyring(db *pgxpool.Pool) *PostgresKeyring {
	return &PostgresKeyring{db: db}
}

func (k *PostgresKeyring) Save(ctx context.Context, pair KeyPair) error {
	_, err := k.db.Exec(ctx, `INSERT INTO message_keys (key_id, identity, enc_public_key, sig_public_key, created_at, deprecated)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		pair.KeyID, pair.Identity, pair.EncryptionPublicKey, pair.SigningPublicKey, pair.CreatedAt.UTC(), pair.Deprecated)
	if err != nil {
		return fmt.Errorf("save key pair: %w", secerr.ErrStorage)
	}
	return nil
}

func (k *PostgresKeyring) Get(ctx context.Context, identity, keyID string) (KeyPair, error) {
	row := k.db.QueryRow(ctx, `SELECT key_id, identity, enc_public_key, sig_public_key, created_at, deprecated
        FROM message_keys WHERE identity = $1 AND key_id = $2`, identity, keyID)
	return scanKeyPair(row)
}

func (k *PostgresKeyring) ListByIdentity(ctx context.Context, identity string) ([]KeyPair, error) {
	rows, err := k.db.Query(ctx, `SELECT key_id, identity, enc_public_key, sig_public_key, created_at, deprecated
        FROM message_keys WHERE identity = $1 ORDER BY created_at`, identity)
	if err != nil {
		return nil, fmt.Errorf("list key pairs: %w", secerr.ErrStorage)
	}
	defer rows.Close()

	var pairs []KeyPair
	for rows.Next() {
		pair, err := scanKeyPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list key pairs: %w", secerr.ErrStorage)
	}
	return pairs, nil
}

func (k *PostgresKeyring) MarkDeprecated(ctx context.Context, identity, keyID string) error {
	cmd, err := k.db.Exec(ctx, `UPDATE message_keys SET deprecated = TRUE WHERE identity = $1 AND key_id = $2`, identity, keyID)
	if err != nil {
		return fmt.Errorf("deprecate key pair: %w", secerr.ErrStorage)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("key %s/%s: %w", identity, keyID, secerr.ErrNotFound)
	}
	return nil
}

func (k *PostgresKeyring) Delete(ctx context.Context, identity, keyID string) error {
	cmd, err := k.db.Exec(ctx, `DELETE FROM message_keys WHERE identity = $1 AND key_id = $2`, identity, keyID)
	if err != nil {
		return fmt.Errorf("delete key pair: %w", secerr.ErrStorage)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("key %s/%s: %w", identity, keyID, secerr.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyPair(row rowScanner) (KeyPair, error) {
	var (
		pair      KeyPair
		createdAt time.Time
	)
	if err := row.Scan(&pair.KeyID, &pair.Identity, &pair.EncryptionPublicKey, &pair.SigningPublicKey, &createdAt, &pair.Deprecated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return KeyPair{}, fmt.Errorf("key pair: %w", secerr.ErrNotFound)
		}
		return KeyPair{}, fmt.Errorf("scan key pair: %w", secerr.ErrStorage)
	}
	pair.CreatedAt = createdAt.UTC()
	return pair, nil
}
