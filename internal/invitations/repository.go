package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/victoralfred/invite_manager/pkg/database"
)

// Store persists invitations so the container and catalog can be rebuilt on
// startup. Persistence participates in whatever transactional guarantees
// the database provides; the core does not add its own.
type Store interface {
	Create(ctx context.Context, inv *Invitation) error
	Update(ctx context.Context, inv *Invitation) error
	Delete(ctx context.Context, code string) error
	GetByCode(ctx context.Context, code string) (*Invitation, error)
	LoadAll(ctx context.Context) ([]*Invitation, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS invitations (
		code          TEXT PRIMARY KEY,
		sender        TEXT NOT NULL DEFAULT '',
		receiver      TEXT NOT NULL,
		site          TEXT NOT NULL DEFAULT '',
		mime_type     TEXT NOT NULL,
		accepted      BOOLEAN NOT NULL DEFAULT FALSE,
		accepted_time BIGINT,
		sent          BIGINT,
		expiry_time   BIGINT NOT NULL DEFAULT 0,
		created_time  BIGINT NOT NULL,
		last_modified BIGINT NOT NULL
	)`

type pqStore struct {
	db *database.DB
}

// NewStore creates a Postgres-backed invitation store.
func NewStore(db *database.DB) Store {
	return &pqStore{db: db}
}

// EnsureSchema creates the invitations table when absent.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create invitations table: %w", err)
	}
	return nil
}

func (s *pqStore) Create(ctx context.Context, inv *Invitation) error {
	query := `
		INSERT INTO invitations (
			code, sender, receiver, site, mime_type, accepted,
			accepted_time, sent, expiry_time, created_time, last_modified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		codeKey(inv.Code),
		inv.Sender,
		inv.Receiver,
		inv.Site(),
		inv.MimeType,
		inv.Accepted,
		nullInt64(inv.AcceptedTime),
		nullInt64(inv.Sent),
		inv.ExpiryTime,
		inv.CreatedTime,
		inv.LastModified,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return &DuplicateInvitationCodeError{Code: inv.Code}
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

func (s *pqStore) Update(ctx context.Context, inv *Invitation) error {
	query := `
		UPDATE invitations
		SET sender = $2, receiver = $3, site = $4, mime_type = $5,
		    accepted = $6, accepted_time = $7, sent = $8, expiry_time = $9,
		    last_modified = $10
		WHERE code = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		codeKey(inv.Code),
		inv.Sender,
		inv.Receiver,
		inv.Site(),
		inv.MimeType,
		inv.Accepted,
		nullInt64(inv.AcceptedTime),
		nullInt64(inv.Sent),
		inv.ExpiryTime,
		inv.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return &InvitationCodeError{Code: inv.Code}
	}

	return nil
}

func (s *pqStore) Delete(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE code = $1`, codeKey(code))
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return nil
}

func (s *pqStore) GetByCode(ctx context.Context, code string) (*Invitation, error) {
	query := `
		SELECT code, sender, receiver, site, mime_type, accepted,
		       accepted_time, sent, expiry_time, created_time, last_modified
		FROM invitations
		WHERE code = $1
	`

	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, codeKey(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &InvitationCodeError{Code: code}
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

func (s *pqStore) LoadAll(ctx context.Context) ([]*Invitation, error) {
	query := `
		SELECT code, sender, receiver, site, mime_type, accepted,
		       accepted_time, sent, expiry_time, created_time, last_modified
		FROM invitations
		ORDER BY code
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitations: %w", err)
	}
	defer rows.Close()

	var result []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*Invitation, error) {
	var inv Invitation
	var site string
	var acceptedTime, sent sql.NullInt64

	err := row.Scan(
		&inv.Code,
		&inv.Sender,
		&inv.Receiver,
		&site,
		&inv.MimeType,
		&inv.Accepted,
		&acceptedTime,
		&sent,
		&inv.ExpiryTime,
		&inv.CreatedTime,
		&inv.LastModified,
	)
	if err != nil {
		return nil, err
	}

	inv.SetSite(site)
	if acceptedTime.Valid {
		inv.AcceptedTime = acceptedTime.Int64
	}
	if sent.Valid {
		inv.Sent = sent.Int64
	}
	return &inv, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
