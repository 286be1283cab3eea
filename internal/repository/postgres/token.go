package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/models"
)

type TokenRepo struct {
	DB DBTX
}

const upsertToken = `-- name: UpsertToken
INSERT INTO tokens (customer_id, customer_folder, access_token, refresh_token, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (customer_id) DO UPDATE SET
    customer_folder = EXCLUDED.customer_folder,
    access_token    = EXCLUDED.access_token,
    refresh_token   = EXCLUDED.refresh_token,
    expires_at      = EXCLUDED.expires_at,
    updated_at      = now()
RETURNING customer_id, customer_folder, access_token, refresh_token, expires_at, created_at, updated_at
`

func (r *TokenRepo) Upsert(ctx context.Context, record models.TokenRecord) (models.TokenRecord, error) {
	rows, _ := r.DB.Query(ctx, upsertToken,
		record.CustomerID, record.CustomerFolder, record.AccessToken, record.RefreshToken, record.ExpiresAt)
	saved, err := pgx.CollectOneRow(rows, rowToToken)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return saved, fmt.Errorf("repo error: %w", apperrors.ErrTokenRecordInvalid)
		}
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const getToken = `-- name: GetToken by customer id
SELECT customer_id, customer_folder, access_token, refresh_token, expires_at, created_at, updated_at
FROM tokens
WHERE customer_id = $1
`

func (r *TokenRepo) Get(ctx context.Context, customerID string) (models.TokenRecord, error) {
	rows, _ := r.DB.Query(ctx, getToken, customerID)
	record, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, pgx.ErrNoRows):
		return record, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return record, fmt.Errorf("db error: %w", err)
	}
}

const listTokens = `-- name: ListTokens
SELECT customer_id, customer_folder, access_token, refresh_token, expires_at, created_at, updated_at
FROM tokens
ORDER BY customer_id
`

func (r *TokenRepo) List(ctx context.Context) ([]models.TokenRecord, error) {
	rows, _ := r.DB.Query(ctx, listTokens)
	records, err := pgx.CollectRows(rows, rowToToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return records, nil
}

const rotateToken = `-- name: RotateToken guarded by the previous refresh token
UPDATE tokens
SET access_token = $3, refresh_token = $4, expires_at = $5, updated_at = now()
WHERE customer_id = $1 AND refresh_token = $2
RETURNING customer_id, customer_folder, access_token, refresh_token, expires_at, created_at, updated_at
`

// Rotate applies the three rotating fields in one UPDATE.
// The WHERE clause on the previous refresh token is the compare-and-swap:
// two workers exchanging the same refresh token cannot both win.
func (r *TokenRepo) Rotate(ctx context.Context, customerID string, prevRefresh string, rotated models.RotatedToken) (models.TokenRecord, error) {
	rows, _ := r.DB.Query(ctx, rotateToken,
		customerID, prevRefresh, rotated.AccessToken, rotated.RefreshToken, rotated.ExpiresAt)
	record, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, pgx.ErrNoRows):
		// No row matched: either the customer is unknown or the guard failed
		current, getErr := r.Get(ctx, customerID)
		if getErr != nil {
			return record, getErr
		}
		return current, fmt.Errorf("repo error: %w", apperrors.ErrRefreshSuperseded)
	default:
		return record, fmt.Errorf("db error: %w", err)
	}
}

func rowToToken(row pgx.CollectableRow) (models.TokenRecord, error) {
	var t models.TokenRecord
	err := row.Scan(&t.CustomerID, &t.CustomerFolder, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
