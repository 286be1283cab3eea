package repository

import (
	"context"

	"github.com/contasync/contasync/internal/models"
)

// Token record repository interface
type TokenRepo interface {
	// Insert record or fully replace the existing one with the same customer id
	Upsert(ctx context.Context, record models.TokenRecord) (models.TokenRecord, error)

	// Get record by customer id
	// If record not found must return apperrors.ErrTokenNotFound
	Get(ctx context.Context, customerID string) (models.TokenRecord, error)

	// List all known records ordered by customer id
	List(ctx context.Context) ([]models.TokenRecord, error)

	// Replace the three rotating fields in one atomic write, but only if
	// the stored refresh token is still prevRefresh.
	// If record not found must return apperrors.ErrTokenNotFound
	// If the stored refresh token differs (another worker already rotated)
	// must return apperrors.ErrRefreshSuperseded
	Rotate(ctx context.Context, customerID string, prevRefresh string, rotated models.RotatedToken) (models.TokenRecord, error)
}
