// Package inmemory holds a map backed TokenRepo.
// Meant for tests and single-process setups without Postgres around.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/models"
)

type TokenRepo struct {
	mu      sync.Mutex
	records map[string]models.TokenRecord
}

func NewTokenRepo() *TokenRepo {
	return &TokenRepo{records: make(map[string]models.TokenRecord)}
}

func (r *TokenRepo) Upsert(ctx context.Context, record models.TokenRecord) (models.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.records[record.CustomerID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	r.records[record.CustomerID] = record
	return record, nil
}

func (r *TokenRepo) Get(ctx context.Context, customerID string) (models.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[customerID]
	if !ok {
		return record, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	}
	return record, nil
}

func (r *TokenRepo) List(ctx context.Context) ([]models.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]models.TokenRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CustomerID < records[j].CustomerID })

	return records, nil
}

func (r *TokenRepo) Rotate(ctx context.Context, customerID string, prevRefresh string, rotated models.RotatedToken) (models.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[customerID]
	if !ok {
		return record, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	}
	if record.RefreshToken != prevRefresh {
		return record, fmt.Errorf("repo error: %w", apperrors.ErrRefreshSuperseded)
	}

	record.AccessToken = rotated.AccessToken
	record.RefreshToken = rotated.RefreshToken
	record.ExpiresAt = rotated.ExpiresAt
	record.UpdatedAt = time.Now()

	r.records[customerID] = record
	return record, nil
}
