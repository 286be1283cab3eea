package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/models"
	"github.com/contasync/contasync/internal/repository/files"
	"github.com/contasync/contasync/internal/repository/inmemory"
)

// Sales client stub serving a fixed set of pages
type stubSales struct {
	pages [][]json.RawMessage
	err   error

	// access tokens presented per call
	presented []string
}

func (s *stubSales) FetchSalesPage(ctx context.Context, accessToken string, page int, size int) ([]json.RawMessage, error) {
	s.presented = append(s.presented, accessToken)

	if s.err != nil {
		return nil, s.err
	}
	if page >= len(s.pages) {
		return []json.RawMessage{}, nil
	}
	return s.pages[page], nil
}

func seedToken(t *testing.T, repo *inmemory.TokenRepo, expiresAt time.Time) {
	t.Helper()

	_, err := repo.Upsert(t.Context(), models.TokenRecord{
		CustomerID:     "c1",
		CustomerFolder: "acme",
		AccessToken:    "A1",
		RefreshToken:   "R1",
		ExpiresAt:      expiresAt,
	})
	require.NoError(t, err)
}

func TestService_ExtractSales(t *testing.T) {
	t.Run("pages through and persists one document", func(t *testing.T) {
		repo := inmemory.NewTokenRepo()
		seedToken(t, repo, time.Now().Add(time.Hour))

		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)

		sales := &stubSales{pages: [][]json.RawMessage{
			{json.RawMessage(`{"id": "s1", "total": 10}`), json.RawMessage(`{"id": "s2", "total": 5}`)},
			{json.RawMessage(`{"id": "s3", "total": 1}`)},
		}}

		s := NewService(repo, store, sales, nil)

		result, err := s.ExtractSales(t.Context(), "c1")

		require.NoError(t, err)
		assert.Equal(t, 3, result.Count)
		assert.NotEmpty(t, result.RunID)
		assert.FileExists(t, result.Path)
		assert.Equal(t, []string{"A1", "A1", "A1"}, sales.presented, "stored access token used for every page")

		data, err := store.Read("acme", "sales_data.json")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id": "s1", "total": 10}, {"id": "s2", "total": 5}, {"id": "s3", "total": 1}]`, string(data))
	})

	t.Run("no sales means no document", func(t *testing.T) {
		repo := inmemory.NewTokenRepo()
		seedToken(t, repo, time.Now().Add(time.Hour))

		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)

		s := NewService(repo, store, &stubSales{}, nil)

		result, err := s.ExtractSales(t.Context(), "c1")

		require.NoError(t, err)
		assert.Equal(t, 0, result.Count)

		_, err = store.Read("acme", "sales_data.json")
		assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	})

	t.Run("expired token is refused up front", func(t *testing.T) {
		repo := inmemory.NewTokenRepo()
		seedToken(t, repo, time.Now().Add(-time.Minute))

		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)

		sales := &stubSales{}
		s := NewService(repo, store, sales, nil)

		_, err = s.ExtractSales(t.Context(), "c1")

		assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
		assert.Empty(t, sales.presented, "no API call with a stale token")
	})

	t.Run("unknown customer", func(t *testing.T) {
		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)

		s := NewService(inmemory.NewTokenRepo(), store, &stubSales{}, nil)

		_, err = s.ExtractSales(t.Context(), "unknown")

		assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
	})

	t.Run("fetch failure aborts the run", func(t *testing.T) {
		repo := inmemory.NewTokenRepo()
		seedToken(t, repo, time.Now().Add(time.Hour))

		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)

		s := NewService(repo, store, &stubSales{err: fmt.Errorf("boom")}, nil)

		_, err = s.ExtractSales(t.Context(), "c1")

		require.Error(t, err)
		_, readErr := store.Read("acme", "sales_data.json")
		assert.ErrorIs(t, readErr, apperrors.ErrDocumentNotFound, "partial runs leave no document")
	})
}

func TestService_Summarize(t *testing.T) {
	setup := func(t *testing.T, document string) *Service {
		t.Helper()

		repo := inmemory.NewTokenRepo()
		seedToken(t, repo, time.Now().Add(time.Hour))

		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)
		_, err = store.Save("acme", "sales_data.json", []byte(document))
		require.NoError(t, err)

		return NewService(repo, store, &stubSales{}, nil)
	}

	t.Run("adds up a numeric key with decimal precision", func(t *testing.T) {
		s := setup(t, `[{"total": 0.1}, {"total": 0.2}, {"total": 0.3}]`)

		summary, err := s.Summarize(t.Context(), "c1", "sales", "total")

		require.NoError(t, err)
		assert.Equal(t, "0.6", summary.Total.String(), "0.1+0.2+0.3 must not float-drift")
		assert.Equal(t, 3, summary.Matched)
		assert.Equal(t, "total", summary.Key)
	})

	t.Run("skips entries without the key or with non-numeric values", func(t *testing.T) {
		s := setup(t, `[{"total": 10}, {"other": 5}, {"total": "n/a"}, {"total": 2.5}]`)

		summary, err := s.Summarize(t.Context(), "c1", "sales", "total")

		require.NoError(t, err)
		assert.Equal(t, "12.5", summary.Total.String())
		assert.Equal(t, 2, summary.Matched)
	})

	t.Run("missing document", func(t *testing.T) {
		repo := inmemory.NewTokenRepo()
		seedToken(t, repo, time.Now().Add(time.Hour))

		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)

		s := NewService(repo, store, &stubSales{}, nil)

		_, err = s.Summarize(t.Context(), "c1", "sales", "total")
		assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	})

	t.Run("unknown customer", func(t *testing.T) {
		store, err := files.NewStore(t.TempDir())
		require.NoError(t, err)

		s := NewService(inmemory.NewTokenRepo(), store, &stubSales{}, nil)

		_, err = s.Summarize(t.Context(), "unknown", "sales", "total")
		assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
	})
}
