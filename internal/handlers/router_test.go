package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/contasync/contasync/internal/logger"
	"github.com/contasync/contasync/internal/models"
	"github.com/contasync/contasync/internal/repository/files"
	"github.com/contasync/contasync/internal/repository/inmemory"
	"github.com/contasync/contasync/internal/service/extract"
	"github.com/contasync/contasync/internal/service/token"
)

const (
	testAPIUser     = "api"
	testAPIPassword = "test-password"
)

// stubOAuth stands in for the authorization server client.
// Tests set the rotated token or errors to drive the handlers.
type stubOAuth struct {
	rotated     models.RotatedToken
	exchangeErr error
	refreshErr  error
}

func (s *stubOAuth) AuthCodeURL(state string) string {
	return "https://auth.example.com/authorize?state=" + url.QueryEscape(state)
}

func (s *stubOAuth) Exchange(_ context.Context, _ string) (models.RotatedToken, error) {
	if s.exchangeErr != nil {
		return models.RotatedToken{}, s.exchangeErr
	}
	return s.rotated, nil
}

func (s *stubOAuth) Refresh(_ context.Context, _ string) (models.RotatedToken, error) {
	if s.refreshErr != nil {
		return models.RotatedToken{}, s.refreshErr
	}
	return s.rotated, nil
}

// stubSales serves canned sales pages: one page with the configured
// items, then an empty page
type stubSales struct {
	items []json.RawMessage
	err   error
}

func (s *stubSales) FetchSalesPage(_ context.Context, _ string, page int, _ int) ([]json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	if page > 0 {
		return nil, nil
	}
	return s.items, nil
}

type testEnv struct {
	url    string
	repo   *inmemory.TokenRepo
	oauth  *stubOAuth
	sales  *stubSales
	tokens *token.Service
	store  *files.Store
}

// newTestEnv runs the whole router over production services with an
// in-memory repository and stubbed upstreams
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := inmemory.NewTokenRepo()
	oauthStub := &stubOAuth{}
	salesStub := &stubSales{}

	tokenService, err := token.NewService(token.Config{SecretKey: "test-secret"}, oauthStub, repo, nil)
	require.NoError(t, err, "token service should be created without errors")

	store, err := files.NewStore(t.TempDir())
	require.NoError(t, err, "document store should be created without errors")

	extractService := extract.NewService(tokenService, store, salesStub, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIPassword), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewRouter(tokenService, extractService, store, APIAuth{Username: testAPIUser, PasswordHash: string(hash)}, logger.NewNoOp())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &testEnv{
		url:    srv.URL,
		repo:   repo,
		oauth:  oauthStub,
		sales:  salesStub,
		tokens: tokenService,
		store:  store,
	}
}

// doRequest sends an authenticated request and returns the response
// with its body read out
func (e *testEnv) doRequest(t *testing.T, method string, path string, body io.Reader) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, e.url+path, body)
	require.NoError(t, err)
	req.SetBasicAuth(testAPIUser, testAPIPassword)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	return resp, string(data)
}

func (e *testEnv) seedRecord(t *testing.T, record models.TokenRecord) models.TokenRecord {
	t.Helper()

	stored, err := e.repo.Upsert(t.Context(), record)
	require.NoError(t, err)
	return stored
}

func validRecord(customerID string) models.TokenRecord {
	return models.TokenRecord{
		CustomerID:     customerID,
		CustomerFolder: "folder-" + customerID,
		AccessToken:    "access-" + customerID,
		RefreshToken:   "refresh-" + customerID,
		ExpiresAt:      time.Now().Add(time.Hour),
	}
}

func Test_Router_BasicAuthGate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/get-tokens"},
		{http.MethodPost, "/insert-tokens"},
		{http.MethodGet, "/refresh_token/42"},
		{http.MethodGet, "/extract_sales/42"},
		{http.MethodGet, "/read/42/sales"},
		{http.MethodGet, "/list/42"},
		{http.MethodGet, "/summary/42/sales?key=total"},
	}

	for _, route := range protected {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req, err := http.NewRequest(route.method, env.url+route.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
			require.JSONEq(t, `
				{
					"error": "unauthorized",
					"message": "Unauthorized"
				}`, string(body))
		})
	}

	t.Run("wrong password rejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.url+"/get-tokens", nil)
		require.NoError(t, err)
		req.SetBasicAuth(testAPIUser, "not-the-password")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("oauth endpoints stay public", func(t *testing.T) {
		client := &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}

		resp, err := client.Get(env.url + "/oauth?customer_id=42&customer_folder=acme")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusFound, resp.StatusCode, "authorize endpoint should not ask for credentials")
	})
}
