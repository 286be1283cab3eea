package handlers

import (
	"context"
	"net/http"

	"github.com/contasync/contasync/internal/handlers/middleware"
	"github.com/contasync/contasync/internal/logger"
	"github.com/contasync/contasync/internal/models"
	"github.com/contasync/contasync/internal/repository/files"
	"github.com/contasync/contasync/internal/service/extract"
	"github.com/contasync/contasync/internal/service/token"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// API credentials for the Basic Auth gate on read endpoints
type APIAuth struct {
	Username     string
	PasswordHash string
}

func NewRouter(
	tokenService tokenService,
	extractService extractService,
	documents documentStore,
	apiAuth APIAuth,
	logger logger.Logger,
) http.Handler {
	basicAuth := middleware.BasicAuth(apiAuth.Username, apiAuth.PasswordHash)
	withAuth := func(h http.Handler) http.Handler {
		return basicAuth(h)
	}

	root := http.NewServeMux()

	// OAuth flow endpoints stay public: the authorization server calls
	// back without our API credentials
	root.Handle("GET /oauth", handleAuthorize(tokenService, logger))
	root.Handle("GET /callback", handleCallback(tokenService, logger))

	root.Handle("GET /get-tokens", withAuth(handleListTokens(tokenService, logger)))
	root.Handle("POST /insert-tokens", withAuth(handleInsertTokens(tokenService, logger)))
	root.Handle("GET /refresh_token/{customerID}", withAuth(handleRefreshToken(tokenService, logger)))

	root.Handle("GET /extract_sales/{customerID}", withAuth(handleExtractSales(extractService, logger)))
	root.Handle("GET /read/{customerID}/{dataType}", withAuth(handleReadData(tokenService, documents, logger)))
	root.Handle("GET /list/{customerID}", withAuth(handleListData(tokenService, documents, logger)))
	root.Handle("GET /summary/{customerID}/{dataType}", withAuth(handleSummary(extractService, logger)))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type tokenService interface {
	// Issue a signed state for the customer and return the consent URL
	AuthorizeURL(customerID string, customerFolder string) (string, error)

	// Validate the callback state and trade the one-time code for a stored record
	// Has to return apperrors.ErrStateInvalid on a bad state
	// Has to return apperrors.ErrCodeExchangeFailed when the server rejects the code
	ExchangeCode(ctx context.Context, state string, code string) (models.TokenRecord, error)

	// Explicit refresh, allowed even for a still-valid token
	// Has to return apperrors.ErrTokenNotFound for an unknown customer
	// Has to return apperrors.ErrRefreshFailed when the server rejects the grant
	Refresh(ctx context.Context, customerID string) (models.TokenRecord, error)

	Get(ctx context.Context, customerID string) (models.TokenRecord, error)
	List(ctx context.Context) ([]models.TokenRecord, error)

	// Bulk insert/replace, each record applied independently
	UpsertMany(ctx context.Context, inputs []token.RecordInput) (int, []token.RecordError, error)
}

type extractService interface {
	ExtractSales(ctx context.Context, customerID string) (extract.Result, error)
	Summarize(ctx context.Context, customerID string, dataType string, key string) (extract.Summary, error)
}

type documentStore interface {
	Read(folder string, name string) ([]byte, error)
	List(folder string) ([]files.DocumentInfo, error)
}
