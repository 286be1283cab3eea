// Package oauth talks to the accounting provider's authorization server.
// It covers the two grants the service needs: authorization_code on the
// callback and refresh_token on explicit refresh. Nothing here retries:
// codes are single-use and retry policy belongs to the caller.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/models"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Authorization server endpoints
	AuthURL  string
	TokenURL string

	Scopes []string

	// Upper bound for a single token endpoint call
	// If not set than default is used
	Timeout time.Duration
}

type Client struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client credentials must not be empty")
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, errors.New("authorization server endpoints must not be empty")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// AuthCodeURL returns the consent page URL the customer is redirected to
func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// Exchange trades the one-time authorization code for a token set
func (c *Client) Exchange(ctx context.Context, code string) (models.RotatedToken, error) {
	token, err := c.conf.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return models.RotatedToken{}, fmt.Errorf("%w: %w", apperrors.ErrCodeExchangeFailed, err)
	}

	return models.RotatedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

// Refresh trades a refresh token for a fresh token set.
// If the server omits a rotated refresh token the previous one stays valid
// and is kept in the result.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.RotatedToken, error) {
	source := c.conf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return models.RotatedToken{}, fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
	}

	rotated := models.RotatedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if rotated.RefreshToken == "" {
		rotated.RefreshToken = refreshToken
	}

	return rotated, nil
}

// withHTTPClient makes the oauth2 package use the bounded-timeout client
func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
