// Package extract pulls sales data out of the accounting API with a
// customer's access token and persists it as a JSON document in the
// customer's folder.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/logger"
)

const requestTimeout = 15 * time.Second

type Client struct {
	BaseURL string

	client *http.Client
	logger logger.Logger
}

func NewClient(baseURL string, l logger.Logger) *Client {
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Client{
		BaseURL: baseURL,
		client:  &http.Client{},
		logger:  l,
	}
}

// FetchSalesPage returns one page of sales as raw JSON documents.
// An empty page means the previous one was the last.
func (c *Client) FetchSalesPage(ctx context.Context, accessToken string, page int, size int) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/sales", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		var sales []json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&sales); err != nil {
			c.logger.Warn("Failed to decode sales page", "page", page, "error", err)
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return sales, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("accounting API rejected the token: %w", apperrors.ErrTokenExpired)
	default:
		c.logger.Warn("Failed to fetch sales page", "status_code", resp.StatusCode, "page", page)
		return nil, fmt.Errorf("unknown status code %d for sales page %d", resp.StatusCode, page)
	}
}
