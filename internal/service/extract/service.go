package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/logger"
	"github.com/contasync/contasync/internal/models"
)

const (
	pageSize      = 2000
	salesDocument = "sales_data.json"
)

// Where the customer's token record comes from
type TokenGetter interface {
	Get(ctx context.Context, customerID string) (models.TokenRecord, error)
}

// Where extracted documents land and get read back from
type DocumentStore interface {
	Save(folder string, name string, data []byte) (string, error)
	Read(folder string, name string) ([]byte, error)
}

type SalesClient interface {
	FetchSalesPage(ctx context.Context, accessToken string, page int, size int) ([]json.RawMessage, error)
}

type Result struct {
	RunID string
	Count int
	Path  string
}

type Service struct {
	tokens TokenGetter
	store  DocumentStore
	sales  SalesClient
	logger logger.Logger

	// Overridable in tests
	now func() time.Time
}

func NewService(tokens TokenGetter, store DocumentStore, sales SalesClient, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Service{
		tokens: tokens,
		store:  store,
		sales:  sales,
		logger: l,
		now:    time.Now,
	}
}

// ExtractSales pages through the customer's sales and persists them as
// one JSON document. The stored token is used as is: an expired one
// means the caller has to refresh or re-authorize first.
func (s *Service) ExtractSales(ctx context.Context, customerID string) (Result, error) {
	runID := uuid.NewString()

	record, err := s.tokens.Get(ctx, customerID)
	if err != nil {
		return Result{RunID: runID}, err
	}
	if record.IsExpired(s.now()) {
		return Result{RunID: runID}, fmt.Errorf("customer %s: %w", customerID, apperrors.ErrTokenExpired)
	}

	var sales []json.RawMessage
	for page := 0; ; page++ {
		pageSales, err := s.sales.FetchSalesPage(ctx, record.AccessToken, page, pageSize)
		if err != nil {
			return Result{RunID: runID}, fmt.Errorf("error while fetching sales page %d. Err: %w", page, err)
		}
		if len(pageSales) == 0 {
			break
		}

		sales = append(sales, pageSales...)
	}

	if len(sales) == 0 {
		s.logger.Info("Extraction finished with no sales", "run_id", runID, "customer_id", customerID)
		return Result{RunID: runID, Count: 0}, nil
	}

	data, err := json.Marshal(sales)
	if err != nil {
		return Result{RunID: runID}, fmt.Errorf("error while encoding sales document. Err: %w", err)
	}

	path, err := s.store.Save(record.CustomerFolder, salesDocument, data)
	if err != nil {
		return Result{RunID: runID}, fmt.Errorf("error while saving sales document. Err: %w", err)
	}

	s.logger.Info("Extraction finished", "run_id", runID, "customer_id", customerID, "sales", len(sales), "path", path)
	return Result{RunID: runID, Count: len(sales), Path: path}, nil
}

type Summary struct {
	Key     string
	Total   decimal.Decimal
	Matched int
}

// Summarize adds up a numeric field across a stored document, with
// decimal precision instead of float accumulation
func (s *Service) Summarize(ctx context.Context, customerID string, dataType string, key string) (Summary, error) {
	record, err := s.tokens.Get(ctx, customerID)
	if err != nil {
		return Summary{}, err
	}

	data, err := s.store.Read(record.CustomerFolder, dataType+"_data.json")
	if err != nil {
		return Summary{}, err
	}

	var items []map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber() // keep the exact digits for decimal arithmetic
	if err := decoder.Decode(&items); err != nil {
		return Summary{}, fmt.Errorf("error while decoding %s document. Err: %w", dataType, err)
	}

	summary := Summary{Key: key, Total: decimal.Zero}
	for _, item := range items {
		number, ok := item[key].(json.Number)
		if !ok {
			continue
		}

		value, err := decimal.NewFromString(number.String())
		if err != nil {
			continue
		}

		summary.Total = summary.Total.Add(value)
		summary.Matched++
	}

	return summary, nil
}
