// Package token owns the per-customer OAuth2 token lifecycle:
// acquisition on the callback, storage, and explicit refresh.
package token

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/logger"
	"github.com/contasync/contasync/internal/models"
	"github.com/contasync/contasync/internal/repository"
)

// Client side of the authorization server
type OAuthClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.RotatedToken, error)
	Refresh(ctx context.Context, refreshToken string) (models.RotatedToken, error)
}

type Config struct {
	// Secret key to sign the OAuth 'state' parameter
	// Required to be set
	SecretKey string

	// How long an issued state stays valid
	// If not set than default is used
	StateTTL time.Duration
}

type Service struct {
	oauth  OAuthClient
	repo   repository.TokenRepo
	state  *stateManager
	logger logger.Logger

	validate *validator.Validate

	// Per-customer refresh serialization
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(cfg Config, oauthClient OAuthClient, repo repository.TokenRepo, l logger.Logger) (*Service, error) {
	if oauthClient == nil || repo == nil {
		return nil, errors.New("oauth client and repo must not be nil")
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	state, err := newStateManager(cfg.SecretKey, cfg.StateTTL)
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(useJSONTagNames)
	if err := validate.RegisterValidation("folder", validateFolderName); err != nil {
		return nil, fmt.Errorf("error while registering folder validator. Err: %w", err)
	}

	return &Service{
		oauth:    oauthClient,
		repo:     repo,
		state:    state,
		logger:   l,
		validate: validate,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// AuthorizeURL issues a signed state for the customer and returns the
// consent page URL to redirect to
func (s *Service) AuthorizeURL(customerID string, customerFolder string) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("%w: customer id must not be empty", apperrors.ErrTokenRecordInvalid)
	}
	if !validFolder(customerFolder) {
		return "", fmt.Errorf("%w: %q", apperrors.ErrFolderInvalid, customerFolder)
	}

	state, err := s.state.Issue(customerID, customerFolder)
	if err != nil {
		return "", err
	}

	return s.oauth.AuthCodeURL(state), nil
}

// ExchangeCode validates the callback state, trades the one-time code
// for a token set and stores the record for the customer carried in the
// state. The code must not be retried on failure.
func (s *Service) ExchangeCode(ctx context.Context, state string, code string) (models.TokenRecord, error) {
	customerID, customerFolder, err := s.state.Parse(state)
	if err != nil {
		return models.TokenRecord{}, err
	}

	rotated, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return models.TokenRecord{}, err
	}

	record, err := s.repo.Upsert(ctx, models.TokenRecord{
		CustomerID:     customerID,
		CustomerFolder: customerFolder,
		AccessToken:    rotated.AccessToken,
		RefreshToken:   rotated.RefreshToken,
		ExpiresAt:      rotated.ExpiresAt,
	})
	if err != nil {
		return record, fmt.Errorf("error while storing exchanged token. Err: %w", err)
	}

	s.logger.Info("Authorization code exchanged", "customer_id", customerID)
	return record, nil
}

// Refresh rotates the customer's token set unconditionally: explicit
// refresh is allowed even for a still-valid token.
//
// Refreshes for the same customer are serialized in process and the
// repository applies the rotation with a compare-and-swap on the
// previous refresh token, so a concurrent worker can't have its result
// silently discarded. On upstream failure the stored record stays
// untouched and re-authorization is the only recovery.
func (s *Service) Refresh(ctx context.Context, customerID string) (models.TokenRecord, error) {
	unlock := s.lockCustomer(customerID)
	defer unlock()

	record, err := s.repo.Get(ctx, customerID)
	if err != nil {
		return record, err
	}

	rotated, err := s.oauth.Refresh(ctx, record.RefreshToken)
	if err != nil {
		s.logger.Warn("Token refresh rejected", "customer_id", customerID, "error", err)
		return record, err
	}

	stored, err := s.repo.Rotate(ctx, customerID, record.RefreshToken, rotated)
	if err != nil {
		return stored, err
	}

	s.logger.Info("Token refreshed", "customer_id", customerID, "expires_at", stored.ExpiresAt)
	return stored, nil
}

// Get returns the stored record without refreshing it.
// Staleness is the caller's business: check IsExpired before use.
func (s *Service) Get(ctx context.Context, customerID string) (models.TokenRecord, error) {
	return s.repo.Get(ctx, customerID)
}

func (s *Service) List(ctx context.Context) ([]models.TokenRecord, error) {
	return s.repo.List(ctx)
}

// Incoming record shape for bulk upsert
type RecordInput struct {
	CustomerID     string    `json:"customer_id" validate:"required"`
	CustomerFolder string    `json:"customer_folder" validate:"required,folder"`
	AccessToken    string    `json:"access_token" validate:"required"`
	RefreshToken   string    `json:"refresh_token" validate:"required"`
	ExpiresAt      time.Time `json:"expires_at" validate:"required"`
}

// Validation failure for a single record in a batch
type RecordError struct {
	Index  int
	Err    error
	Fields map[string]string
}

// UpsertMany applies records independently: a malformed record is
// reported and skipped, the rest of the batch still applies.
func (s *Service) UpsertMany(ctx context.Context, inputs []RecordInput) (int, []RecordError, error) {
	applied := 0
	var recordErrs []RecordError

	for i, input := range inputs {
		if err := s.validate.Struct(input); err != nil {
			var verrs validator.ValidationErrors
			fields := make(map[string]string)
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					fields[fe.Field()] = fe.Tag()
				}
			}

			recordErrs = append(recordErrs, RecordError{
				Index:  i,
				Err:    fmt.Errorf("%w: record %d", apperrors.ErrTokenRecordInvalid, i),
				Fields: fields,
			})
			continue
		}

		_, err := s.repo.Upsert(ctx, models.TokenRecord{
			CustomerID:     input.CustomerID,
			CustomerFolder: input.CustomerFolder,
			AccessToken:    input.AccessToken,
			RefreshToken:   input.RefreshToken,
			ExpiresAt:      input.ExpiresAt,
		})
		if err != nil {
			// Storage failure is not a per-record problem, stop the batch
			return applied, recordErrs, fmt.Errorf("error while upserting record %d. Err: %w", i, err)
		}

		applied++
	}

	return applied, recordErrs, nil
}

func (s *Service) lockCustomer(customerID string) func() {
	s.mu.Lock()
	l, ok := s.locks[customerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[customerID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func validateFolderName(fl validator.FieldLevel) bool {
	return validFolder(fl.Field().String())
}

// A folder must be a single clean path element under the data root
func validFolder(folder string) bool {
	if folder == "" || strings.HasPrefix(folder, ".") {
		return false
	}
	return folder == filepath.Base(filepath.Clean(folder))
}

// useJSONTagNames reports fields by their json tag, same setup the
// render package uses for request validation
func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}
